package store

import (
	"context"
	"encoding/json"
	"fmt"

	"riberry/internal/api"
	"riberry/internal/schema"
)

// CreateJobStore backs the job-submission form: it holds the target
// form's interface definition (input files, input values with
// enumerations) and assembles submissions from it. No polling; Reset
// discards an abandoned draft.
type CreateJobStore struct {
	base
	client *api.Client

	form *schema.Form

	pristine json.RawMessage
}

func NewCreateJobStore(client *api.Client) *CreateJobStore {
	s := &CreateJobStore{client: client}
	s.pristine, _ = snapshotState(formSnapshot{})
	return s
}

// Setup loads the form's interface definition. One-shot.
func (s *CreateJobStore) Setup(ctx context.Context, formID string) error {
	return s.Load(ctx, formID)
}

// TearDown discards any in-flight load's result. Idempotent; there is no
// timer to cancel.
func (s *CreateJobStore) TearDown() {
	s.invalidate()
}

// Load fetches the form with the full input definitions expanded.
func (s *CreateJobStore) Load(ctx context.Context, formID string) error {
	gen := s.generation()
	env, err := s.client.Form(ctx, formID, "interface.inputFiles", "interface.inputValues.enumerations")
	if err != nil {
		return err
	}
	if err := env.Err(); err != nil {
		return err
	}
	form, err := schema.DecodeForm(env.Data)
	if err != nil {
		return err
	}
	s.apply(gen, func() { s.form = form })
	return nil
}

// Reset restores the store to its pristine pre-load state.
func (s *CreateJobStore) Reset() error {
	var snap formSnapshot
	if err := restoreState(s.pristine, &snap); err != nil {
		return err
	}
	s.reset(func() { s.form = snap.Form })
	return nil
}

// Form returns the loaded form definition, nil before Setup.
func (s *CreateJobStore) Form() *schema.Form {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.form
}

// Submission is a draft job: values are keyed by input value name, files
// by input file name. Declared defaults fill values the caller left
// unset.
type Submission struct {
	Name       string
	Values     map[string]any
	Files      map[string]api.JobFile
	ExecuteNow bool
}

// Submit posts the draft through the gateway. The loaded interface
// definition drives input assembly: every declared input value gets an
// entry (the caller's value or the declared default), and file parts take
// the definition's internal name.
func (s *CreateJobStore) Submit(ctx context.Context, sub Submission) error {
	s.mu.Lock()
	form := s.form
	s.mu.Unlock()
	if form == nil || form.Interface == nil {
		return fmt.Errorf("no form loaded")
	}

	inputs := map[string]any{}
	for _, def := range form.Interface.InputValues {
		if v, ok := sub.Values[def.Name]; ok {
			inputs[def.Name] = v
		} else {
			inputs[def.Name] = def.Default
		}
	}

	var files []api.JobFile
	for _, def := range form.Interface.InputFiles {
		f, ok := sub.Files[def.Name]
		if !ok {
			if def.Required {
				return fmt.Errorf("input file %s is required", def.Name)
			}
			continue
		}
		f.Name = def.InternalName
		files = append(files, f)
	}
	for name := range sub.Files {
		if !hasFileDefinition(form.Interface.InputFiles, name) {
			return fmt.Errorf("unknown input file %s", name)
		}
	}

	return s.client.CreateJob(ctx, form.ID.String(), api.JobRequest{
		Name:       sub.Name,
		Inputs:     inputs,
		Files:      files,
		ExecuteNow: sub.ExecuteNow,
	})
}

func hasFileDefinition(defs []schema.InputFileDefinition, name string) bool {
	for _, d := range defs {
		if d.Name == name {
			return true
		}
	}
	return false
}
