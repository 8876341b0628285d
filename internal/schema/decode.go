package schema

import (
	"encoding/json"
	"errors"
	"fmt"
)

// maxDepth bounds nested relation decoding. The backend never returns a
// truly circular payload, but the Form->Job->JobExecution->Job chain is
// cyclic in the schema and a malformed response must not recurse without
// bound.
const maxDepth = 32

// ErrDepthExceeded is returned when a payload nests relations deeper than
// the decoder allows.
var ErrDepthExceeded = errors.New("schema: relation nesting too deep")

// Decoding is strict about required fields: a response that does not match
// the schema fails the whole decode rather than producing a half-populated
// entity.

func DecodeUser(raw json.RawMessage) (*User, error) {
	return decodeUser(raw, 0)
}

func DecodeForm(raw json.RawMessage) (*Form, error) {
	return decodeForm(raw, 0)
}

func DecodeForms(raw json.RawMessage) ([]*Form, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("decode form list: %w", err)
	}
	forms := make([]*Form, 0, len(items))
	for i, item := range items {
		f, err := decodeForm(item, 0)
		if err != nil {
			return nil, fmt.Errorf("decode form %d: %w", i, err)
		}
		forms = append(forms, f)
	}
	return forms, nil
}

func DecodeJobSummary(raw json.RawMessage) (*JobSummary, error) {
	var s JobSummary
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("decode job summary: %w", err)
	}
	return &s, nil
}

func decodeUser(raw json.RawMessage, depth int) (*User, error) {
	if depth > maxDepth {
		return nil, ErrDepthExceeded
	}
	var aux struct {
		ID         ID                `json:"id"`
		UserName   string            `json:"userName"`
		Details    json.RawMessage   `json:"details"`
		Groups     []Group           `json:"groups"`
		Executions []json.RawMessage `json:"executions"`
	}
	if err := json.Unmarshal(raw, &aux); err != nil {
		return nil, fmt.Errorf("decode user: %w", err)
	}
	if aux.ID.IsZero() || aux.UserName == "" {
		return nil, fmt.Errorf("decode user: id and userName are required")
	}
	u := &User{ID: aux.ID, UserName: aux.UserName, Groups: aux.Groups}
	if present(aux.Details) {
		var d UserDetails
		if err := json.Unmarshal(aux.Details, &d); err != nil {
			return nil, fmt.Errorf("decode user details: %w", err)
		}
		u.Details = &d
	}
	for i, rawExec := range aux.Executions {
		e, err := decodeJobExecution(rawExec, depth+1)
		if err != nil {
			return nil, fmt.Errorf("decode user execution %d: %w", i, err)
		}
		u.Executions = append(u.Executions, e)
	}
	return u, nil
}

func decodeForm(raw json.RawMessage, depth int) (*Form, error) {
	if depth > maxDepth {
		return nil, ErrDepthExceeded
	}
	var aux struct {
		ID        ID                `json:"id"`
		Instance  json.RawMessage   `json:"instance"`
		Interface json.RawMessage   `json:"interface"`
		Jobs      []json.RawMessage `json:"jobs"`
	}
	if err := json.Unmarshal(raw, &aux); err != nil {
		return nil, fmt.Errorf("decode form: %w", err)
	}
	if aux.ID.IsZero() {
		return nil, fmt.Errorf("decode form: id is required")
	}
	f := &Form{ID: aux.ID}
	if present(aux.Instance) {
		inst, err := decodeInstance(aux.Instance, depth+1)
		if err != nil {
			return nil, err
		}
		f.Instance = inst
	}
	if present(aux.Interface) {
		iface, err := decodeInterface(aux.Interface, depth+1)
		if err != nil {
			return nil, err
		}
		f.Interface = iface
	}
	for i, rawJob := range aux.Jobs {
		j, err := decodeJob(rawJob, depth+1)
		if err != nil {
			return nil, fmt.Errorf("decode form job %d: %w", i, err)
		}
		f.Jobs = append(f.Jobs, j)
	}
	return f, nil
}

func decodeJob(raw json.RawMessage, depth int) (*Job, error) {
	if depth > maxDepth {
		return nil, ErrDepthExceeded
	}
	var aux struct {
		ID         ID                `json:"id"`
		Name       string            `json:"name"`
		Created    string            `json:"created"`
		Creator    json.RawMessage   `json:"creator"`
		Instance   json.RawMessage   `json:"instance"`
		Interface  json.RawMessage   `json:"interface"`
		Executions []json.RawMessage `json:"executions"`
	}
	if err := json.Unmarshal(raw, &aux); err != nil {
		return nil, fmt.Errorf("decode job: %w", err)
	}
	if aux.ID.IsZero() {
		return nil, fmt.Errorf("decode job: id is required")
	}
	if aux.Name == "" || aux.Created == "" {
		return nil, fmt.Errorf("decode job: name and created are required")
	}
	j := &Job{ID: aux.ID, Name: aux.Name, Created: aux.Created}
	if present(aux.Creator) {
		creator, err := decodeUser(aux.Creator, depth+1)
		if err != nil {
			return nil, err
		}
		j.Creator = creator
	}
	if present(aux.Instance) {
		inst, err := decodeInstance(aux.Instance, depth+1)
		if err != nil {
			return nil, err
		}
		j.Instance = inst
	}
	if present(aux.Interface) {
		iface, err := decodeInterface(aux.Interface, depth+1)
		if err != nil {
			return nil, err
		}
		j.Interface = iface
	}
	for i, rawExec := range aux.Executions {
		e, err := decodeJobExecution(rawExec, depth+1)
		if err != nil {
			return nil, fmt.Errorf("decode job execution %d: %w", i, err)
		}
		j.Executions = append(j.Executions, e)
	}
	return j, nil
}

func decodeJobExecution(raw json.RawMessage, depth int) (*JobExecution, error) {
	if depth > maxDepth {
		return nil, ErrDepthExceeded
	}
	var aux struct {
		ID     ID              `json:"id"`
		Status string          `json:"status"`
		Job    json.RawMessage `json:"job"`
	}
	if err := json.Unmarshal(raw, &aux); err != nil {
		return nil, fmt.Errorf("decode job execution: %w", err)
	}
	if aux.ID.IsZero() || aux.Status == "" {
		return nil, fmt.Errorf("decode job execution: id and status are required")
	}
	e := &JobExecution{ID: aux.ID, Status: aux.Status}
	if present(aux.Job) {
		j, err := decodeJob(aux.Job, depth+1)
		if err != nil {
			return nil, err
		}
		e.Job = j
	}
	return e, nil
}

func decodeInstance(raw json.RawMessage, depth int) (*ApplicationInstance, error) {
	if depth > maxDepth {
		return nil, ErrDepthExceeded
	}
	var aux struct {
		ID           ID                `json:"id"`
		Name         string            `json:"name"`
		InternalName string            `json:"internalName"`
		Heartbeat    *Heartbeat        `json:"heartbeat"`
		Interfaces   []json.RawMessage `json:"interfaces"`
		Application  json.RawMessage   `json:"application"`
	}
	if err := json.Unmarshal(raw, &aux); err != nil {
		return nil, fmt.Errorf("decode application instance: %w", err)
	}
	if aux.ID.IsZero() {
		return nil, fmt.Errorf("decode application instance: id is required")
	}
	if aux.Name == "" || aux.InternalName == "" {
		return nil, fmt.Errorf("decode application instance: name and internalName are required")
	}
	inst := &ApplicationInstance{
		ID:           aux.ID,
		Name:         aux.Name,
		InternalName: aux.InternalName,
		Heartbeat:    aux.Heartbeat,
	}
	for i, rawChild := range aux.Interfaces {
		child, err := decodeInstance(rawChild, depth+1)
		if err != nil {
			return nil, fmt.Errorf("decode instance interface %d: %w", i, err)
		}
		inst.Interfaces = append(inst.Interfaces, child)
	}
	if present(aux.Application) {
		app, err := decodeApplication(aux.Application, depth+1)
		if err != nil {
			return nil, err
		}
		inst.Application = app
	}
	return inst, nil
}

func decodeApplication(raw json.RawMessage, depth int) (*Application, error) {
	if depth > maxDepth {
		return nil, ErrDepthExceeded
	}
	var aux struct {
		ID           ID                `json:"id"`
		Name         string            `json:"name"`
		InternalName string            `json:"internalName"`
		Type         string            `json:"type"`
		Description  string            `json:"description"`
		Interfaces   []json.RawMessage `json:"interfaces"`
	}
	if err := json.Unmarshal(raw, &aux); err != nil {
		return nil, fmt.Errorf("decode application: %w", err)
	}
	if aux.ID.IsZero() {
		return nil, fmt.Errorf("decode application: id is required")
	}
	if aux.Name == "" || aux.InternalName == "" {
		return nil, fmt.Errorf("decode application: name and internalName are required")
	}
	app := &Application{
		ID:           aux.ID,
		Name:         aux.Name,
		InternalName: aux.InternalName,
		Type:         aux.Type,
		Description:  aux.Description,
	}
	for i, rawIface := range aux.Interfaces {
		iface, err := decodeInterface(rawIface, depth+1)
		if err != nil {
			return nil, fmt.Errorf("decode application interface %d: %w", i, err)
		}
		app.Interfaces = append(app.Interfaces, iface)
	}
	return app, nil
}

func decodeInterface(raw json.RawMessage, depth int) (*ApplicationInterface, error) {
	if depth > maxDepth {
		return nil, ErrDepthExceeded
	}
	var aux struct {
		ID           ID                     `json:"id"`
		Name         string                 `json:"name"`
		InternalName string                 `json:"internalName"`
		Version      *int                   `json:"version"`
		Description  string                 `json:"description"`
		Document     string                 `json:"document"`
		InputFiles   []InputFileDefinition  `json:"inputFiles"`
		InputValues  []InputValueDefinition `json:"inputValues"`
	}
	if err := json.Unmarshal(raw, &aux); err != nil {
		return nil, fmt.Errorf("decode application interface: %w", err)
	}
	if aux.ID.IsZero() {
		return nil, fmt.Errorf("decode application interface: id is required")
	}
	if aux.Name == "" || aux.InternalName == "" || aux.Version == nil {
		return nil, fmt.Errorf("decode application interface: name, internalName and version are required")
	}
	return &ApplicationInterface{
		ID:           aux.ID,
		Name:         aux.Name,
		InternalName: aux.InternalName,
		Version:      *aux.Version,
		Description:  aux.Description,
		Document:     aux.Document,
		InputFiles:   aux.InputFiles,
		InputValues:  aux.InputValues,
	}, nil
}

func present(raw json.RawMessage) bool {
	return len(raw) > 0 && string(raw) != "null"
}
