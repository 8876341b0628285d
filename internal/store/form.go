package store

import (
	"context"
	"encoding/json"
	"time"

	"riberry/internal/api"
	"riberry/internal/schema"
)

// FormStore owns one form's detail view, refreshed on the generic
// interval while the detail page is mounted. Reset restores the pristine
// pre-setup state so a revisit starts clean.
type FormStore struct {
	base
	poll   Poller
	client *api.Client

	form *schema.Form

	pristine json.RawMessage
}

type formSnapshot struct {
	Form *schema.Form `json:"form"`
}

func NewFormStore(client *api.Client, interval time.Duration) *FormStore {
	s := &FormStore{
		poll:   Poller{Interval: interval},
		client: client,
	}
	s.pristine, _ = snapshotState(formSnapshot{})
	return s
}

// Poll exposes the poller for timer injection and logging.
func (s *FormStore) Poll() *Poller { return &s.poll }

// Setup loads the form once, then keeps it fresh until TearDown. The same
// form id is reloaded on every tick.
func (s *FormStore) Setup(ctx context.Context, formID string) error {
	return s.poll.Setup(ctx, func(ctx context.Context) error {
		return s.Load(ctx, formID)
	})
}

func (s *FormStore) TearDown() {
	s.poll.TearDown()
	s.invalidate()
}

// Load fetches the form with job creators and the interface document
// expanded.
func (s *FormStore) Load(ctx context.Context, formID string) error {
	gen := s.generation()
	env, err := s.client.Form(ctx, formID, "jobs.creator.details", "interface.document")
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

// Reset restores the store to its state at construction, discarding any
// loaded form and any in-flight load's result.
func (s *FormStore) Reset() error {
	var snap formSnapshot
	if err := restoreState(s.pristine, &snap); err != nil {
		return err
	}
	s.reset(func() { s.form = snap.Form })
	return nil
}

// Form returns the loaded form, nil before the first successful load.
func (s *FormStore) Form() *schema.Form {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.form
}
