package store

import (
	"context"
	"sync"
	"time"

	"riberry/internal/api"
	"riberry/internal/schema"
)

// DashboardInterval is the dashboard's refresh cadence, faster than the
// generic default because it is the landing page.
const DashboardInterval = 2 * time.Second

// DashboardStore owns the landing-page slice of the graph: all visible
// forms, the user's own executions, and the summary counters. One load
// fans out to the three endpoints concurrently and replaces all three
// fields together only when every fetch decoded cleanly.
type DashboardStore struct {
	base
	poll   Poller
	client *api.Client

	forms      []*schema.Form
	executions []*schema.JobExecution
	summary    schema.JobSummary
}

func NewDashboardStore(client *api.Client, interval time.Duration) *DashboardStore {
	if interval <= 0 {
		interval = DashboardInterval
	}
	return &DashboardStore{
		poll:   Poller{Interval: interval},
		client: client,
	}
}

// Poll exposes the poller for timer injection and logging.
func (s *DashboardStore) Poll() *Poller { return &s.poll }

// Setup loads once synchronously, then refreshes every interval until
// TearDown.
func (s *DashboardStore) Setup(ctx context.Context) error {
	return s.poll.Setup(ctx, s.Load)
}

// TearDown stops polling and discards any in-flight load's result.
func (s *DashboardStore) TearDown() {
	s.poll.TearDown()
	s.invalidate()
}

// Load refreshes forms, executions, and summary in one pass.
func (s *DashboardStore) Load(ctx context.Context) error {
	gen := s.generation()

	var (
		wg                           sync.WaitGroup
		formEnv, selfEnv, summaryEnv *api.Envelope
		formErr, selfErr, summaryErr error
	)
	wg.Add(3)
	go func() {
		defer wg.Done()
		formEnv, formErr = s.client.Forms(ctx, "interface", "instance.application", "instance.heartbeat")
	}()
	go func() {
		defer wg.Done()
		selfEnv, selfErr = s.client.SelfProfile(ctx, "executions.job.interface")
	}()
	go func() {
		defer wg.Done()
		summaryEnv, summaryErr = s.client.JobSummary(ctx)
	}()
	wg.Wait()

	for _, pair := range []struct {
		env *api.Envelope
		err error
	}{{formEnv, formErr}, {selfEnv, selfErr}, {summaryEnv, summaryErr}} {
		if pair.err != nil {
			return pair.err
		}
		if err := pair.env.Err(); err != nil {
			return err
		}
	}

	forms, err := schema.DecodeForms(formEnv.Data)
	if err != nil {
		return err
	}
	self, err := schema.DecodeUser(selfEnv.Data)
	if err != nil {
		return err
	}
	summary, err := schema.DecodeJobSummary(summaryEnv.Data)
	if err != nil {
		return err
	}

	s.apply(gen, func() {
		s.forms = forms
		s.executions = self.Executions
		s.summary = *summary
	})
	return nil
}

func (s *DashboardStore) Forms() []*schema.Form {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.forms
}

func (s *DashboardStore) Executions() []*schema.JobExecution {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.executions
}

func (s *DashboardStore) Summary() schema.JobSummary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.summary
}
