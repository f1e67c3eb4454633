package handlers

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/ternarybob/culefilo/internal/interfaces"
	"github.com/ternarybob/culefilo/internal/models"
	"github.com/ternarybob/culefilo/internal/services/jobs"
)

type mockJobs struct {
	mock.Mock
}

func (m *mockJobs) Create(ctx context.Context, req jobs.CreateRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

func (m *mockJobs) Get(ctx context.Context, id string) (*models.SearchJob, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.SearchJob), args.Error(1)
}

func (m *mockJobs) Retry(ctx context.Context, id string, resume bool) error {
	args := m.Called(ctx, id, resume)
	return args.Error(0)
}

func (m *mockJobs) History(ctx context.Context) ([]models.SearchJobView, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.SearchJobView), args.Error(1)
}

type fakeStream struct {
	events chan models.ProgressEvent
	err    error
}

func newFakeStream(err error, events ...models.ProgressEvent) *fakeStream {
	s := &fakeStream{events: make(chan models.ProgressEvent, len(events)), err: err}
	for _, e := range events {
		s.events <- e
	}
	close(s.events)
	return s
}

func (s *fakeStream) Events() <-chan models.ProgressEvent { return s.events }
func (s *fakeStream) Err() error                          { return s.err }

type fakeRunner struct {
	stream *fakeStream
	err    error
	calls  []string
}

func (r *fakeRunner) Advance(ctx context.Context, jobID string) (interfaces.ProgressStream, error) {
	r.calls = append(r.calls, jobID)
	if r.err != nil {
		return nil, r.err
	}
	return r.stream, nil
}
