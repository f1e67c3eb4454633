package search

import (
	"context"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/ternarybob/culefilo/internal/models"
)

type mockPlaces struct {
	mock.Mock
}

func (m *mockPlaces) Search(ctx context.Context, text string, coords models.Coordinates) ([]models.Venue, error) {
	args := m.Called(ctx, text, coords)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Venue), args.Error(1)
}

func (m *mockPlaces) DownloadPhoto(ctx context.Context, photoName string) ([]byte, error) {
	args := m.Called(ctx, photoName)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

type mockLLM struct {
	mock.Mock
}

func (m *mockLLM) Complete(ctx context.Context, prompt string, systemInstruction string) (string, error) {
	args := m.Called(ctx, prompt, systemInstruction)
	return args.String(0), args.Error(1)
}

func (m *mockLLM) Summarize(ctx context.Context, reviews []string) (string, error) {
	args := m.Called(ctx, reviews)
	return args.String(0), args.Error(1)
}

func (m *mockLLM) Caption(ctx context.Context, image []byte) (string, error) {
	args := m.Called(ctx, image)
	return args.String(0), args.Error(1)
}

type recordingProgress struct {
	mu       sync.Mutex
	messages []string
	total    float64
}

func (p *recordingProgress) Step(msg string, increment float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, msg)
	p.total += increment
}

func (p *recordingProgress) Reach(msg string, target float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, msg)
	if target > p.total {
		p.total = target
	}
}

func (p *recordingProgress) Messages() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.messages))
	copy(out, p.messages)
	return out
}

func venue(id string) models.Venue {
	return models.Venue{ID: id, DisplayName: "Venue " + id}
}
