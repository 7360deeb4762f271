package services

import (
	"context"
	"sync"
)

// SentPush is one push recorded by MockPushService
type SentPush struct {
	Token string
	Title string
	Body  string
	Data  map[string]string
}

// MockPushService is a mock implementation of PushSender for testing
type MockPushService struct {
	mu   sync.Mutex
	sent []SentPush
	Err  error
}

// NewMockPushService creates a new mock push service
func NewMockPushService() *MockPushService {
	return &MockPushService{}
}

// Send records the push and returns Err
func (m *MockPushService) Send(_ context.Context, token, title, body string, data map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, SentPush{Token: token, Title: title, Body: body, Data: data})
	return m.Err
}

// Sent returns a copy of the recorded pushes
func (m *MockPushService) Sent() []SentPush {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]SentPush, len(m.sent))
	copy(out, m.sent)
	return out
}
