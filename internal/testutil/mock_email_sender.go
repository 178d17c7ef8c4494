package testutil

import (
	"context"
	"sync"

	"github.com/petalpost/petalpost/internal/email"
)

// MockEmailSender records outbound messages. The first Failures sends fail
// with Err.
type MockEmailSender struct {
	mu       sync.Mutex
	sent     []*email.Message
	calls    int
	Failures int
	Err      error
}

func NewMockEmailSender() *MockEmailSender {
	return &MockEmailSender{}
}

func (m *MockEmailSender) Send(_ context.Context, msg *email.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.calls <= m.Failures && m.Err != nil {
		return m.Err
	}
	m.sent = append(m.sent, msg)
	return nil
}

// Sent returns the delivered messages
func (m *MockEmailSender) Sent() []*email.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*email.Message(nil), m.sent...)
}

// SentTo returns the messages delivered to addr
func (m *MockEmailSender) SentTo(addr string) []*email.Message {
	out := make([]*email.Message, 0)
	for _, msg := range m.Sent() {
		if msg.To == addr {
			out = append(out, msg)
		}
	}
	return out
}

func (m *MockEmailSender) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = nil
	m.calls = 0
	m.Failures = 0
	m.Err = nil
}
