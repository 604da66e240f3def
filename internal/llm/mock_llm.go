package llm

import (
	"context"
	"fmt"
	"sync"
)

// MockFunctionCaller is a deterministic FunctionCaller for testing.
// It replays Responses in order and repeats the last one once exhausted.
type MockFunctionCaller struct {
	// Name is reported as the called function.
	Name string

	// Responses are JSON objects returned as function arguments.
	Responses []string

	// Error, if set, is returned by Call instead of a response.
	Error error

	mu           sync.Mutex
	calls        int
	lastMessages []Message
}

// NewMockFunctionCaller creates a mock answering with the given arguments.
func NewMockFunctionCaller(name string, responses ...string) *MockFunctionCaller {
	return &MockFunctionCaller{Name: name, Responses: responses}
}

// NewMockFunctionCallerWithError creates a mock that always fails.
func NewMockFunctionCallerWithError(err error) *MockFunctionCaller {
	return &MockFunctionCaller{Error: err}
}

// Call records the messages and returns the next configured response.
func (m *MockFunctionCaller) Call(ctx context.Context, messages []Message) (*FunctionCall, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls++
	m.lastMessages = append([]Message(nil), messages...)

	if m.Error != nil {
		return nil, m.Error
	}
	if len(m.Responses) == 0 {
		return nil, fmt.Errorf("%w: mock has no responses", ErrNoToolCall)
	}

	idx := m.calls - 1
	if idx >= len(m.Responses) {
		idx = len(m.Responses) - 1
	}
	return parseArguments(m.Name, m.Responses[idx])
}

// Calls returns how many times Call was invoked.
func (m *MockFunctionCaller) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// LastMessages returns the messages passed to the most recent Call.
func (m *MockFunctionCaller) LastMessages() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastMessages
}

// LastPrompt returns the content of the last message of the most recent Call.
func (m *MockFunctionCaller) LastPrompt() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.lastMessages) == 0 {
		return ""
	}
	return m.lastMessages[len(m.lastMessages)-1].Content
}
