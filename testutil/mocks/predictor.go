// MockPredictor is a scriptable llm.Predictor for tests.
//
// It replays scripted completions in order, routes prompts containing a
// given substring to fixed completions, and supports error injection.
package mocks

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/elokus/StructGenie/llm"
)

// --- MockPredictor ---

// MockPredictor implements llm.Predictor.
type MockPredictor struct {
	mu sync.Mutex

	// Responses
	response  string
	responses []string
	routes    []route
	err       error

	// Token usage reported per call
	promptTokens     int
	completionTokens int

	// Recorded calls
	calls       []MockPredictorCall
	predictFunc func(ctx context.Context, req *llm.Request) (string, llm.Metrics, error)

	// Behaviour
	delay     time.Duration
	failAfter int
	callCount int
}

type route struct {
	contains string
	response string
}

// MockPredictorCall records one Predict call.
type MockPredictorCall struct {
	Prompt   string
	Request  llm.Request
	Response string
	Error    error
}

// --- Constructor and builder methods ---

// NewMockPredictor creates a MockPredictor answering "Output: mock".
func NewMockPredictor() *MockPredictor {
	return &MockPredictor{
		response:         "Output: mock",
		promptTokens:     10,
		completionTokens: 20,
	}
}

// WithResponse sets the completion returned once the script is exhausted.
func (m *MockPredictor) WithResponse(response string) *MockPredictor {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.response = response
	return m
}

// WithResponses scripts completions returned in order, one per call.
func (m *MockPredictor) WithResponses(responses ...string) *MockPredictor {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = append(m.responses, responses...)
	return m
}

// WithRoute answers every prompt containing substr with response. Routes
// take precedence over the script.
func (m *MockPredictor) WithRoute(substr, response string) *MockPredictor {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.routes = append(m.routes, route{contains: substr, response: response})
	return m
}

// WithError makes every call fail with err.
func (m *MockPredictor) WithError(err error) *MockPredictor {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
	return m
}

// WithTokenUsage sets the usage reported per call.
func (m *MockPredictor) WithTokenUsage(prompt, completion int) *MockPredictor {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.promptTokens = prompt
	m.completionTokens = completion
	return m
}

// WithDelay delays every call. The delay honours context cancellation.
func (m *MockPredictor) WithDelay(d time.Duration) *MockPredictor {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = d
	return m
}

// WithFailAfter makes every call after the n-th fail.
func (m *MockPredictor) WithFailAfter(n int) *MockPredictor {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failAfter = n
	return m
}

// WithPredictFunc replaces the scripted behaviour. Calls are still recorded.
func (m *MockPredictor) WithPredictFunc(fn func(ctx context.Context, req *llm.Request) (string, llm.Metrics, error)) *MockPredictor {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.predictFunc = fn
	return m
}

// --- llm.Predictor ---

// Predict implements llm.Predictor.
func (m *MockPredictor) Predict(ctx context.Context, req *llm.Request) (string, llm.Metrics, error) {
	m.mu.Lock()
	delay := m.delay
	m.mu.Unlock()
	if delay > 0 {
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			m.record(req, "", ctx.Err())
			return "", llm.Metrics{}, ctx.Err()
		case <-timer.C:
		}
	}

	m.mu.Lock()
	m.callCount++
	fn := m.predictFunc
	switch {
	case m.failAfter > 0 && m.callCount > m.failAfter:
		m.mu.Unlock()
		err := errors.New("mock predictor: configured to fail after N calls")
		m.record(req, "", err)
		return "", llm.Metrics{}, err
	case m.err != nil:
		err := m.err
		m.mu.Unlock()
		m.record(req, "", err)
		return "", llm.Metrics{}, err
	}
	if fn != nil {
		m.mu.Unlock()
		text, metrics, err := fn(ctx, req)
		m.record(req, text, err)
		return text, metrics, err
	}
	text := m.next(req.Prompt)
	metrics := llm.Metrics{
		ExecutionTime:    delay,
		PromptTokens:     m.promptTokens,
		CompletionTokens: m.completionTokens,
		TotalTokens:      m.promptTokens + m.completionTokens,
		ModelName:        "mock-model",
	}
	m.mu.Unlock()

	m.record(req, text, nil)
	return text, metrics, nil
}

// next picks the completion for prompt. The caller holds m.mu.
func (m *MockPredictor) next(prompt string) string {
	for _, r := range m.routes {
		if strings.Contains(prompt, r.contains) {
			return r.response
		}
	}
	if len(m.responses) > 0 {
		text := m.responses[0]
		m.responses = m.responses[1:]
		return text
	}
	return m.response
}

func (m *MockPredictor) record(req *llm.Request, text string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	call := MockPredictorCall{Response: text, Error: err}
	if req != nil {
		call.Prompt = req.Prompt
		call.Request = *req
	}
	m.calls = append(m.calls, call)
}

// --- Inspection ---

// Calls returns a copy of the recorded calls.
func (m *MockPredictor) Calls() []MockPredictorCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]MockPredictorCall(nil), m.calls...)
}

// CallCount returns the number of recorded calls.
func (m *MockPredictor) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// Prompts returns the prompts of all recorded calls.
func (m *MockPredictor) Prompts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.calls))
	for i, c := range m.calls {
		out[i] = c.Prompt
	}
	return out
}

// LastPrompt returns the prompt of the latest call, or "".
func (m *MockPredictor) LastPrompt() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.calls) == 0 {
		return ""
	}
	return m.calls[len(m.calls)-1].Prompt
}

// Reset clears recorded calls and the call counter.
func (m *MockPredictor) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
	m.callCount = 0
}
