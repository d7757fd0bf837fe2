// Package testutil provides test doubles for code that calls providers.
package testutil

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/c360studio/tripgen/llm"
)

// Responder produces the reply for one call.
type Responder func(ctx context.Context, req llm.Request) (*llm.Response, error)

// MockCompleter is a thread-safe llm.Completer routed by endpoint name.
//
// Usage:
//
//	mock := testutil.NewMockCompleter()
//	mock.On("gemini", testutil.Reply(`{"days": []}`))
//	mock.On("openai", testutil.Fail(errors.New("boom")))
type MockCompleter struct {
	mu         sync.Mutex
	responders map[string][]Responder
	calls      []llm.Request
	byTarget   map[string]int
}

// NewMockCompleter creates an empty mock.
func NewMockCompleter() *MockCompleter {
	return &MockCompleter{
		responders: make(map[string][]Responder),
		byTarget:   make(map[string]int),
	}
}

// On appends responders for an endpoint. Calls consume them in order; the
// last one repeats once exhausted.
func (m *MockCompleter) On(target string, rs ...Responder) *MockCompleter {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responders[target] = append(m.responders[target], rs...)
	return m
}

// Complete implements llm.Completer.
func (m *MockCompleter) Complete(ctx context.Context, req llm.Request) (*llm.Response, error) {
	m.mu.Lock()
	name := req.Target.Name
	m.calls = append(m.calls, req)
	n := m.byTarget[name]
	m.byTarget[name]++
	rs := m.responders[name]
	m.mu.Unlock()

	if len(rs) == 0 {
		return nil, fmt.Errorf("mock: no responder for %q", name)
	}
	r := rs[min(n, len(rs)-1)]
	return r(ctx, req)
}

// CallCount returns how many calls reached an endpoint.
func (m *MockCompleter) CallCount(target string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.byTarget[target]
}

// Calls returns a copy of every recorded request.
func (m *MockCompleter) Calls() []llm.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]llm.Request(nil), m.calls...)
}

// Reply returns fixed content.
func Reply(content string) Responder {
	return func(_ context.Context, req llm.Request) (*llm.Response, error) {
		return &llm.Response{Content: content, Model: req.Target.Model, Provider: req.Target.Name}, nil
	}
}

// Fail returns a fixed error.
func Fail(err error) Responder {
	if err == nil {
		err = errors.New("mock failure")
	}
	return func(context.Context, llm.Request) (*llm.Response, error) {
		return nil, err
	}
}

// Func adapts a plain function.
func Func(fn func(req llm.Request) (string, error)) Responder {
	return func(_ context.Context, req llm.Request) (*llm.Response, error) {
		content, err := fn(req)
		if err != nil {
			return nil, err
		}
		return &llm.Response{Content: content, Model: req.Target.Model, Provider: req.Target.Name}, nil
	}
}

// MockProvider is a scripted llm.Provider for exercising llm.Client.
type MockProvider struct {
	ProviderName string

	mu        sync.Mutex
	Responses []*llm.Response
	Errs      []error
	callCount int
}

// Name implements llm.Provider.
func (p *MockProvider) Name() string {
	return p.ProviderName
}

// Complete implements llm.Provider. Errs[i] takes precedence over Responses[i].
func (p *MockProvider) Complete(_ context.Context, _ llm.Target, _ llm.Request) (*llm.Response, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	i := p.callCount
	p.callCount++

	if i < len(p.Errs) && p.Errs[i] != nil {
		return nil, p.Errs[i]
	}
	if i < len(p.Responses) {
		resp := *p.Responses[i]
		return &resp, nil
	}
	return nil, fmt.Errorf("mock provider: no response configured for call %d", i)
}

// CallCount returns the number of calls made.
func (p *MockProvider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.callCount
}
