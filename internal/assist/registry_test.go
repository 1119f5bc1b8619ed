package assist

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
)

// mockBackend is a test double for the Backend interface.
type mockBackend struct {
	name     string
	resp     *Response
	err      error
	health   *HealthStatus
	calls    atomic.Int32
	imgCalls atomic.Int32
}

func (m *mockBackend) Name() string { return m.name }

func (m *mockBackend) Complete(ctx context.Context, req Request) (*Response, error) {
	m.calls.Add(1)
	return m.resp, m.err
}

func (m *mockBackend) AnalyzeImage(ctx context.Context, req ImageRequest) (*Response, error) {
	m.imgCalls.Add(1)
	return m.resp, m.err
}

func (m *mockBackend) HealthCheck(ctx context.Context) (*HealthStatus, error) {
	return m.health, nil
}

func TestRegistryRegisterAndGet(t *testing.T) {
	r := NewRegistry()
	b := &mockBackend{name: "test"}

	r.Register("test", b)

	got, ok := r.Get("test")
	if !ok {
		t.Fatal("expected Get to return true for registered backend")
	}
	if got.Name() != "test" {
		t.Errorf("expected name %q, got %q", "test", got.Name())
	}

	if _, ok = r.Get("missing"); ok {
		t.Fatal("expected Get to return false for unregistered backend")
	}
}

func TestRegistryFirstRegisteredIsPrimary(t *testing.T) {
	r := NewRegistry()
	r.Register("first", &mockBackend{name: "first"})
	r.Register("second", &mockBackend{name: "second"})

	primary := r.Primary()
	if primary == nil || primary.Name() != "first" {
		t.Errorf("expected first registered backend as primary, got %v", primary)
	}
}

func TestRegistrySetPrimaryAndFallback(t *testing.T) {
	r := NewRegistry()
	r.Register("openai", &mockBackend{name: "openai"})
	r.Register("compat", &mockBackend{name: "compat"})
	r.SetPrimary("compat")
	r.SetFallback("openai")

	if r.Primary().Name() != "compat" {
		t.Errorf("primary: got %q", r.Primary().Name())
	}
	if r.Fallback().Name() != "openai" {
		t.Errorf("fallback: got %q", r.Fallback().Name())
	}
}

func TestCompleteWithFallback_primarySucceeds(t *testing.T) {
	primary := &mockBackend{name: "openai", resp: &Response{Text: "answer", Backend: "openai"}}
	fallback := &mockBackend{name: "compat", resp: &Response{Text: "other"}}

	r := NewRegistry()
	r.Register("openai", primary)
	r.Register("compat", fallback)
	r.SetFallback("compat")

	resp, err := r.CompleteWithFallback(context.Background(), Request{Prompt: "q"})
	if err != nil {
		t.Fatalf("CompleteWithFallback: %v", err)
	}
	if resp.Text != "answer" {
		t.Errorf("text: got %q", resp.Text)
	}
	if fallback.calls.Load() != 0 {
		t.Error("fallback must not be consulted when primary succeeds")
	}
}

func TestCompleteWithFallback_primaryFails(t *testing.T) {
	primary := &mockBackend{name: "openai", err: fmt.Errorf("rate limited")}
	fallback := &mockBackend{name: "compat", resp: &Response{Text: "rescued", Backend: "compat"}}

	r := NewRegistry()
	r.Register("openai", primary)
	r.Register("compat", fallback)
	r.SetFallback("compat")

	resp, err := r.CompleteWithFallback(context.Background(), Request{Prompt: "q"})
	if err != nil {
		t.Fatalf("CompleteWithFallback: %v", err)
	}
	if resp.Text != "rescued" {
		t.Errorf("text: got %q", resp.Text)
	}
	// Exactly one attempt each, never a retry.
	if primary.calls.Load() != 1 || fallback.calls.Load() != 1 {
		t.Errorf("calls: primary=%d fallback=%d, want 1/1", primary.calls.Load(), fallback.calls.Load())
	}
}

func TestCompleteWithFallback_bothFail(t *testing.T) {
	primary := &mockBackend{name: "openai", err: fmt.Errorf("down")}
	fallback := &mockBackend{name: "compat", err: fmt.Errorf("also down")}

	r := NewRegistry()
	r.Register("openai", primary)
	r.Register("compat", fallback)
	r.SetFallback("compat")

	_, err := r.CompleteWithFallback(context.Background(), Request{Prompt: "q"})
	if err == nil {
		t.Fatal("expected error when both backends fail")
	}
	if !strings.Contains(err.Error(), "openai") || !strings.Contains(err.Error(), "compat") {
		t.Errorf("error should name both backends: %v", err)
	}
}

func TestCompleteWithFallback_noFallbackConfigured(t *testing.T) {
	primary := &mockBackend{name: "openai", err: fmt.Errorf("down")}

	r := NewRegistry()
	r.Register("openai", primary)

	_, err := r.CompleteWithFallback(context.Background(), Request{Prompt: "q"})
	if err == nil {
		t.Fatal("expected error to surface without a fallback")
	}
	if primary.calls.Load() != 1 {
		t.Errorf("primary attempts: got %d, want exactly 1", primary.calls.Load())
	}
}

func TestCompleteWithFallback_noPrimary(t *testing.T) {
	r := NewRegistry()
	if _, err := r.CompleteWithFallback(context.Background(), Request{}); err == nil {
		t.Fatal("expected error with no backends registered")
	}
}

func TestAnalyzeImageWithFallback(t *testing.T) {
	primary := &mockBackend{name: "openai", err: fmt.Errorf("down")}
	fallback := &mockBackend{name: "compat", resp: &Response{Text: "image answer"}}

	r := NewRegistry()
	r.Register("openai", primary)
	r.Register("compat", fallback)
	r.SetFallback("compat")

	resp, err := r.AnalyzeImageWithFallback(context.Background(), ImageRequest{PNGPath: "shot.png"})
	if err != nil {
		t.Fatalf("AnalyzeImageWithFallback: %v", err)
	}
	if resp.Text != "image answer" {
		t.Errorf("text: got %q", resp.Text)
	}
	if primary.imgCalls.Load() != 1 || fallback.imgCalls.Load() != 1 {
		t.Errorf("image calls: primary=%d fallback=%d", primary.imgCalls.Load(), fallback.imgCalls.Load())
	}
}

func TestSystemPromptFor(t *testing.T) {
	tests := []struct {
		name string
		req  Request
		want string
	}{
		{
			name: "explicit coding",
			req:  Request{Kind: KindCoding, Prompt: "two sum", Language: "Go"},
			want: "programmer",
		},
		{
			name: "explicit review",
			req:  Request{Kind: KindReview, Prompt: "check this", Code: "x := 1", Language: "Go"},
			want: "reviewer",
		},
		{
			name: "explicit advice",
			req:  Request{Kind: KindAdvice, Prompt: "how do I split a tmux pane?"},
			want: "macOS",
		},
		{
			name: "code without question defaults to review",
			req:  Request{Code: "x := 1", Language: "Go"},
			want: "reviewer",
		},
		{
			name: "plain question defaults to coding",
			req:  Request{Prompt: "two sum"},
			want: "programmer",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := systemPromptFor(tt.req); !strings.Contains(got, tt.want) {
				t.Errorf("prompt %q does not mention %q", got, tt.want)
			}
		})
	}
}

func TestBuildUserPrompt(t *testing.T) {
	tests := []struct {
		name string
		req  Request
		want string
	}{
		{
			name: "prompt only",
			req:  Request{Prompt: "reverse a list"},
			want: "reverse a list",
		},
		{
			name: "code only",
			req:  Request{Code: "x = 1", Language: "Python"},
			want: "Analyze this Python code:\n\n```Python\nx = 1\n```",
		},
		{
			name: "prompt and code",
			req:  Request{Prompt: "why slow?", Code: "x = 1", Language: "Python"},
			want: "why slow?\n\n```Python\nx = 1\n```",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := buildUserPrompt(tt.req); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}
