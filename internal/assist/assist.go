// Package assist sends coding questions and screenshots to an AI backend
// and returns the answer text. Requests are single-attempt with a bounded
// timeout; retries are the caller's decision, never silent.
package assist

import (
	"context"
	"time"
)

// DefaultTimeout bounds one backend attempt.
const DefaultTimeout = 45 * time.Second

// Kind selects the assistant persona for a text query.
type Kind string

const (
	KindCoding Kind = "coding" // solve a programming problem
	KindReview Kind = "review" // review or debug attached code
	KindAdvice Kind = "advice" // general macOS and workflow advice
)

// Request is a text assistance query.
type Request struct {
	Kind     Kind   // persona; empty means coding
	Prompt   string // the user's question or problem statement
	Code     string // optional code the question refers to
	Language string // programming language for code answers
}

// ImageRequest is a screenshot analysis query.
type ImageRequest struct {
	PNGPath  string // path to a PNG screenshot
	Prompt   string // what to do with the image
	Language string
}

// Response is a completed backend answer.
type Response struct {
	Text    string
	Model   string
	Backend string
	Elapsed time.Duration
}

// HealthStatus reports backend health.
type HealthStatus struct {
	OK      bool
	Backend string
	Message string
	Latency time.Duration
}

// Backend is the interface assist backends must implement. Implementations
// make exactly one attempt per call and honor ctx deadlines.
type Backend interface {
	Name() string
	Complete(ctx context.Context, req Request) (*Response, error)
	AnalyzeImage(ctx context.Context, req ImageRequest) (*Response, error)
	HealthCheck(ctx context.Context) (*HealthStatus, error)
}
