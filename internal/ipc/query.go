package ipc

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
)

// QueryKind selects which assistant persona answers a staged query.
type QueryKind string

const (
	QueryCoding QueryKind = "coding" // Solve a programming problem
	QueryReview QueryKind = "review" // Review or debug attached code
	QueryAdvice QueryKind = "advice" // General macOS / workflow advice
)

// Query is a text question staged by the UI for the daemon. The UI writes it
// to query.json and then sends CmdAsk; the daemon reads and clears the file
// the same way it handles cmd.txt.
type Query struct {
	Kind     QueryKind `json:"kind"`
	Prompt   string    `json:"prompt"`
	Code     string    `json:"code,omitempty"`     // Optional code attachment
	Language string    `json:"language,omitempty"` // Language of the attachment
}

// QueryPath returns the staged query location, ~/.cache/veil/query.json.
func QueryPath() string {
	return filepath.Join(os.Getenv("HOME"), ".cache", "veil", "query.json")
}

// WriteQuery stages a query for the daemon. An empty prompt is rejected so a
// stray CmdAsk never reaches the AI backend with nothing to answer.
func WriteQuery(q *Query) error {
	if strings.TrimSpace(q.Prompt) == "" {
		return os.ErrInvalid
	}
	cacheDir := filepath.Join(os.Getenv("HOME"), ".cache", "veil")
	if err := os.MkdirAll(cacheDir, 0755); err != nil {
		return err
	}
	return atomicWriteJSON(QueryPath(), q)
}

// ReadQuery reads and clears the staged query. Returns nil when no query is
// pending, mirroring ReadCommand's single-slot semantics.
func ReadQuery() (*Query, error) {
	data, err := os.ReadFile(QueryPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	// Clear the slot immediately so a repeated CmdAsk does not re-answer
	if err := os.Remove(QueryPath()); err != nil && !os.IsNotExist(err) {
		return nil, err
	}

	if len(data) == 0 {
		return nil, nil
	}

	var q Query
	if err := json.Unmarshal(data, &q); err != nil {
		return nil, err
	}
	if strings.TrimSpace(q.Prompt) == "" {
		return nil, nil
	}
	if q.Kind == "" {
		q.Kind = QueryCoding
	}
	return &q, nil
}
