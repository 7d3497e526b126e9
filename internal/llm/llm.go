// Package llm defines the collaborator interface the annotate runner's
// summarize and entities stages consume. The core treats responses as
// opaque JSON, validates shape, and records the result as an annotation
// (spec.md §6). Real network wiring to a provider is the named external
// collaborator; this package ships only a deterministic no-op client for
// tests and standalone operation.
package llm

import (
	"context"
	"errors"
)

// ErrUnavailable is returned by a Client that has no backing provider
// configured, mirroring ocr.ErrUnavailable for the same reason: the core
// must run and test without a real provider wired in.
var ErrUnavailable = errors.New("llm: no provider configured")

// Summary is the result of Summarize.
type Summary struct {
	Synopsis string
	Tags     []string
}

// Entity is one classified entity, matching store.DocumentEntity's shape
// minus the document linkage the caller adds when persisting.
type Entity struct {
	Type       string // person, organization, location, date, other
	Text       string
	Normalized string
	Latitude   *float64
	Longitude  *float64
}

// Schema describes what kinds of entities Classify should look for. An
// empty Schema means "all supported entity types."
type Schema struct {
	Types []string
}

// Client is the annotation pipeline's LLM collaborator.
type Client interface {
	Summarize(ctx context.Context, text string, maxTokens int) (Summary, error)
	Classify(ctx context.Context, text string, schema Schema) ([]Entity, error)
}

// NoOp is a deterministic Client that always reports ErrUnavailable. It
// lets the annotate runner's summarize/entities stages be exercised in
// tests without a real provider, recording a failed-but-versioned
// annotation result per spec.md §4.G's failure handling.
type NoOp struct{}

func (NoOp) Summarize(context.Context, string, int) (Summary, error) {
	return Summary{}, ErrUnavailable
}

func (NoOp) Classify(context.Context, string, Schema) ([]Entity, error) {
	return nil, ErrUnavailable
}
