// Package ocr defines the collaborator interface the annotate runner's ocr
// stage dispatches to. Real OCR engines are the named external
// collaborator (spec.md §1, §6); this package ships a no-op backend so the
// core runs and tests standalone.
package ocr

import (
	"context"
	"errors"
)

// ErrUnavailable is returned by a Backend with no engine wired in.
var ErrUnavailable = errors.New("ocr: backend unavailable")

// PageImage is the input to one OCR attempt: the rendered page bytes plus
// enough context to log a meaningful PageOcrResult row.
type PageImage struct {
	PageID     int64
	PageNumber int
	Format     string // "png", "jpeg", ...
	Bytes      []byte
}

// Result is one OCR attempt's output, matching store.PageOcrResult's
// content fields (the caller attaches PageID/Backend/CreatedAt).
type Result struct {
	Text       string
	Confidence float64
	DurationMS int64
}

// Backend is one OCR engine. Name identifies it for PageOcrResult.Backend
// (the natural key alongside page_id that idempotent upserts key on).
type Backend interface {
	Name() string
	Run(ctx context.Context, page PageImage) (Result, error)
}

// NoOp always reports ErrUnavailable. The annotate runner records this as
// a page status of "failed" rather than blocking the pipeline, per
// spec.md §4.G's failure-handling rule.
type NoOp struct{}

func (NoOp) Name() string { return "noop" }

func (NoOp) Run(context.Context, PageImage) (Result, error) {
	return Result{}, ErrUnavailable
}
