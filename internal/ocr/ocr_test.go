package ocr

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNoOpName(t *testing.T) {
	assert.Equal(t, "noop", NoOp{}.Name())
}

func TestNoOpRunUnavailable(t *testing.T) {
	var b Backend = NoOp{}
	result, err := b.Run(t.Context(), PageImage{PageID: 1, PageNumber: 1, Format: "png"})
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, Result{}, result)
}
