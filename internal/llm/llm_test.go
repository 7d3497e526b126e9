package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNoOpSummarizeUnavailable(t *testing.T) {
	var c Client = NoOp{}
	summary, err := c.Summarize(t.Context(), "some document text", 256)
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, Summary{}, summary)
}

func TestNoOpClassifyUnavailable(t *testing.T) {
	var c Client = NoOp{}
	entities, err := c.Classify(t.Context(), "some document text", Schema{Types: []string{"person"}})
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Nil(t, entities)
}
