package cli

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewInterruptHandler(t *testing.T) {
	assert.NotNil(t, NewInterruptHandler(nil).writer)

	var out bytes.Buffer
	h := NewInterruptHandler(&out)
	assert.False(t, h.WasInterrupted())
}

func TestInterruptHandler_Interrupt(t *testing.T) {
	var out bytes.Buffer
	h := NewInterruptHandler(&out)
	h.hint = "Resume with: qflow queue review"

	h.interrupt()
	h.interrupt()

	assert.True(t, h.WasInterrupted())
	assert.Equal(t, 1, bytes.Count(out.Bytes(), []byte("Interrupted!")))
	assert.Contains(t, out.String(), "qflow queue review")
}

func TestInterruptHandler_ParentCancel(t *testing.T) {
	var out bytes.Buffer
	h := NewInterruptHandler(&out)

	parent, cancel := context.WithCancel(context.Background())
	ctx := h.HandleInterrupts(parent, "")
	cancel()

	<-ctx.Done()
	assert.False(t, h.WasInterrupted())
	assert.Empty(t, out.String())
}
