package cli

import (
	"bytes"
	"context"
	"io"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// syncBuffer provides thread-safe access to a bytes.Buffer.
type syncBuffer struct {
	buf bytes.Buffer
	mu  sync.Mutex
}

func (s *syncBuffer) Write(p []byte) (n int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.Write(p)
}

func (s *syncBuffer) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.String()
}

func TestNewInterruptHandler(t *testing.T) {
	tests := []struct {
		writer io.Writer
		name   string
	}{
		{
			name:   "with custom writer",
			writer: &bytes.Buffer{},
		},
		{
			name:   "with nil writer",
			writer: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewInterruptHandler(tt.writer)
			assert.NotNil(t, handler)
			assert.NotNil(t, handler.writer)
			assert.False(t, handler.interrupted)
		})
	}
}

func TestWatch_SignalCancels(t *testing.T) {
	output := &syncBuffer{}
	handler := NewInterruptHandler(output)
	handler.progress = func() (int, int) { return 3, 10 }

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	signals := make(chan os.Signal, 1)
	done := make(chan struct{})
	go func() {
		handler.watch(ctx, cancel, signals)
		close(done)
	}()

	signals <- os.Interrupt

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("watch did not return after a signal")
	}

	require.Error(t, ctx.Err())
	assert.True(t, handler.WasInterrupted())
	assert.Contains(t, output.String(), "Scoring interrupted!")
	assert.Contains(t, output.String(), "Scored 3 of 10 submissions")
}

func TestWatch_ContextDoneIsNotAnInterrupt(t *testing.T) {
	output := &syncBuffer{}
	handler := NewInterruptHandler(output)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	handler.watch(ctx, cancel, make(chan os.Signal))

	assert.False(t, handler.WasInterrupted())
	assert.Empty(t, output.String())
}

func TestShowInterruptMessage(t *testing.T) {
	tests := []struct {
		progress    func() (int, int)
		name        string
		expected    []string
		notExpected []string
	}{
		{
			name:     "with progress",
			progress: func() (int, int) { return 1, 2 },
			expected: []string{"Scoring interrupted!", "Scored 1 of 2 submissions"},
		},
		{
			name:        "without progress",
			expected:    []string{"Scoring interrupted!"},
			notExpected: []string{"Scored"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var output bytes.Buffer
			handler := &InterruptHandler{
				writer:   &output,
				progress: tt.progress,
			}

			handler.showInterruptMessage()

			outputStr := output.String()
			for _, expected := range tt.expected {
				assert.Contains(t, outputStr, expected)
			}
			for _, notExpected := range tt.notExpected {
				assert.NotContains(t, outputStr, notExpected)
			}
			assert.Equal(t, 1, strings.Count(outputStr, "Scoring interrupted!"))
		})
	}
}
