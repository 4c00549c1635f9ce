package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
)

// InterruptHandler cancels a batch run on SIGINT or SIGTERM and tells the
// user how far it got.
type InterruptHandler struct {
	writer      io.Writer
	progress    func() (done, total int)
	interrupted bool
	mu          sync.Mutex
}

// NewInterruptHandler creates a new interrupt handler.
func NewInterruptHandler(writer io.Writer) *InterruptHandler {
	if writer == nil {
		writer = os.Stderr
	}
	return &InterruptHandler{
		writer: writer,
	}
}

// HandleInterrupts returns a context canceled on the first interrupt. progress,
// if set, is reported in the interrupt message.
func (h *InterruptHandler) HandleInterrupts(ctx context.Context, progress func() (done, total int)) context.Context {
	h.progress = progress

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	ctx, cancel := context.WithCancel(ctx)
	go func() {
		defer signal.Stop(sigChan)
		h.watch(ctx, cancel, sigChan)
	}()
	return ctx
}

// watch waits for a signal or for ctx to end on its own.
func (h *InterruptHandler) watch(ctx context.Context, cancel context.CancelFunc, signals <-chan os.Signal) {
	select {
	case <-signals:
		h.mu.Lock()
		if !h.interrupted {
			h.interrupted = true
			h.showInterruptMessage()
		}
		h.mu.Unlock()
		cancel()
	case <-ctx.Done():
	}
}

func (h *InterruptHandler) showInterruptMessage() {
	msg := "\n\n" + FormatWarning("Scoring interrupted!")

	if h.progress != nil {
		done, total := h.progress()
		msg += "\n" + FormatInfo(fmt.Sprintf("Scored %d of %d submissions before stopping", done, total))
	}

	msg += "\n"

	if _, err := fmt.Fprint(h.writer, msg); err != nil {
		// Best effort - we're shutting down anyway
		fmt.Fprintf(os.Stderr, "Failed to write interrupt message: %v\n", err)
	}
}

// WasInterrupted returns true if the process was interrupted.
func (h *InterruptHandler) WasInterrupted() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.interrupted
}
