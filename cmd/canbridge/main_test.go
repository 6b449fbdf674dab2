package main

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"k8s.io/klog/v2"
)

// TestRunWithShutdownReturnsLoopError verifies that a frame loop dying on its
// own terminal error surfaces that error to the caller without waiting for an
// OS signal.
func TestRunWithShutdownReturnsLoopError(t *testing.T) {
	logger := klog.NewKlogr()
	fatal := errors.New("input bus gone")

	done := make(chan error, 1)
	go func() {
		done <- runWithShutdown(&logger, nil, func(ctx context.Context) error {
			return fatal
		})
	}()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, fatal)
	case <-time.After(2 * time.Second):
		t.Fatal("runWithShutdown did not return after the frame loop terminated")
	}
}

// TestRunWithShutdownSwallowsContextCanceled verifies that an orderly
// cancellation exit maps to a nil error.
func TestRunWithShutdownSwallowsContextCanceled(t *testing.T) {
	logger := klog.NewKlogr()

	err := runWithShutdown(&logger, nil, func(ctx context.Context) error {
		return context.Canceled
	})
	assert.NoError(t, err)
}

// TestRunWithShutdownRunsCleanupsAfterLoopExit verifies that cleanup
// functions run in order even when the loop exits with a terminal error.
func TestRunWithShutdownRunsCleanupsAfterLoopExit(t *testing.T) {
	logger := klog.NewKlogr()

	var order []string
	err := runWithShutdown(&logger, nil,
		func(ctx context.Context) error { return errors.New("output bus gone") },
		func() { order = append(order, "first") },
		func() { order = append(order, "second") },
	)
	assert.Error(t, err)
	assert.Equal(t, []string{"first", "second"}, order)
}

// TestInitLoggerVariants verifies the logger wiring in both development and
// release modes.
func TestInitLoggerVariants(t *testing.T) {
	// Development mode logs synchronously and has no async writer.
	logger, asyncWriter := initLogger(false, false)
	assert.NotNil(t, logger)
	assert.Nil(t, asyncWriter)

	// Release mode wires the async writer into the logger.
	logger, asyncWriter = initLogger(true, true)
	assert.NotNil(t, logger)
	if assert.NotNil(t, asyncWriter) {
		asyncWriter.Stop()
	}
}
