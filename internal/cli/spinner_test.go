package cli

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"
)

func TestSpinnerBasic(t *testing.T) {
	s := newSpinner("Testing...")
	s.Start()
	time.Sleep(100 * time.Millisecond)
	s.Stop()

	if s.Cancelled() {
		t.Error("Cancelled() = true after a plain Stop")
	}
}

func TestSpinnerWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	s := newSpinnerWithContext(ctx, "Testing with context...")
	s.Start()
	cancel()
	time.Sleep(100 * time.Millisecond)

	if !s.Cancelled() {
		t.Error("Spinner should be cancelled after context cancellation")
	}
	s.Stop()
}

func TestSpinnerWithTimeout(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	s := newSpinnerWithContext(ctx, "Testing with timeout...")
	s.Start()
	time.Sleep(100 * time.Millisecond)

	if !s.Cancelled() {
		t.Error("Spinner should be cancelled after context timeout")
	}
}

func TestSpinnerStopIsIdempotent(t *testing.T) {
	s := newSpinner("Testing idempotent stop...")
	s.Start()

	s.Stop()
	s.Stop()
	s.Stop()
}

func TestSpinnerStopWithoutStart(t *testing.T) {
	done := make(chan struct{})
	go func() {
		newSpinner("never started").Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop blocked on a spinner that was never started")
	}
}

func TestSpinnerDrawsOnTerminal(t *testing.T) {
	var buf bytes.Buffer
	s := newSpinner("first")
	s.w = &buf
	s.animate = true

	s.Start()
	time.Sleep(100 * time.Millisecond)
	s.SetMessage("second")
	time.Sleep(100 * time.Millisecond)
	s.Stop()

	got := buf.String()
	if !strings.Contains(got, "first") || !strings.Contains(got, "second") {
		t.Errorf("spinner output = %q, want both messages", got)
	}
}

func TestSpinnerSilentOffTerminal(t *testing.T) {
	var buf bytes.Buffer
	s := newSpinner("quiet")
	s.w = &buf
	s.animate = false

	s.Start()
	time.Sleep(100 * time.Millisecond)
	s.Stop()

	if buf.Len() != 0 {
		t.Errorf("spinner wrote %q to a non-terminal", buf.String())
	}
}

func TestSpinnerStopWithSuccess(t *testing.T) {
	var buf bytes.Buffer
	restore := captureOutput(&buf)
	defer restore()

	s := newSpinner("Testing success...")
	s.Start()
	time.Sleep(50 * time.Millisecond)
	s.StopWithSuccess("Done!")

	if !strings.Contains(buf.String(), "Done!") {
		t.Errorf("output = %q, want success message", buf.String())
	}
}

func TestSpinnerStopWithError(t *testing.T) {
	var buf bytes.Buffer
	restore := captureOutput(&buf)
	defer restore()

	s := newSpinner("Testing error...")
	s.Start()
	time.Sleep(50 * time.Millisecond)
	s.StopWithError("Failed!")

	if !strings.Contains(buf.String(), "Failed!") {
		t.Errorf("output = %q, want error message", buf.String())
	}
}
