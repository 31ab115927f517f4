package pipeline

import (
	"bytes"
	"context"
	"errors"
	"math"
	"os"
	"testing"

	"github.com/matzehuels/barsheet/pkg/barcode"
	errs "github.com/matzehuels/barsheet/pkg/errors"
	"github.com/matzehuels/barsheet/pkg/scope"
	"github.com/matzehuels/barsheet/pkg/sheet"
)

// countingEncoder tracks how many symbols are alive.
type countingEncoder struct {
	calls    []string
	failAt   int // 1-based call that fails; 0 never fails
	failWith error
	live     int
}

func (e *countingEncoder) Encode(text string) (*barcode.Symbol, error) {
	e.calls = append(e.calls, text)
	if e.failAt > 0 && len(e.calls) == e.failAt {
		return nil, e.failWith
	}
	e.live++
	return barcode.NewSymbol(text, "fake", []bool{true, false, true}, func() { e.live-- }), nil
}

// recordingLayouter records the symbols it was given.
type recordingLayouter struct {
	got   []string
	grid  sheet.Grid
	err   error
	doc   []byte
	calls int
}

func (l *recordingLayouter) Layout(symbols []*barcode.Symbol, _ sheet.Properties, grid sheet.Grid) ([]byte, error) {
	l.calls++
	l.grid = grid
	l.got = l.got[:0]
	for _, s := range symbols {
		l.got = append(l.got, s.Text)
	}
	if l.err != nil {
		return nil, l.err
	}
	if err := grid.Check(len(symbols)); err != nil {
		return nil, err
	}
	return l.doc, nil
}

// memTarget is an in-memory commit target.
type memTarget struct {
	data    []byte
	commits int
	err     error
}

func (m *memTarget) Commit(data []byte) error {
	m.commits++
	if m.err != nil {
		return m.err
	}
	m.data = bytes.Clone(data)
	return nil
}

func (m *memTarget) Path() string { return "/mem/sheet.ps" }

func TestGenerateScenario(t *testing.T) {
	enc := &countingEncoder{}
	lay := &recordingLayouter{doc: []byte("%!PS\n")}
	target := &memTarget{}
	r := NewRunner(enc, lay, nil)

	requests := []Request{{"ABC123", 2}, {"", 5}, {"XYZ999", 0}}
	got, err := r.Generate(context.Background(), requests, sheet.DefaultProperties(), sheet.Grid{Rows: 1, Cols: 2}, target)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if got != "/mem/sheet.ps" {
		t.Errorf("artifact = %q", got)
	}
	if len(enc.calls) != 2 || enc.calls[0] != "ABC123" || enc.calls[1] != "ABC123" {
		t.Errorf("encode calls = %v, want ABC123 twice", enc.calls)
	}
	if len(lay.got) != 2 {
		t.Errorf("layout got %d symbols, want 2", len(lay.got))
	}
	if enc.live != 0 {
		t.Errorf("%d symbols still alive after success", enc.live)
	}
	if string(target.data) != "%!PS\n" {
		t.Errorf("committed %q", target.data)
	}
}

func TestGenerateScenarioWrongGrid(t *testing.T) {
	enc := &countingEncoder{}
	target := &memTarget{}
	r := NewRunner(enc, &recordingLayouter{}, nil)

	requests := []Request{{"ABC123", 2}, {"", 5}, {"XYZ999", 0}}
	_, err := r.Generate(context.Background(), requests, sheet.DefaultProperties(), sheet.Grid{Rows: 2, Cols: 2}, target)
	if !errs.Is(err, errs.ErrCodeInvalidLayout) {
		t.Fatalf("Generate() error = %v, want INVALID_LAYOUT", err)
	}
	if target.commits != 0 {
		t.Error("invalid layout reached the commit stage")
	}
	if enc.live != 0 {
		t.Errorf("%d symbols still alive", enc.live)
	}
}

func TestGenerateEncodeFailureReleasesSymbols(t *testing.T) {
	codes := []errs.Code{
		errs.ErrCodeDataLength,
		errs.ErrCodeCharInvalid,
		errs.ErrCodeInvalidCodeSet,
		errs.ErrCodeArgument,
	}
	for _, code := range codes {
		t.Run(string(code), func(t *testing.T) {
			failure := errs.New(code, "boom")
			enc := &countingEncoder{failAt: 3, failWith: failure}
			lay := &recordingLayouter{}
			target := &memTarget{}
			r := NewRunner(enc, lay, nil)

			requests := []Request{{"A", 2}, {"B", 3}}
			_, err := r.Generate(context.Background(), requests, sheet.DefaultProperties(), sheet.Grid{Rows: 1, Cols: 5}, target)
			if !errors.Is(err, failure) {
				t.Fatalf("Generate() error = %v, want the encoder's error unchanged", err)
			}
			if errs.GetCode(err) != code {
				t.Errorf("code = %s, want %s", errs.GetCode(err), code)
			}
			if len(enc.calls) != 3 {
				t.Errorf("encode calls = %d, want 3 (abort after first failure)", len(enc.calls))
			}
			if enc.live != 0 {
				t.Errorf("%d symbols still alive after failure", enc.live)
			}
			if lay.calls != 0 || target.commits != 0 {
				t.Error("later stages ran after an encode failure")
			}
		})
	}
}

func TestGenerateLayoutErrorPassesThrough(t *testing.T) {
	layoutErr := errs.New(errs.ErrCodeInvalidProperty, "bar too wide")
	enc := &countingEncoder{}
	r := NewRunner(enc, &recordingLayouter{err: layoutErr}, nil)

	_, err := r.Generate(context.Background(), []Request{{"A", 1}}, sheet.DefaultProperties(), sheet.Grid{Rows: 1, Cols: 1}, &memTarget{})
	if !errors.Is(err, layoutErr) {
		t.Fatalf("Generate() error = %v, want layout error unchanged", err)
	}
	if enc.live != 0 {
		t.Errorf("%d symbols still alive", enc.live)
	}
}

func TestGenerateCommitFailure(t *testing.T) {
	commitErr := errs.New(errs.ErrCodeFlushFailed, "disk full")
	enc := &countingEncoder{}
	r := NewRunner(enc, &recordingLayouter{doc: []byte("doc")}, nil)

	_, err := r.Generate(context.Background(), []Request{{"A", 1}}, sheet.DefaultProperties(), sheet.Grid{Rows: 1, Cols: 1}, &memTarget{err: commitErr})
	if !errs.Is(err, errs.ErrCodeFlushFailed) {
		t.Fatalf("Generate() error = %v, want FLUSH_FAILED", err)
	}
	if enc.live != 0 {
		t.Errorf("%d symbols still alive", enc.live)
	}
}

func TestGenerateCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	enc := &countingEncoder{}
	_, err := NewRunner(enc, &recordingLayouter{}, nil).
		Generate(ctx, []Request{{"A", 2}}, sheet.DefaultProperties(), sheet.Grid{Rows: 1, Cols: 2}, &memTarget{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Generate() error = %v, want context.Canceled", err)
	}
	if len(enc.calls) != 0 {
		t.Errorf("encoded %d instances after cancellation", len(enc.calls))
	}
}

func TestGenerateNilTarget(t *testing.T) {
	_, err := NewRunner(nil, nil, nil).Generate(context.Background(), nil, sheet.DefaultProperties(), sheet.DefaultGrid, nil)
	if !errs.Is(err, errs.ErrCodeArgument) {
		t.Fatalf("Generate() error = %v, want ARGUMENT_ERROR", err)
	}
}

// TestGenerateIntoScope runs the real encoder and layouter against a scope
// and checks that a failing call leaves the previous document in place.
func TestGenerateIntoScope(t *testing.T) {
	sc, err := scope.Open(scope.WithParent(t.TempDir()))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer sc.Close()

	r := NewRunner(nil, nil, nil)
	ctx := context.Background()

	art, err := r.Generate(ctx, []Request{{"ABC123", 2}}, sheet.DefaultProperties(), sheet.Grid{Rows: 1, Cols: 2}, sc)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if string(art) != sc.Path() {
		t.Errorf("artifact = %q, want %q", art, sc.Path())
	}
	first, err := os.ReadFile(sc.Path())
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !bytes.HasPrefix(first, []byte("%!PS")) || !bytes.Contains(first, []byte("showpage")) {
		t.Fatalf("committed file is not a complete document")
	}

	failing := [][]Request{
		{{"ABC123", 3}},                        // grid mismatch
		{{"ÄÖÜ", 2}},                           // invalid characters
		{{"THIS-TEXT-IS-WAY-TOO-LONG-123", 2}}, // over the length bound
	}
	for _, reqs := range failing {
		if _, err := r.Generate(ctx, reqs, sheet.DefaultProperties(), sheet.Grid{Rows: 1, Cols: 2}, sc); err == nil {
			t.Fatalf("Generate(%v) succeeded, want error", reqs)
		}
		after, err := os.ReadFile(sc.Path())
		if err != nil {
			t.Fatalf("ReadFile: %v", err)
		}
		if !bytes.Equal(first, after) {
			t.Fatalf("failed Generate(%v) changed the committed file", reqs)
		}
	}
}

func TestGenerateRejectsOversizedRequests(t *testing.T) {
	tests := []struct {
		name     string
		requests []Request
	}{
		{"overflowing total", []Request{{"A", math.MaxInt}, {"B", math.MaxInt}}},
		{"one huge quantity", []Request{{"A", MaxInstances + 1}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			enc := &countingEncoder{}
			target := &memTarget{}
			r := NewRunner(enc, &recordingLayouter{}, nil)

			_, err := r.Generate(context.Background(), tt.requests, sheet.DefaultProperties(), sheet.Grid{Rows: 1, Cols: 2}, target)
			if !errs.Is(err, errs.ErrCodeArgument) {
				t.Fatalf("Generate() error = %v, want ARGUMENT_ERROR", err)
			}
			if len(enc.calls) != 0 {
				t.Errorf("encoder called %d times, want 0", len(enc.calls))
			}
			if target.commits != 0 {
				t.Error("target committed despite rejected request")
			}
		})
	}
}
