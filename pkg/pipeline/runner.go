package pipeline

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/barsheet/pkg/barcode"
	errs "github.com/matzehuels/barsheet/pkg/errors"
	"github.com/matzehuels/barsheet/pkg/observability"
	"github.com/matzehuels/barsheet/pkg/sheet"
)

// Target is where a generated document is committed. *scope.Scope
// implements it.
type Target interface {
	Commit(data []byte) error
	Path() string
}

// Runner executes the generation pipeline.
//
// The Runner holds no per-call state: symbols and the PostScript buffer
// live only for the duration of one Generate call.
type Runner struct {
	Encoder  barcode.Encoder
	Layouter sheet.Layouter
	Logger   *log.Logger
}

// NewRunner creates a runner. A nil encoder defaults to Code 128 with the
// default length bound, a nil layouter to an A4 PostScript sheet and a nil
// logger to a discarding logger.
func NewRunner(enc barcode.Encoder, layouter sheet.Layouter, logger *log.Logger) *Runner {
	if enc == nil {
		enc = barcode.NewCode128(DefaultMaxLength)
	}
	if layouter == nil {
		layouter = sheet.NewPostScript()
	}
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Runner{Encoder: enc, Layouter: layouter, Logger: logger}
}

// Generate encodes every requested instance, lays them out on one sheet and
// commits the document to target. It returns the target's path.
//
// Encoder, layouter and commit errors are returned unchanged so callers can
// branch on their codes. On any failure the target keeps its previous
// contents.
func (r *Runner) Generate(ctx context.Context, requests []Request, props sheet.Properties, grid sheet.Grid, target Target) (_ Artifact, err error) {
	if target == nil {
		return "", errs.New(errs.ErrCodeArgument, "no output target")
	}

	if n := Count(requests); n > MaxInstances {
		return "", errs.New(errs.ErrCodeArgument, "%d labels requested, at most %d allowed", n, MaxInstances)
	}

	texts := Expand(requests)
	start := time.Now()
	hooks := observability.Pipeline()
	hooks.OnGenerateStart(ctx, len(requests))
	defer func() {
		hooks.OnGenerateComplete(ctx, len(texts), time.Since(start), err)
	}()

	batch := &symbolBatch{}
	defer batch.release()

	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return "", fmt.Errorf("generate: %w", err)
		}
		sym, err := r.Encoder.Encode(text)
		if err != nil {
			r.Logger.Debug("encode failed", "instance", i+1, "of", len(texts), "text", text, "error", err)
			return "", err
		}
		batch.add(sym)
	}

	doc, err := r.Layouter.Layout(batch.symbols, props, grid)
	if err != nil {
		return "", err
	}
	if err := target.Commit(doc); err != nil {
		return "", err
	}

	r.Logger.Info("generated sheet",
		"instances", len(texts),
		"grid", fmt.Sprintf("%dx%d", grid.Rows, grid.Cols),
		"bytes", len(doc),
		"duration", time.Since(start))
	return Artifact(target.Path()), nil
}

// symbolBatch owns the symbols encoded during one Generate call.
type symbolBatch struct {
	symbols []*barcode.Symbol
}

func (b *symbolBatch) add(s *barcode.Symbol) {
	b.symbols = append(b.symbols, s)
}

func (b *symbolBatch) release() {
	for _, s := range b.symbols {
		s.Release()
	}
	clear(b.symbols)
	b.symbols = nil
}
