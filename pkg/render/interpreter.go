package render

import "context"

// Interpreter runs PostScript in a long-lived interpreter instance.
//
// Run returns the script's exit code; a non-zero code means the script
// failed but the instance is still usable. A non-nil error means the
// instance is unusable and must be closed.
type Interpreter interface {
	Run(ctx context.Context, script string) (exitCode int, err error)
	Close() error
}

// Starter creates a new interpreter instance.
type Starter func(ctx context.Context) (Interpreter, error)
