// Package scope owns the process-lifetime temporary file that every
// generation writes into.
//
// A [Scope] is a private temporary directory holding one backing file.
// The backing file path is stable for the scope's lifetime; each
// [Scope.Commit] replaces its contents atomically, so a failed commit never
// leaves a mix of old and new content behind. [Scope.Close] removes
// everything the scope created.
//
//	sc, err := scope.Open()
//	if err != nil {
//	    return err
//	}
//	defer sc.Close()
//
//	if err := sc.Commit(postscript); err != nil {
//	    return err
//	}
//	fmt.Println(sc.Path())
package scope

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	errs "github.com/matzehuels/barsheet/pkg/errors"
)

const (
	// DefaultPattern is the os.MkdirTemp pattern for the scope directory.
	DefaultPattern = "barsheet-*"

	// DefaultFileName is the backing file name inside the scope directory.
	DefaultFileName = "sheet.ps"

	stagingPattern = ".stage-*"
)

// Option configures Open.
type Option func(*options)

type options struct {
	parent   string
	fileName string
}

// WithParent creates the scope directory under parent instead of os.TempDir.
func WithParent(dir string) Option {
	return func(o *options) { o.parent = dir }
}

// WithFileName overrides the backing file name.
func WithFileName(name string) Option {
	return func(o *options) { o.fileName = name }
}

// stagingFile is the subset of *os.File that Commit writes through.
type stagingFile interface {
	io.Writer
	Sync() error
	Close() error
	Name() string
}

func createStaging(dir, pattern string) (stagingFile, error) {
	return os.CreateTemp(dir, pattern)
}

// Scope is a temporary directory plus one backing file.
// Commit and Close are safe for concurrent use.
type Scope struct {
	mu     sync.Mutex
	dir    string
	path   string
	file   *os.File // held for the scope's lifetime, reopened after each commit
	closed bool

	create func(dir, pattern string) (stagingFile, error)
}

// Open creates the scope directory and its empty backing file.
// Any failure is reported as TEMP_CREATION_FAILED and whatever was already
// created is removed before returning.
func Open(opts ...Option) (*Scope, error) {
	o := options{fileName: DefaultFileName}
	for _, opt := range opts {
		opt(&o)
	}
	if o.fileName == "" || filepath.Base(o.fileName) != o.fileName {
		return nil, errs.New(errs.ErrCodeTempCreationFailed, "invalid backing file name %q", o.fileName)
	}

	dir, err := os.MkdirTemp(o.parent, DefaultPattern)
	if err != nil {
		return nil, errs.Wrap(errs.ErrCodeTempCreationFailed, err, "create temporary directory")
	}
	dir, err = filepath.Abs(dir)
	if err != nil {
		_ = os.RemoveAll(dir)
		return nil, errs.Wrap(errs.ErrCodeTempCreationFailed, err, "resolve temporary directory")
	}

	path := filepath.Join(dir, o.fileName)
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		_ = os.RemoveAll(dir)
		return nil, errs.Wrap(errs.ErrCodeTempCreationFailed, err, "create %s", path)
	}

	s := &Scope{dir: dir, path: path, file: f, create: createStaging}
	runtime.SetFinalizer(s, func(s *Scope) { _ = s.Close() })
	return s, nil
}

// Path returns the absolute path of the backing file.
func (s *Scope) Path() string { return s.path }

// Dir returns the absolute path of the scope directory.
func (s *Scope) Dir() string { return s.dir }

// Commit replaces the backing file contents with data.
//
// The data is staged in a sibling file, synced, and renamed over the backing
// path. Errors map to FILE_RESET_FAILED (staging file could not be created),
// FILE_WRITE_FAILED (write or rename) and FLUSH_FAILED (sync or close).
// On failure the staging file is removed and the backing file keeps its
// previous contents.
func (s *Scope) Commit(data []byte) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errs.New(errs.ErrCodeFileResetFailed, "scope %s is closed", s.dir)
	}

	stage, err := s.create(s.dir, stagingPattern)
	if err != nil {
		return errs.Wrap(errs.ErrCodeFileResetFailed, err, "create staging file")
	}
	staged := stage.Name()
	defer func() {
		if err != nil {
			_ = stage.Close()
			_ = os.Remove(staged)
		}
	}()

	if _, err = stage.Write(data); err != nil {
		return errs.Wrap(errs.ErrCodeFileWriteFailed, err, "write %s", staged)
	}
	if err = stage.Sync(); err != nil {
		return errs.Wrap(errs.ErrCodeFlushFailed, err, "sync %s", staged)
	}
	if err = stage.Close(); err != nil {
		return errs.Wrap(errs.ErrCodeFlushFailed, err, "close %s", staged)
	}

	// Windows refuses to rename over an open file.
	if s.file != nil {
		_ = s.file.Close()
		s.file = nil
	}
	if err = os.Rename(staged, s.path); err != nil {
		s.file, _ = os.OpenFile(s.path, os.O_RDWR, 0o600)
		return errs.Wrap(errs.ErrCodeFileWriteFailed, err, "replace %s", s.path)
	}
	s.file, _ = os.OpenFile(s.path, os.O_RDWR, 0o600)
	return nil
}

// Close closes the held handle and removes the backing file and directory.
// Both steps are attempted; failures are returned joined, as CLOSE_FAILED
// and REMOVE_FAILED. Calling Close again is a no-op.
func (s *Scope) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	runtime.SetFinalizer(s, nil)

	var closeErr, removeErr error
	if s.file != nil {
		if err := s.file.Close(); err != nil {
			closeErr = errs.Wrap(errs.ErrCodeCloseFailed, err, "close %s", s.path)
		}
		s.file = nil
	}
	if err := os.RemoveAll(s.dir); err != nil {
		removeErr = errs.Wrap(errs.ErrCodeRemoveFailed, err, "remove %s", s.dir)
	}
	return errors.Join(closeErr, removeErr)
}
