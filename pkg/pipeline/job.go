package pipeline

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	errs "github.com/matzehuels/barsheet/pkg/errors"
	"github.com/matzehuels/barsheet/pkg/sheet"
)

// Job is a barcode sheet described in a TOML file:
//
//	[[barcode]]
//	text = "ABC123"
//	quantity = 2
//
//	[layout]
//	rows = 1
//	cols = 2
//
//	[properties]
//	units = "mm"
//	bar_height = 12
//
// Missing sections take their defaults.
//
// The same structure is accepted as JSON when the file name ends in .json.
type Job struct {
	Barcodes   []Request        `toml:"barcode" json:"barcode"`
	Layout     sheet.Grid       `toml:"layout" json:"layout"`
	Properties sheet.Properties `toml:"properties" json:"properties"`
}

// NewJob returns an empty job with default layout and properties.
func NewJob() *Job {
	return &Job{Layout: DefaultGrid, Properties: sheet.DefaultProperties()}
}

// LoadJob reads and parses a job file.
func LoadJob(path string) (*Job, error) {
	return LoadJobOnto(path, NewJob())
}

// LoadJobOnto reads a job file and decodes it on top of base, so keys the
// file omits keep base's values. base is modified.
func LoadJobOnto(path string, base *Job) (*Job, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.Wrap(errs.ErrCodeInvalidInput, err, "read job file")
	}
	parse := ParseJobOnto
	if strings.EqualFold(filepath.Ext(path), ".json") {
		parse = ParseJobJSONOnto
	}
	job, err := parse(data, base)
	if err != nil {
		return nil, fmt.Errorf("job file %s: %w", path, err)
	}
	return job, nil
}

// ParseJob decodes a job from TOML. Keys that do not belong to a job are
// reported as errors so typos do not silently fall back to defaults.
func ParseJob(data []byte) (*Job, error) {
	return ParseJobOnto(data, NewJob())
}

// ParseJobOnto decodes a job from TOML on top of job.
func ParseJobOnto(data []byte, job *Job) (*Job, error) {
	if job == nil {
		job = NewJob()
	}
	md, err := toml.Decode(string(data), job)
	if err != nil {
		return nil, errs.Wrap(errs.ErrCodeInvalidInput, err, "parse job")
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, errs.New(errs.ErrCodeInvalidInput, "unknown keys: %s", strings.Join(keys, ", "))
	}
	if err := job.Validate(); err != nil {
		return nil, err
	}
	return job, nil
}

// ParseJobJSONOnto decodes a JSON job on top of job. Unknown fields are
// errors, as with TOML.
func ParseJobJSONOnto(data []byte, job *Job) (*Job, error) {
	if job == nil {
		job = NewJob()
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(job); err != nil {
		return nil, errs.Wrap(errs.ErrCodeInvalidInput, err, "parse job")
	}
	if dec.More() {
		return nil, errs.New(errs.ErrCodeInvalidInput, "trailing data after job object")
	}
	if err := job.Validate(); err != nil {
		return nil, err
	}
	return job, nil
}

// WriteJSON encodes the job as indented JSON.
func (j *Job) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(j); err != nil {
		return errs.Wrap(errs.ErrCodeFileWriteFailed, err, "encode job")
	}
	return nil
}

// Validate checks the parts of a job that do not depend on encoding.
// Grid size against instance count is checked by the layouter.
func (j *Job) Validate() error {
	if len(j.Barcodes) > MaxRequests {
		return errs.New(errs.ErrCodeInvalidInput, "%d barcodes listed, at most %d allowed", len(j.Barcodes), MaxRequests)
	}
	for _, r := range j.Barcodes {
		if r.Quantity > MaxQuantity {
			return errs.New(errs.ErrCodeInvalidInput, "quantity %d for %q exceeds %d", r.Quantity, r.Text, MaxQuantity)
		}
	}
	if Count(j.Barcodes) == 0 {
		return errs.New(errs.ErrCodeInvalidInput, "no barcode has both text and a positive quantity")
	}
	return j.Properties.Validate()
}
