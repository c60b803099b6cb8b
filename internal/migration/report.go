package migration

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/andresuchdata/mediastore/internal/storage"
)

// Target is one backend/bucket pair a job walks.
type Target struct {
	Store  storage.ObjectStore
	Bucket string
}

func (t Target) String() string {
	return t.Store.Name() + "/" + t.Bucket
}

// Report is the outcome of a best-effort batch job. A job never aborts on a
// single object; failures are collected per target.
type Report struct {
	mu        sync.Mutex
	Processed int
	Skipped   int
	Errors    map[string][]error
}

func newReport() *Report {
	return &Report{Errors: make(map[string][]error)}
}

func (r *Report) success() {
	r.mu.Lock()
	r.Processed++
	r.mu.Unlock()
}

func (r *Report) skip() {
	r.mu.Lock()
	r.Skipped++
	r.mu.Unlock()
}

func (r *Report) fail(target string, err error) {
	r.mu.Lock()
	r.Errors[target] = append(r.Errors[target], err)
	r.mu.Unlock()
}

// Failed returns the number of collected failures across all targets.
func (r *Report) Failed() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, errs := range r.Errors {
		n += len(errs)
	}
	return n
}

// Err joins every failure, or returns nil when the job fully succeeded.
func (r *Report) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	targets := make([]string, 0, len(r.Errors))
	for t := range r.Errors {
		targets = append(targets, t)
	}
	sort.Strings(targets)

	var all []error
	for _, t := range targets {
		for _, err := range r.Errors[t] {
			all = append(all, fmt.Errorf("%s: %w", t, err))
		}
	}
	return errors.Join(all...)
}
