// Package unit models the outcome of one page-unit in a pipeline run.
package unit

import "github.com/kailas-cloud/docscan/internal/domain"

// State is the lifecycle position of a page-unit.
type State string

// Page-unit states: pending -> included|excluded -> extracted|skipped|failed.
const (
	StatePending   State = "pending"
	StateIncluded  State = "included"
	StateExcluded  State = "excluded"
	StateExtracted State = "extracted"
	StateSkipped   State = "skipped"
	StateFailed    State = "failed"
)

// Terminal reports whether no further work happens for the unit.
func (s State) Terminal() bool {
	switch s {
	case StateExcluded, StateExtracted, StateSkipped, StateFailed:
		return true
	}
	return false
}

// Task is the typed work item handed to a pool worker.
type Task struct {
	Seq  int // submission order, used to restore determinism
	Page domain.Page
}

// Result is the outcome of processing one page-unit.
type Result struct {
	task   Task
	state  State
	values []domain.ExtractedValue
	err    error
}

// NewRouted creates a Phase 1 result.
func NewRouted(t Task, include bool) Result {
	if include {
		return Result{task: t, state: StateIncluded}
	}
	return Result{task: t, state: StateExcluded}
}

// NewExtracted creates a successful Phase 2 result.
func NewExtracted(t Task, values []domain.ExtractedValue) Result {
	return Result{task: t, state: StateExtracted, values: values}
}

// NewSkipped creates a result for a unit that never ran.
func NewSkipped(t Task, err error) Result { return Result{task: t, state: StateSkipped, err: err} }

// NewFailed creates a failed result.
func NewFailed(t Task, err error) Result { return Result{task: t, state: StateFailed, err: err} }

// Task returns the unit's task.
func (r Result) Task() Task { return r.task }

// Page returns the unit's page.
func (r Result) Page() domain.Page { return r.task.Page }

// State returns the processing outcome.
func (r Result) State() State { return r.state }

// Values returns extracted values (Phase 2 only).
func (r Result) Values() []domain.ExtractedValue { return r.values }

// Err returns the error, if any.
func (r Result) Err() error { return r.err }
