package unit

import (
	"errors"
	"testing"

	"github.com/kailas-cloud/docscan/internal/domain"
)

func task() Task {
	return Task{Seq: 3, Page: domain.Page{Document: "b.pdf", Index: 2}}
}

func TestNewRouted(t *testing.T) {
	if r := NewRouted(task(), true); r.State() != StateIncluded {
		t.Errorf("State() = %q, want %q", r.State(), StateIncluded)
	}
	r := NewRouted(task(), false)
	if r.State() != StateExcluded {
		t.Errorf("State() = %q, want %q", r.State(), StateExcluded)
	}
	if !r.State().Terminal() {
		t.Error("excluded should be terminal")
	}
}

func TestNewExtracted(t *testing.T) {
	vals := []domain.ExtractedValue{{Section: "A", Value: domain.Text("1")}}
	r := NewExtracted(task(), vals)
	if r.State() != StateExtracted || len(r.Values()) != 1 || r.Err() != nil {
		t.Errorf("unexpected result: %+v", r)
	}
	if r.Page().Key() != "b.pdf#2" {
		t.Errorf("Page().Key() = %q", r.Page().Key())
	}
}

func TestNewFailed(t *testing.T) {
	err := errors.New("timeout")
	r := NewFailed(task(), err)
	if r.State() != StateFailed {
		t.Errorf("State() = %q", r.State())
	}
	if !errors.Is(r.Err(), err) {
		t.Errorf("Err() = %v", r.Err())
	}
	if r.Task().Seq != 3 {
		t.Errorf("Task().Seq = %d", r.Task().Seq)
	}
}

func TestStateTerminal(t *testing.T) {
	if StatePending.Terminal() || StateIncluded.Terminal() {
		t.Error("pending/included must not be terminal")
	}
	if !NewSkipped(task(), nil).State().Terminal() {
		t.Error("skipped must be terminal")
	}
}
