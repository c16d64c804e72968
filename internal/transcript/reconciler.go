// Package transcript folds recognition events into the single running string
// shown to the user.
package transcript

import (
	"fmt"
	"strings"

	"github.com/loqalabs/loqa-interpret/internal/recognition"
)

// Mode selects how finals in an event are combined. It is fixed for the
// lifetime of a listening session.
type Mode int

const (
	// Accumulating concatenates every final result plus the trailing interim.
	Accumulating Mode = iota
	// Conservative keeps only the most recent final plus the current interim,
	// for recognizers that re-send overlapping finals.
	Conservative
)

func (m Mode) String() string {
	switch m {
	case Accumulating:
		return "accumulating"
	case Conservative:
		return "conservative"
	default:
		return fmt.Sprintf("unknown(%d)", int(m))
	}
}

// ParseMode accepts "accumulating" or "conservative"; empty means accumulating.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "accumulating":
		return Accumulating, nil
	case "conservative":
		return Conservative, nil
	default:
		return Accumulating, fmt.Errorf("unknown transcript mode %q", s)
	}
}

// Accumulate renders one event in accumulating mode.
func Accumulate(results []recognition.Result) string {
	if len(results) == 0 {
		return ""
	}
	var b strings.Builder
	for _, r := range results {
		if r.IsFinal {
			b.WriteString(r.Transcript())
			b.WriteByte(' ')
		}
	}
	if last := results[len(results)-1]; !last.IsFinal {
		b.WriteString(last.Transcript())
	}
	return strings.TrimSpace(b.String())
}

// Latest renders one event in conservative mode.
func Latest(results []recognition.Result) string {
	var lastFinal, interim string
	for _, r := range results {
		if r.IsFinal {
			lastFinal = r.Transcript() + " "
		} else {
			interim = r.Transcript()
		}
	}
	return strings.TrimSpace(lastFinal + interim)
}

// Reconciler holds the display string across the streams of one listening
// session. Text produced by an earlier stream is kept as a prefix when the
// stream is reopened.
type Reconciler struct {
	mode    Mode
	base    string
	display string
}

func NewReconciler(mode Mode) *Reconciler {
	return &Reconciler{mode: mode}
}

func (r *Reconciler) Mode() Mode { return r.mode }

// Apply folds one event into the display string and returns it.
func (r *Reconciler) Apply(results []recognition.Result) string {
	var current string
	if r.mode == Conservative {
		current = Latest(results)
	} else {
		current = Accumulate(results)
	}
	r.display = join(r.base, current)
	return r.display
}

// Rebase commits the current display so a reopened stream appends to it.
func (r *Reconciler) Rebase() {
	r.base = r.display
}

// Replace sets the display to text typed by the user. The next event from the
// open stream overwrites it; a rebase keeps it.
func (r *Reconciler) Replace(text string) {
	r.display = text
}

// Reset clears all state.
func (r *Reconciler) Reset() {
	r.base = ""
	r.display = ""
}

func (r *Reconciler) Display() string { return r.display }

func join(base, current string) string {
	switch {
	case base == "":
		return current
	case current == "":
		return base
	default:
		return strings.TrimSpace(base) + " " + current
	}
}
