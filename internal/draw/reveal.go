package draw

import (
	"errors"
	"fmt"

	"prizedraw/internal/models"
)

// ErrInvariantViolation is returned when a reveal is built from input the
// selector can never produce.
var ErrInvariantViolation = errors.New("draw invariant violation")

// Phase is the state of a Reveal.
type Phase int

const (
	// PhaseRevealing covers both "nothing shown yet" and "a non-winner is
	// on screen".
	PhaseRevealing Phase = iota
	PhaseFinalized
	// PhaseEmpty is terminal: the draw selected nobody.
	PhaseEmpty
)

func (p Phase) String() string {
	switch p {
	case PhaseRevealing:
		return "revealing"
	case PhaseFinalized:
		return "finalized"
	case PhaseEmpty:
		return "empty"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// Reveal walks an operator through the selected entries of a draw, showing
// non-winners until the target attempt is reached and the winner is shown.
//
// A Reveal is a value. Advance returns the next state and leaves the
// receiver untouched, so a discarded Reveal can never leak into a new draw.
type Reveal struct {
	result models.DrawResult
	depth  int
	cursor int
	shown  bool
	phase  Phase
}

// NewReveal prepares the reveal of result with the winner configured at the
// zero-based depth attempt. When fewer entries were selected than depth
// asks for, the last selected entry is the winner.
//
// A negative depth or a result with blank or repeated participant IDs is
// rejected with ErrInvariantViolation.
func NewReveal(result models.DrawResult, depth int) (Reveal, error) {
	if depth < 0 {
		return Reveal{}, fmt.Errorf("%w: negative depth %d", ErrInvariantViolation, depth)
	}

	seen := make(map[string]int, len(result.Selected))
	for i := range result.Selected {
		key := participantKey(result.Selected[i])
		if key == "" {
			return Reveal{}, fmt.Errorf("%w: selected entry %d has no participant id", ErrInvariantViolation, i)
		}
		if prev, ok := seen[key]; ok {
			return Reveal{}, fmt.Errorf("%w: participant %q selected at %d and %d", ErrInvariantViolation, key, prev, i)
		}
		seen[key] = i
	}

	result.Selected = append([]models.Entry(nil), result.Selected...)
	r := Reveal{result: result, depth: depth}
	if len(result.Selected) == 0 {
		r.phase = PhaseEmpty
	}
	return r, nil
}

// Advance moves the reveal one step and returns the new state along with
// what it exposes. A finalized or empty reveal returns itself, so repeated
// calls keep exposing the same winner.
func (r Reveal) Advance() (Reveal, models.RevealStep) {
	if r.phase != PhaseRevealing {
		return r, r.Current()
	}

	next := r
	if next.shown {
		next.cursor++
	}
	next.shown = true
	if next.cursor == next.TargetIndex() {
		next.phase = PhaseFinalized
	}
	return next, next.Current()
}

// Current returns what is on screen without changing state.
func (r Reveal) Current() models.RevealStep {
	switch {
	case r.phase == PhaseEmpty:
		return models.RevealStep{Outcome: models.OutcomeNoParticipants}
	case !r.shown:
		return models.RevealStep{Outcome: models.OutcomePending}
	case r.phase == PhaseFinalized:
		return models.RevealStep{Outcome: models.OutcomeWinner, Entry: r.result.Selected[r.cursor], Position: r.cursor + 1}
	default:
		return models.RevealStep{Outcome: models.OutcomeNonWinner, Entry: r.result.Selected[r.cursor], Position: r.cursor + 1}
	}
}

// TargetIndex is the index of the entry that will be revealed as the
// winner: the configured depth clamped to the last selected entry.
// It is -1 for an empty draw.
func (r Reveal) TargetIndex() int {
	if len(r.result.Selected) == 0 {
		return -1
	}
	return min(r.depth, len(r.result.Selected)-1)
}

func (r Reveal) Phase() Phase { return r.phase }

func (r Reveal) Depth() int { return r.depth }

// Started reports whether at least one entry has been shown.
func (r Reveal) Started() bool { return r.shown }

// Result returns the draw being revealed. The returned Selected slice is a
// copy.
func (r Reveal) Result() models.DrawResult {
	res := r.result
	res.Selected = append([]models.Entry(nil), r.result.Selected...)
	return res
}
