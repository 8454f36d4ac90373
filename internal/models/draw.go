package models

import "time"

// Entry is one eligible record in a draw pool, typically a blog comment
// together with the identity of the person who wrote it.
// Entries without a ParticipantID are never selected.
type Entry struct {
	ParticipantID  string     `json:"participantId"`
	DisplayName    string     `json:"displayName"`
	ContactHandle  string     `json:"contactHandle"`
	ContentSnippet string     `json:"contentSnippet"`
	Timestamp      *time.Time `json:"timestamp,omitempty"`
}

// DrawResult is the ordered output of a single selection.
// Index 0 is the first entry drawn.
type DrawResult struct {
	ID             string    `json:"id"`
	Selected       []Entry   `json:"selected"`
	RequestedCount int       `json:"requestedCount"`
	PoolSize       int       `json:"poolSize"`
	DrawnAt        time.Time `json:"drawnAt"`
}

// Outcome tags what a reveal step exposes.
type Outcome string

const (
	OutcomePending        Outcome = "pending"
	OutcomeNonWinner      Outcome = "non_winner"
	OutcomeWinner         Outcome = "winner"
	OutcomeNoParticipants Outcome = "no_participants"
)

// RevealStep is what the reveal engine exposes after a transition.
// Position is one-based and only meaningful for the non_winner and winner outcomes.
type RevealStep struct {
	Outcome  Outcome `json:"outcome"`
	Entry    Entry   `json:"entry"`
	Position int     `json:"position"`
}

// IsWinner reports whether the step discloses the official winner.
func (s RevealStep) IsWinner() bool {
	return s.Outcome == OutcomeWinner
}

// Attempt labels for the operator-facing depth options.
var AttemptLabels = []string{"first attempt", "second attempt", "third attempt"}

// AttemptLabel returns the display label of a zero-based depth index.
func AttemptLabel(depth int) string {
	if depth >= 0 && depth < len(AttemptLabels) {
		return AttemptLabels[depth]
	}
	return ""
}
