package draw

import (
	"errors"
	"testing"

	"prizedraw/internal/models"
)

func resultOf(ids ...string) models.DrawResult {
	res := models.DrawResult{ID: "draw-1"}
	for _, id := range ids {
		res.Selected = append(res.Selected, models.Entry{ParticipantID: id, DisplayName: "user " + id})
	}
	return res
}

func TestNewReveal(t *testing.T) {
	t.Run("Test starts revealing with nothing shown", func(t *testing.T) {
		r, err := NewReveal(resultOf("a", "b", "c"), 1)
		if err != nil {
			t.Fatalf("Expected no error, but got %v", err)
		}
		if r.Phase() != PhaseRevealing {
			t.Errorf("Expected phase revealing, got %s", r.Phase())
		}
		if step := r.Current(); step.Outcome != models.OutcomePending {
			t.Errorf("Expected pending outcome before first advance, got %s", step.Outcome)
		}
	})

	t.Run("Test empty result is terminal", func(t *testing.T) {
		r, err := NewReveal(resultOf(), 2)
		if err != nil {
			t.Fatalf("Expected no error, but got %v", err)
		}
		if r.Phase() != PhaseEmpty {
			t.Fatalf("Expected phase empty, got %s", r.Phase())
		}
		next, step := r.Advance()
		if next.Phase() != PhaseEmpty || step.Outcome != models.OutcomeNoParticipants {
			t.Errorf("Expected empty reveal to stay empty, got %s / %s", next.Phase(), step.Outcome)
		}
		if r.TargetIndex() != -1 {
			t.Errorf("Expected target -1 for empty draw, got %d", r.TargetIndex())
		}
	})

	t.Run("Test invariant violations", func(t *testing.T) {
		cases := map[string]struct {
			result models.DrawResult
			depth  int
		}{
			"negative depth":        {resultOf("a", "b"), -1},
			"duplicate participant": {resultOf("a", "b", "a"), 0},
			"blank participant":     {resultOf("a", " "), 0},
		}
		for name, tc := range cases {
			if _, err := NewReveal(tc.result, tc.depth); !errors.Is(err, ErrInvariantViolation) {
				t.Errorf("%s: expected ErrInvariantViolation, got %v", name, err)
			}
		}
	})
}

func TestRevealAdvance(t *testing.T) {
	t.Run("Test first attempt is the winner", func(t *testing.T) {
		r, _ := NewReveal(resultOf("a", "b", "c"), 0)
		r, step := r.Advance()
		if !step.IsWinner() || step.Position != 1 || step.Entry.ParticipantID != "a" {
			t.Fatalf("Expected winner a at position 1, got %+v", step)
		}
		if r.Phase() != PhaseFinalized {
			t.Errorf("Expected finalized, got %s", r.Phase())
		}
	})

	t.Run("Test non-winners precede the winner", func(t *testing.T) {
		r, _ := NewReveal(resultOf("a", "b", "c"), 2)
		want := []struct {
			outcome models.Outcome
			id      string
		}{
			{models.OutcomeNonWinner, "a"},
			{models.OutcomeNonWinner, "b"},
			{models.OutcomeWinner, "c"},
		}
		for i, w := range want {
			var step models.RevealStep
			r, step = r.Advance()
			if step.Outcome != w.outcome || step.Entry.ParticipantID != w.id || step.Position != i+1 {
				t.Fatalf("step %d: expected %s %s at %d, got %+v", i+1, w.outcome, w.id, i+1, step)
			}
		}
	})

	t.Run("Test depth beyond selection is clamped to the last entry", func(t *testing.T) {
		r, _ := NewReveal(resultOf("a", "b"), 2)
		if r.TargetIndex() != 1 {
			t.Fatalf("Expected target index 1, got %d", r.TargetIndex())
		}
		r, step := r.Advance()
		if step.IsWinner() || step.Position != 1 {
			t.Fatalf("Expected non-winner at position 1, got %+v", step)
		}
		r, step = r.Advance()
		if !step.IsWinner() || step.Position != 2 || step.Entry.ParticipantID != "b" {
			t.Fatalf("Expected winner b at position 2, got %+v", step)
		}
		if r.Phase() != PhaseFinalized {
			t.Errorf("Expected finalized, got %s", r.Phase())
		}
	})

	t.Run("Test finalized reveal is idempotent", func(t *testing.T) {
		r, _ := NewReveal(resultOf("a", "b", "c"), 1)
		r, _ = r.Advance()
		r, winner := r.Advance()
		for i := 0; i < 5; i++ {
			var step models.RevealStep
			r, step = r.Advance()
			if step != winner {
				t.Fatalf("advance %d after finalize changed the step: %+v != %+v", i, step, winner)
			}
		}
		if r.Current() != winner {
			t.Errorf("Current drifted after finalize: %+v", r.Current())
		}
	})

	t.Run("Test advance does not mutate the receiver", func(t *testing.T) {
		start, _ := NewReveal(resultOf("a", "b", "c"), 2)
		next, _ := start.Advance()
		if start.Started() {
			t.Error("Expected original reveal to remain unstarted")
		}
		if !next.Started() {
			t.Error("Expected advanced reveal to be started")
		}
	})

	t.Run("Test caller mutation does not leak into reveal", func(t *testing.T) {
		res := resultOf("a", "b")
		r, _ := NewReveal(res, 0)
		res.Selected[0].ParticipantID = "changed"
		_, step := r.Advance()
		if step.Entry.ParticipantID != "a" {
			t.Errorf("Expected reveal to keep its own copy, got %s", step.Entry.ParticipantID)
		}
	})
}

func TestDrawScenarios(t *testing.T) {
	t.Run("Test full house", func(t *testing.T) {
		pool := poolOf(10, "p1", "p2", "p3", "p4", "p5")
		selected := Select(pool, 3, seeded(11))
		if len(selected) != 3 {
			t.Fatalf("Expected 3 winners, got %d", len(selected))
		}
		assertUnique(t, selected)

		r, err := NewReveal(models.DrawResult{Selected: selected}, 0)
		if err != nil {
			t.Fatalf("Expected no error, but got %v", err)
		}
		_, step := r.Advance()
		if !step.IsWinner() || step.Position != 1 {
			t.Errorf("Expected immediate winner at position 1, got %+v", step)
		}
	})

	t.Run("Test shortfall", func(t *testing.T) {
		pool := poolOf(10, "p1", "p2")
		selected := Select(pool, 3, seeded(12))
		if len(selected) != 2 {
			t.Fatalf("Expected 2 winners, got %d", len(selected))
		}

		r, err := NewReveal(models.DrawResult{Selected: selected}, 2)
		if err != nil {
			t.Fatalf("Expected no error, but got %v", err)
		}
		r, step := r.Advance()
		if step.IsWinner() {
			t.Fatalf("Expected first advance to show a non-winner, got %+v", step)
		}
		_, step = r.Advance()
		if !step.IsWinner() || step.Position != 2 {
			t.Errorf("Expected winner at position 2, got %+v", step)
		}
	})

	t.Run("Test no eligible entries", func(t *testing.T) {
		pool := []models.Entry{{DisplayName: "anon"}, {ParticipantID: "  ", DisplayName: "anon"}}
		selected := Select(pool, 3, seeded(13))
		if len(selected) != 0 {
			t.Fatalf("Expected no winners, got %+v", selected)
		}
		r, err := NewReveal(models.DrawResult{Selected: selected}, 1)
		if err != nil {
			t.Fatalf("Expected no error, but got %v", err)
		}
		if r.Phase() != PhaseEmpty || r.Current().Outcome != models.OutcomeNoParticipants {
			t.Errorf("Expected no-participants state, got %s / %s", r.Phase(), r.Current().Outcome)
		}
	})
}
