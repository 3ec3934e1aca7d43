package phase

import (
	"encoding/json"
	"testing"

	"github.com/charleschow/rugs-sanitizer/internal/sanitizer/model"
)

func TestDetect_PriorityOrder(t *testing.T) {
	cases := []struct {
		name string
		data string
		want model.Phase
	}{
		{"active", `{"active":true,"rugged":false}`, model.PhaseActive},
		{"rugged wins over active", `{"active":true,"rugged":true}`, model.PhaseRugged},
		{"presale from timer+buys", `{"cooldownTimer":5,"allowPreRoundBuys":true}`, model.PhasePresale},
		{"cooldown from timer alone", `{"cooldownTimer":5,"allowPreRoundBuys":false}`, model.PhaseCooldown},
		{"presale from buys near zero timer", `{"cooldownTimer":0,"allowPreRoundBuys":true}`, model.PhasePresale},
		{"unknown otherwise", `{}`, model.PhaseUnknown},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := Detect(json.RawMessage(c.data))
			if got != c.want {
				t.Errorf("Detect(%s) = %s, want %s", c.data, got, c.want)
			}
		})
	}
}

func TestProcess_NoTransitionOnFirstUnknown(t *testing.T) {
	d := New()
	tr := d.Process(json.RawMessage(`{}`))
	if tr != nil {
		t.Errorf("expected no transition for first UNKNOWN classification, got %+v", tr)
	}
}

func TestProcess_NewGameTransition(t *testing.T) {
	d := New()
	d.Process(json.RawMessage(`{"gameId":"g1","active":true}`))

	tr := d.Process(json.RawMessage(`{"gameId":"g2","active":true}`))
	if tr == nil {
		t.Fatal("expected a transition on game id change")
	}
	if !tr.IsNewGame {
		t.Error("expected IsNewGame=true")
	}
	if tr.PreviousGameID != "g1" || tr.NewGameID != "g2" {
		t.Errorf("unexpected game ids: %+v", tr)
	}
	if d.GamesSeen() != 1 {
		t.Errorf("expected GamesSeen=1, got %d", d.GamesSeen())
	}
}

func TestProcess_SeedRevealOnRugWithoutGameChange(t *testing.T) {
	d := New()
	d.Process(json.RawMessage(`{"gameId":"g1","active":true}`))

	tr := d.Process(json.RawMessage(`{"gameId":"g1","rugged":true,"provablyFair":{"serverSeed":"abc"}}`))
	if tr == nil {
		t.Fatal("expected a transition into RUGGED")
	}
	if !tr.IsSeedReveal {
		t.Error("expected IsSeedReveal=true when serverSeed is populated on same-game rug")
	}
	if d.RugCount() != 1 {
		t.Errorf("expected RugCount=1, got %d", d.RugCount())
	}
}

func TestProcess_NoSeedRevealWithoutServerSeed(t *testing.T) {
	d := New()
	d.Process(json.RawMessage(`{"gameId":"g1","active":true}`))

	tr := d.Process(json.RawMessage(`{"gameId":"g1","rugged":true}`))
	if tr == nil {
		t.Fatal("expected a transition into RUGGED")
	}
	if tr.IsSeedReveal {
		t.Error("expected IsSeedReveal=false when serverSeed absent")
	}
}

func TestProcess_NoTransitionWhenNothingChanges(t *testing.T) {
	d := New()
	d.Process(json.RawMessage(`{"gameId":"g1","active":true}`))

	tr := d.Process(json.RawMessage(`{"gameId":"g1","active":true}`))
	if tr != nil {
		t.Errorf("expected no transition when phase and game id are unchanged, got %+v", tr)
	}
}
