package history

import (
	"testing"

	"github.com/charleschow/rugs-sanitizer/internal/sanitizer/model"
)

func recs(ids ...string) []model.GameHistoryRecord {
	out := make([]model.GameHistoryRecord, len(ids))
	for i, id := range ids {
		out[i] = model.GameHistoryRecord{ID: id}
	}
	return out
}

func TestOnRug_NoCollectionBeforeInterval(t *testing.T) {
	c := New(10)
	for i := 0; i < 9; i++ {
		got := c.OnRug(recs("g"), false)
		if got != nil {
			t.Fatalf("rug #%d: expected no collection before the interval, got %v", i+1, got)
		}
	}
}

func TestOnRug_CollectsOnIntervalBoundary(t *testing.T) {
	c := New(3)
	c.OnRug(recs("g1"), false)
	c.OnRug(recs("g2"), false)
	got := c.OnRug(recs("g3"), false)
	if len(got) != 1 || got[0].ID != "g3" {
		t.Errorf("expected collection of [g3] on the 3rd rug, got %v", got)
	}
}

func TestOnRug_GodCandleForcesImmediateCollection(t *testing.T) {
	c := New(10)
	got := c.OnRug(recs("g1"), true)
	if len(got) != 1 || got[0].ID != "g1" {
		t.Errorf("expected god candle to force collection of [g1], got %v", got)
	}
	if c.GetStats().GodCandleCaptures != 1 {
		t.Errorf("expected GodCandleCaptures=1, got %d", c.GetStats().GodCandleCaptures)
	}
}

func TestOnRug_NoDataPresentReturnsEmpty(t *testing.T) {
	c := New(1)
	got := c.OnRug(nil, false)
	if got != nil {
		t.Errorf("expected nil when collection triggered but no gameHistory data present, got %v", got)
	}
}

func TestOnRug_DedupSkipsAlreadyCaptured(t *testing.T) {
	c := New(1)
	c.OnRug(recs("g1"), false)
	got := c.OnRug(recs("g1"), false)
	if len(got) != 0 {
		t.Errorf("expected duplicate id to be skipped, got %v", got)
	}
	if c.GetStats().DuplicatesSkipped != 1 {
		t.Errorf("expected DuplicatesSkipped=1, got %d", c.GetStats().DuplicatesSkipped)
	}
}

func TestNextCollectionIn(t *testing.T) {
	c := New(10)
	if got := c.NextCollectionIn(); got != 10 {
		t.Errorf("expected NextCollectionIn=10 before any rugs, got %d", got)
	}
	c.OnRug(recs("g1"), false)
	if got := c.NextCollectionIn(); got != 9 {
		t.Errorf("expected NextCollectionIn=9 after 1 rug, got %d", got)
	}
}
