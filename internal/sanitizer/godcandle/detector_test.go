package godcandle

import (
	"testing"

	"github.com/charleschow/rugs-sanitizer/internal/sanitizer/model"
)

func tierWithGameID(id string) *model.GodCandleTier {
	if id == "" {
		return nil
	}
	return &model.GodCandleTier{GameID: id}
}

func TestCheck_NilDailyRecords(t *testing.T) {
	d := New()
	if d.Check(nil) {
		t.Error("expected false for nil DailyRecords")
	}
}

func TestCheck_NoPopulatedTier(t *testing.T) {
	d := New()
	daily := &model.DailyRecords{}
	if d.Check(daily) {
		t.Error("expected false when no tier is populated")
	}
}

func TestCheck_FirstSeenIsNew(t *testing.T) {
	d := New()
	daily := &model.DailyRecords{Tier2x: tierWithGameID("gc-A")}
	if !d.Check(daily) {
		t.Error("expected true on first sighting of a god candle game id")
	}
	if d.GetStats().NewDetections != 1 {
		t.Errorf("expected NewDetections=1, got %d", d.GetStats().NewDetections)
	}
}

func TestCheck_RepeatedStaleReportIsNotNew(t *testing.T) {
	d := New()
	daily := &model.DailyRecords{Tier2x: tierWithGameID("gc-A")}

	d.Check(daily)
	if d.Check(daily) {
		t.Error("expected false on repeated stale re-report of the same game id")
	}
}

func TestCheck_SecondDistinctTierIsNew(t *testing.T) {
	d := New()
	first := &model.DailyRecords{Tier2x: tierWithGameID("gc-A")}
	d.Check(first)

	second := &model.DailyRecords{Tier2x: tierWithGameID("gc-A"), Tier10x: tierWithGameID("gc-B")}
	if !d.Check(second) {
		t.Error("expected true when a second, distinct god candle game id appears")
	}
	if d.GetStats().TrackedGameIDs != 2 {
		t.Errorf("expected TrackedGameIDs=2, got %d", d.GetStats().TrackedGameIDs)
	}
}
