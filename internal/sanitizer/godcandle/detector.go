// Package godcandle implements edge-triggered change-detection over the
// "god candle" rare-event records the upstream re-reports on every
// transition tick for the rest of the UTC day after one occurs.
package godcandle

import (
	"slices"

	"golang.org/x/exp/maps"

	"github.com/charleschow/rugs-sanitizer/internal/sanitizer/model"
	"github.com/charleschow/rugs-sanitizer/internal/telemetry"
)

// Detector tracks the set of god-candle game ids seen so far and reports
// true from Check only when a previously-unseen id appears.
type Detector struct {
	seenGameIDs   map[string]struct{}
	newDetections int
}

func New() *Detector {
	return &Detector{seenGameIDs: make(map[string]struct{})}
}

// Check reports whether daily contains a god-candle game id not seen
// before. A nil daily or one with no populated tier is always false.
func (d *Detector) Check(daily *model.DailyRecords) bool {
	if !daily.HasGodCandle() {
		return false
	}

	currentIDs := daily.GodCandleGameIDs()
	var newIDs []string
	for _, id := range currentIDs {
		if _, seen := d.seenGameIDs[id]; !seen {
			newIDs = append(newIDs, id)
		}
	}
	if len(newIDs) == 0 {
		return false
	}

	for _, id := range newIDs {
		d.seenGameIDs[id] = struct{}{}
		telemetry.Infof("god candle: new detection game_id=%s", id)
	}
	d.newDetections++
	telemetry.Metrics.NewDetections.Inc()
	telemetry.Metrics.TrackedGameIDs.Set(int64(len(d.seenGameIDs)))

	return true
}

// Stats is a point-in-time snapshot for the /stats HTTP surface.
type Stats struct {
	NewDetections  int      `json:"new_detections"`
	TrackedGameIDs int      `json:"tracked_game_ids"`
	SeenGameIDs    []string `json:"-"`
}

func (d *Detector) GetStats() Stats {
	return Stats{
		NewDetections:  d.newDetections,
		TrackedGameIDs: len(d.seenGameIDs),
		SeenGameIDs:    slices.Collect(maps.Keys(d.seenGameIDs)),
	}
}
