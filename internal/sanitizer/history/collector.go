// Package history implements the history collector supplement: a smart
// gameHistory export strategy gated by a rolling rug counter, with a
// god-candle override and a bounded dedup set as a redundant safety net.
package history

import (
	"github.com/charleschow/rugs-sanitizer/internal/sanitizer/model"
	"github.com/charleschow/rugs-sanitizer/internal/telemetry"
)

const maxTrackedIDs = 1000

// Stats is a point-in-time snapshot for the /stats HTTP surface.
type Stats struct {
	RugsSeen            int `json:"rugs_seen"`
	CollectionsTriggered int `json:"collections_triggered"`
	RecordsCollected    int `json:"records_collected"`
	GodCandleCaptures   int `json:"god_candle_captures"`
	DuplicatesSkipped   int `json:"duplicates_skipped"`
	NextCollectionIn    int `json:"next_collection_in"`
	CollectionInterval  int `json:"collection_interval"`
	TrackedIDs          int `json:"tracked_ids"`
}

// Collector decides which rug events warrant exporting GameHistoryRecords
// to an external sink. The upstream's rolling window holds exactly 10
// games and shifts by one per completion; capturing every Nth rug (N=10
// by default) yields zero overlap between captures.
type Collector struct {
	interval int

	stats        Stats
	capturedIDs  map[string]struct{}
	insertOrder  []string
}

func New(interval int) *Collector {
	if interval <= 0 {
		interval = 10
	}
	return &Collector{
		interval:    interval,
		capturedIDs: make(map[string]struct{}),
		stats:       Stats{CollectionInterval: interval, NextCollectionIn: interval},
	}
}

func (c *Collector) RugCount() int { return c.stats.RugsSeen }

// NextCollectionIn is the number of rugs until the next scheduled
// (non-god-candle-triggered) collection.
func (c *Collector) NextCollectionIn() int {
	return c.interval - (c.stats.RugsSeen % c.interval)
}

// OnRug is called when a rug transition is detected. raw is the parsed
// gameHistory array carried on that event, if any. It returns the records
// actually collected — empty if this rug did not trigger a collection, or
// if it did but no gameHistory data was present.
func (c *Collector) OnRug(raw []model.GameHistoryRecord, hasGodCandle bool) []model.GameHistoryRecord {
	c.stats.RugsSeen++
	telemetry.Metrics.RugsSeen.Inc()

	shouldCollect := c.stats.RugsSeen%c.interval == 0

	if hasGodCandle {
		shouldCollect = true
		c.stats.GodCandleCaptures++
		telemetry.Infof("history: god candle detected, forcing collection")
	}

	if !shouldCollect {
		return nil
	}

	if len(raw) == 0 {
		telemetry.Warnf("history: collection triggered but no gameHistory data present")
		return nil
	}

	return c.collect(raw)
}

func (c *Collector) collect(raw []model.GameHistoryRecord) []model.GameHistoryRecord {
	c.stats.CollectionsTriggered++
	var records []model.GameHistoryRecord

	for _, rec := range raw {
		if rec.ID == "" {
			continue
		}
		if _, dup := c.capturedIDs[rec.ID]; dup {
			c.stats.DuplicatesSkipped++
			telemetry.Metrics.SkippedGating.Inc()
			continue
		}

		c.capturedIDs[rec.ID] = struct{}{}
		c.insertOrder = append(c.insertOrder, rec.ID)
		if len(c.capturedIDs) > maxTrackedIDs {
			oldest := c.insertOrder[0]
			c.insertOrder = c.insertOrder[1:]
			delete(c.capturedIDs, oldest)
		}

		records = append(records, rec)
		c.stats.RecordsCollected++
		telemetry.Metrics.Collected.Inc()
	}

	if len(records) > 0 {
		telemetry.Infof("history: collected %d records (rug #%d, total: %d)",
			len(records), c.stats.RugsSeen, c.stats.RecordsCollected)
	}

	return records
}

func (c *Collector) GetStats() Stats {
	s := c.stats
	s.NextCollectionIn = c.NextCollectionIn()
	s.TrackedIDs = len(c.capturedIDs)
	return s
}
