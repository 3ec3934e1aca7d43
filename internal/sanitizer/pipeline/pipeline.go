// Package pipeline implements the sanitization pipeline: it takes one
// opaque upstream event and turns it into zero or more typed
// SanitizedEvents on distinct logical channels, dispatching registered
// callbacks per channel.
package pipeline

import (
	"encoding/json"
	"time"

	"github.com/charleschow/rugs-sanitizer/internal/sanitizer/annotate"
	"github.com/charleschow/rugs-sanitizer/internal/sanitizer/godcandle"
	"github.com/charleschow/rugs-sanitizer/internal/sanitizer/model"
	"github.com/charleschow/rugs-sanitizer/internal/sanitizer/phase"
	"github.com/charleschow/rugs-sanitizer/internal/telemetry"
)

// Callback receives one sanitized event. A panicking callback is
// recovered and counted, never allowed to take down the pipeline or
// block sibling callbacks.
type Callback func(model.SanitizedEvent)

type rawEnvelope struct {
	EventType string          `json:"event_type"`
	Data      json.RawMessage `json:"data"`
	Timestamp string          `json:"timestamp"`
	GameID    string          `json:"game_id"`
}

// Stats are pipeline-level counters for the /stats HTTP surface.
type Stats struct {
	EventsReceived int             `json:"events_received"`
	GameEvents     int             `json:"game_events"`
	StatsEvents    int             `json:"stats_events"`
	TradeEvents    int             `json:"trade_events"`
	HistoryEvents  int             `json:"history_events"`
	OtherEvents    int             `json:"other_events"`
	ParseErrors    int             `json:"parse_errors"`
	EmptyEvents    int             `json:"empty_events"`
	Phase          phase.Stats     `json:"phase"`
	GodCandle      godcandle.Stats `json:"god_candle"`
}

// Pipeline orchestrates the phase detector, trade annotator, and
// god-candle detector, and fans each resulting record out to registered
// per-channel callbacks.
type Pipeline struct {
	phaseDetector *phase.Detector
	annotator     *annotate.Annotator
	godCandle     *godcandle.Detector

	callbacks map[model.Channel][]Callback

	stats Stats
}

func New() *Pipeline {
	return &Pipeline{
		phaseDetector: phase.New(),
		annotator:     annotate.New(),
		godCandle:     godcandle.New(),
		callbacks:     make(map[model.Channel][]Callback),
	}
}

func (p *Pipeline) PhaseDetector() *phase.Detector { return p.phaseDetector }
func (p *Pipeline) GodCandleDetector() *godcandle.Detector { return p.godCandle }

// OnEvent registers a callback for every event produced on channel.
func (p *Pipeline) OnEvent(channel model.Channel, cb Callback) {
	p.callbacks[channel] = append(p.callbacks[channel], cb)
}

// ProcessRaw parses one upstream message and routes it by event_type.
// An unparseable message or one missing event_type/data is dropped
// silently from the output channels, after bumping a counter — the
// pipeline never treats a bad message as fatal.
func (p *Pipeline) ProcessRaw(raw []byte) []model.SanitizedEvent {
	var env rawEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		p.stats.ParseErrors++
		telemetry.Metrics.ParseErrors.Inc()
		telemetry.Warnf("pipeline: failed to parse raw message as JSON: %v", err)
		return nil
	}

	if env.EventType == "" || len(env.Data) == 0 {
		p.stats.EmptyEvents++
		telemetry.Metrics.EmptyEvents.Inc()
		return nil
	}

	p.stats.EventsReceived++
	telemetry.Metrics.EventsReceived.Inc()

	timestamp := time.Now().UTC()
	if env.Timestamp != "" {
		if ts, err := time.Parse(time.RFC3339Nano, env.Timestamp); err == nil {
			timestamp = ts
		}
	}

	switch env.EventType {
	case "gameStateUpdate":
		return p.processGameState(env.Data, timestamp)
	case "standard/newTrade":
		return p.processTrade(env.Data, timestamp)
	default:
		p.stats.OtherEvents++
		telemetry.Metrics.OtherEvents.Inc()
		return nil
	}
}

func (p *Pipeline) processGameState(data json.RawMessage, timestamp time.Time) []model.SanitizedEvent {
	var events []model.SanitizedEvent

	newPhase := phase.Detect(data)
	p.phaseDetector.Process(data)

	var shitcoins struct {
		AvailableShitcoins []struct {
			Address string `json:"address"`
		} `json:"availableShitcoins"`
	}
	if err := json.Unmarshal(data, &shitcoins); err == nil && len(shitcoins.AvailableShitcoins) > 0 {
		addrs := make([]string, 0, len(shitcoins.AvailableShitcoins))
		for _, c := range shitcoins.AvailableShitcoins {
			addrs = append(addrs, c.Address)
		}
		p.annotator.UpdatePracticeTokens(addrs)
	}

	tick, err := model.GameTickFromRaw(data, newPhase)
	if err != nil {
		p.stats.ParseErrors++
		telemetry.Metrics.ParseErrors.Inc()
		return nil
	}

	// God-candle change-detection overrides the stateless flag computed by
	// GameTickFromRaw: the upstream re-reports stale god-candle data on
	// every transition tick for the rest of the UTC day.
	if tick.DailyRecords != nil {
		tick.HasGodCandle = p.godCandle.Check(tick.DailyRecords)
	}

	gameEvent := model.SanitizedEvent{
		Channel:   model.ChannelGame,
		EventType: "gameStateUpdate",
		Data:      tick,
		Timestamp: timestamp,
		GameID:    tick.GameID,
		Phase:     newPhase,
	}
	events = append(events, gameEvent)
	p.emit(model.ChannelGame, gameEvent)
	p.stats.GameEvents++
	telemetry.Metrics.GameEvents.Inc()

	stats, err := model.SessionStatsFromRaw(data)
	if err == nil {
		statsEvent := model.SanitizedEvent{
			Channel:   model.ChannelStats,
			EventType: "gameStateUpdate",
			Data:      stats,
			Timestamp: timestamp,
			GameID:    tick.GameID,
			Phase:     newPhase,
		}
		events = append(events, statsEvent)
		p.emit(model.ChannelStats, statsEvent)
		p.stats.StatsEvents++
		telemetry.Metrics.StatsEvents.Inc()
	}

	var historyWrapper struct {
		GameHistory []json.RawMessage `json:"gameHistory"`
	}
	if err := json.Unmarshal(data, &historyWrapper); err == nil {
		for _, raw := range historyWrapper.GameHistory {
			record, err := model.GameHistoryRecordFromRaw(raw)
			if err != nil {
				continue
			}
			historyEvent := model.SanitizedEvent{
				Channel:   model.ChannelHistory,
				EventType: "gameHistory",
				Data:      record,
				Timestamp: timestamp,
				GameID:    record.ID,
				Phase:     newPhase,
			}
			events = append(events, historyEvent)
			p.emit(model.ChannelHistory, historyEvent)
			p.stats.HistoryEvents++
			telemetry.Metrics.HistoryEvents.Inc()
		}
	}

	for _, evt := range events {
		p.emit(model.ChannelAll, evt)
	}

	return events
}

func (p *Pipeline) processTrade(data json.RawMessage, timestamp time.Time) []model.SanitizedEvent {
	currentPhase := p.phaseDetector.CurrentPhase()

	trade, err := model.TradeFromRaw(data)
	if err != nil {
		p.stats.ParseErrors++
		telemetry.Metrics.ParseErrors.Inc()
		return nil
	}
	p.annotator.Annotate(&trade, currentPhase)

	tradeEvent := model.SanitizedEvent{
		Channel:   model.ChannelTrades,
		EventType: "standard/newTrade",
		Data:      trade,
		Timestamp: timestamp,
		GameID:    trade.GameID,
		Phase:     currentPhase,
	}
	p.emit(model.ChannelTrades, tradeEvent)
	p.emit(model.ChannelAll, tradeEvent)
	p.stats.TradeEvents++
	telemetry.Metrics.TradeEvents.Inc()

	return []model.SanitizedEvent{tradeEvent}
}

func (p *Pipeline) emit(channel model.Channel, event model.SanitizedEvent) {
	for _, cb := range p.callbacks[channel] {
		p.safeCall(cb, event, channel)
	}
}

func (p *Pipeline) safeCall(cb Callback, event model.SanitizedEvent, channel model.Channel) {
	defer func() {
		if r := recover(); r != nil {
			telemetry.Metrics.CallbackErrors.Inc()
			telemetry.Errorf("pipeline: callback panic on channel %s: %v", channel, r)
		}
	}()
	cb(event)
}

func (p *Pipeline) GetStats() Stats {
	s := p.stats
	s.Phase = p.phaseDetector.GetStats()
	s.GodCandle = p.godCandle.GetStats()
	return s
}
