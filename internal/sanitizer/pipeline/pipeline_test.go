package pipeline

import (
	"testing"

	"github.com/charleschow/rugs-sanitizer/internal/sanitizer/model"
	"github.com/charleschow/rugs-sanitizer/internal/telemetry"
)

func TestProcessRaw_MalformedJSON(t *testing.T) {
	p := New()
	events := p.ProcessRaw([]byte(`not json`))
	if events != nil {
		t.Errorf("expected nil events for malformed JSON, got %v", events)
	}
	if p.GetStats().ParseErrors != 1 {
		t.Errorf("expected ParseErrors=1, got %d", p.GetStats().ParseErrors)
	}
}

func TestProcessRaw_MissingEventTypeIsEmptyEvent(t *testing.T) {
	p := New()
	events := p.ProcessRaw([]byte(`{"data":{"gameId":"g1"}}`))
	if events != nil {
		t.Errorf("expected nil events for a missing event_type, got %v", events)
	}
	if p.GetStats().EmptyEvents != 1 {
		t.Errorf("expected EmptyEvents=1, got %d", p.GetStats().EmptyEvents)
	}
}

func TestProcessRaw_UnknownEventTypeCountedAsOther(t *testing.T) {
	p := New()
	events := p.ProcessRaw([]byte(`{"event_type":"weird","data":{}}`))
	if events != nil {
		t.Errorf("expected nil events for an unrecognized event_type, got %v", events)
	}
	if p.GetStats().OtherEvents != 1 {
		t.Errorf("expected OtherEvents=1, got %d", p.GetStats().OtherEvents)
	}
}

func TestProcessRaw_GameStateEmitsGameAndStats(t *testing.T) {
	p := New()
	var gameCh, statsCh, allCh []model.SanitizedEvent
	p.OnEvent(model.ChannelGame, func(e model.SanitizedEvent) { gameCh = append(gameCh, e) })
	p.OnEvent(model.ChannelStats, func(e model.SanitizedEvent) { statsCh = append(statsCh, e) })
	p.OnEvent(model.ChannelAll, func(e model.SanitizedEvent) { allCh = append(allCh, e) })

	raw := `{"event_type":"gameStateUpdate","data":{"gameId":"g1","active":true,"connectedPlayers":7}}`
	events := p.ProcessRaw([]byte(raw))

	if len(events) != 2 {
		t.Fatalf("expected 2 events (game+stats), got %d: %+v", len(events), events)
	}
	if len(gameCh) != 1 {
		t.Errorf("expected 1 game channel callback, got %d", len(gameCh))
	}
	if len(statsCh) != 1 {
		t.Errorf("expected 1 stats channel callback, got %d", len(statsCh))
	}
	if len(allCh) != 2 {
		t.Errorf("expected 2 all channel callbacks, got %d", len(allCh))
	}
	if p.GetStats().GameEvents != 1 || p.GetStats().StatsEvents != 1 {
		t.Errorf("unexpected stats: %+v", p.GetStats())
	}
}

func TestGetStats_NestsGodCandleDetectorSnapshot(t *testing.T) {
	p := New()
	raw := `{"event_type":"gameStateUpdate","data":{"gameId":"g1","highestToday":5,"godCandle2x":2.0,"godCandle2xGameId":"gc-A"}}`
	p.ProcessRaw([]byte(raw))

	stats := p.GetStats()
	if stats.GodCandle.NewDetections != 1 {
		t.Errorf("expected nested GodCandle.NewDetections=1, got %d", stats.GodCandle.NewDetections)
	}
	if stats.GodCandle.TrackedGameIDs != 1 {
		t.Errorf("expected nested GodCandle.TrackedGameIDs=1, got %d", stats.GodCandle.TrackedGameIDs)
	}
}

func TestProcessRaw_GameStateWithHistoryEmitsHistoryEvents(t *testing.T) {
	p := New()
	var historyCh []model.SanitizedEvent
	p.OnEvent(model.ChannelHistory, func(e model.SanitizedEvent) { historyCh = append(historyCh, e) })

	raw := `{"event_type":"gameStateUpdate","data":{"gameId":"g2","rugged":true,"gameHistory":[{"id":"g1"},{"id":"g0"}]}}`
	events := p.ProcessRaw([]byte(raw))

	historyCount := 0
	for _, e := range events {
		if e.Channel == model.ChannelHistory {
			historyCount++
		}
	}
	if historyCount != 2 {
		t.Errorf("expected 2 history events in the batch, got %d", historyCount)
	}
	if len(historyCh) != 2 {
		t.Errorf("expected 2 history channel callbacks, got %d", len(historyCh))
	}
}

func TestProcessRaw_TradeUsesCurrentPhaseAndAnnotates(t *testing.T) {
	p := New()
	p.ProcessRaw([]byte(`{"event_type":"gameStateUpdate","data":{"gameId":"g1","rugged":true}}`))

	var tradeCh []model.SanitizedEvent
	p.OnEvent(model.ChannelTrades, func(e model.SanitizedEvent) { tradeCh = append(tradeCh, e) })

	events := p.ProcessRaw([]byte(`{"event_type":"standard/newTrade","data":{"id":"t1","gameId":"g1","type":"sell","realPortion":1}}`))
	if len(events) != 1 {
		t.Fatalf("expected 1 trade event, got %d", len(events))
	}
	trade, ok := events[0].Data.(model.Trade)
	if !ok {
		t.Fatalf("expected event data to be a model.Trade, got %T", events[0].Data)
	}
	if !trade.IsForcedSell {
		t.Error("expected IsForcedSell=true for a sell while phase is RUGGED")
	}
	if len(tradeCh) != 1 {
		t.Errorf("expected 1 trade channel callback, got %d", len(tradeCh))
	}
}

func TestProcessRaw_CallbackPanicIsRecoveredAndCounted(t *testing.T) {
	p := New()
	p.OnEvent(model.ChannelGame, func(e model.SanitizedEvent) { panic("boom") })

	before := telemetry.Metrics.CallbackErrors.Value()
	events := p.ProcessRaw([]byte(`{"event_type":"gameStateUpdate","data":{"gameId":"g1","active":true}}`))
	if len(events) == 0 {
		t.Fatal("expected ProcessRaw to still return events despite a panicking callback")
	}
	if got := telemetry.Metrics.CallbackErrors.Value() - before; got != 1 {
		t.Errorf("expected CallbackErrors to advance by 1, advanced by %d", got)
	}
	if p.GetStats().Phase.RugCount != 0 {
		t.Errorf("unexpected rug count: %+v", p.GetStats().Phase)
	}
}

func TestProcessRaw_SiblingCallbacksRunDespitePanic(t *testing.T) {
	p := New()
	ran := false
	p.OnEvent(model.ChannelGame, func(e model.SanitizedEvent) { panic("boom") })
	p.OnEvent(model.ChannelGame, func(e model.SanitizedEvent) { ran = true })

	p.ProcessRaw([]byte(`{"event_type":"gameStateUpdate","data":{"gameId":"g1","active":true}}`))
	if !ran {
		t.Error("expected the second callback to still run after the first panicked")
	}
}
