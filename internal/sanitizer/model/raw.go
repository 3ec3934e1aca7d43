package model

import (
	"encoding/json"
	"time"
)

// Tolerant constructors: each parses a loosely-typed wire shape (all
// optional fields as pointers) then copies into the public struct,
// coalescing a missing/null field to its documented default. A
// structurally malformed payload (not valid JSON) returns an error; a
// missing optional field never does.

type rawGameTick struct {
	GameID            string          `json:"gameId"`
	Active            *bool           `json:"active"`
	Price             *float64        `json:"price"`
	Rugged            *bool           `json:"rugged"`
	TickCount         *int            `json:"tickCount"`
	TradeCount        *int            `json:"tradeCount"`
	CooldownTimer     *int            `json:"cooldownTimer"`
	CooldownPaused    *bool           `json:"cooldownPaused"`
	AllowPreRoundBuys *bool           `json:"allowPreRoundBuys"`
	PartialPrices     json.RawMessage `json:"partialPrices"`
	ProvablyFair      json.RawMessage `json:"provablyFair"`
	Rugpool           json.RawMessage `json:"rugpool"`
	Leaderboard       []json.RawMessage `json:"leaderboard"`
	GameVersion       *string         `json:"gameVersion"`

	HighestToday           *float64 `json:"highestToday"`
	HighestTodayTimestamp  *int64   `json:"highestTodayTimestamp"`
	HighestTodayGameID     *string  `json:"highestTodayGameId"`
	HighestTodayServerSeed *string  `json:"highestTodayServerSeed"`

	GodCandle2x           *float64  `json:"godCandle2x"`
	GodCandle2xTimestamp  *int64    `json:"godCandle2xTimestamp"`
	GodCandle2xGameID     *string   `json:"godCandle2xGameId"`
	GodCandle2xServerSeed *string   `json:"godCandle2xServerSeed"`
	GodCandle2xMassiveJump []float64 `json:"godCandle2xMassiveJump"`

	GodCandle10x           *float64  `json:"godCandle10x"`
	GodCandle10xTimestamp  *int64    `json:"godCandle10xTimestamp"`
	GodCandle10xGameID     *string   `json:"godCandle10xGameId"`
	GodCandle10xServerSeed *string   `json:"godCandle10xServerSeed"`
	GodCandle10xMassiveJump []float64 `json:"godCandle10xMassiveJump"`

	GodCandle50x           *float64  `json:"godCandle50x"`
	GodCandle50xTimestamp  *int64    `json:"godCandle50xTimestamp"`
	GodCandle50xGameID     *string   `json:"godCandle50xGameId"`
	GodCandle50xServerSeed *string   `json:"godCandle50xServerSeed"`
	GodCandle50xMassiveJump []float64 `json:"godCandle50xMassiveJump"`
}

func msToTime(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func tierFrom(mult *float64, ts *int64, gameID, serverSeed *string, jump []float64) *GodCandleTier {
	t := &GodCandleTier{}
	if mult != nil {
		t.Multiplier = *mult
	}
	if ts != nil {
		t.Timestamp = msToTime(*ts)
	}
	if gameID != nil {
		t.GameID = *gameID
	}
	if serverSeed != nil {
		t.ServerSeed = *serverSeed
	}
	if len(jump) == 2 {
		t.MassiveJump = &MassiveJump{From: jump[0], To: jump[1]}
	}
	return t
}

func dailyRecordsFrom(r rawGameTick) *DailyRecords {
	return &DailyRecords{
		HighestToday:           r.HighestToday,
		HighestTodayTimestamp:  optionalTime(r.HighestTodayTimestamp),
		HighestTodayGameID:     deref(r.HighestTodayGameID),
		HighestTodayServerSeed: deref(r.HighestTodayServerSeed),
		Tier2x:                 tierFrom(r.GodCandle2x, r.GodCandle2xTimestamp, r.GodCandle2xGameID, r.GodCandle2xServerSeed, r.GodCandle2xMassiveJump),
		Tier10x:                tierFrom(r.GodCandle10x, r.GodCandle10xTimestamp, r.GodCandle10xGameID, r.GodCandle10xServerSeed, r.GodCandle10xMassiveJump),
		Tier50x:                tierFrom(r.GodCandle50x, r.GodCandle50xTimestamp, r.GodCandle50xGameID, r.GodCandle50xServerSeed, r.GodCandle50xMassiveJump),
	}
}

func optionalTime(ms *int64) *time.Time {
	if ms == nil {
		return nil
	}
	t := msToTime(*ms)
	return &t
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// GameTickFromRaw parses a gameStateUpdate "data" payload into a GameTick.
// phase must already be classified by the phase detector (the wire payload
// carries no phase field of its own).
func GameTickFromRaw(data json.RawMessage, phase Phase) (GameTick, error) {
	var r rawGameTick
	if err := json.Unmarshal(data, &r); err != nil {
		return GameTick{}, err
	}

	tick := GameTick{
		GameID:            r.GameID,
		Phase:             phase,
		Price:             1.0,
		Leaderboard:       []LeaderboardEntry{},
	}
	if r.Active != nil {
		tick.Active = *r.Active
	}
	if r.Price != nil {
		tick.Price = *r.Price
	}
	if r.Rugged != nil {
		tick.Rugged = *r.Rugged
	}
	if r.TickCount != nil {
		tick.TickCount = *r.TickCount
	}
	tick.TradeCount = r.TradeCount
	if r.CooldownTimer != nil {
		tick.CooldownTimer = *r.CooldownTimer
	}
	if r.CooldownPaused != nil {
		tick.CooldownPaused = *r.CooldownPaused
	}
	if r.AllowPreRoundBuys != nil {
		tick.AllowPreRoundBuys = *r.AllowPreRoundBuys
	}
	if len(r.PartialPrices) > 0 {
		var pp PartialPrices
		if err := json.Unmarshal(r.PartialPrices, &pp); err == nil {
			tick.PartialPrices = &pp
		}
	}
	if len(r.ProvablyFair) > 0 {
		var pf ProvablyFair
		if err := json.Unmarshal(r.ProvablyFair, &pf); err == nil {
			tick.ProvablyFair = &pf
		}
	}
	if len(r.Rugpool) > 0 {
		var rp Rugpool
		if err := json.Unmarshal(r.Rugpool, &rp); err == nil {
			tick.Rugpool = &rp
		}
	}
	for _, raw := range r.Leaderboard {
		var e LeaderboardEntry
		if err := json.Unmarshal(raw, &e); err == nil {
			tick.Leaderboard = append(tick.Leaderboard, e)
		}
	}
	if r.GameVersion != nil {
		tick.GameVersion = *r.GameVersion
	}
	if r.HighestToday != nil {
		tick.DailyRecords = dailyRecordsFrom(r)
		tick.HasGodCandle = tick.DailyRecords.HasGodCandle()
	}

	return tick, nil
}

type rawSessionStats struct {
	ConnectedPlayers  *int     `json:"connectedPlayers"`
	AverageMultiplier *float64 `json:"averageMultiplier"`
	Count2x           *int     `json:"count2x"`
	Count10x          *int     `json:"count10x"`
	Count50x          *int     `json:"count50x"`
	Count100x         *int     `json:"count100x"`
}

// SessionStatsFromRaw parses a gameStateUpdate "data" payload into a SessionStats.
func SessionStatsFromRaw(data json.RawMessage) (SessionStats, error) {
	var r rawSessionStats
	if err := json.Unmarshal(data, &r); err != nil {
		return SessionStats{}, err
	}
	s := SessionStats{AverageMultiplier: r.AverageMultiplier}
	if r.ConnectedPlayers != nil {
		s.ConnectedPlayers = *r.ConnectedPlayers
	}
	if r.Count2x != nil {
		s.Count2x = *r.Count2x
	}
	if r.Count10x != nil {
		s.Count10x = *r.Count10x
	}
	if r.Count50x != nil {
		s.Count50x = *r.Count50x
	}
	if r.Count100x != nil {
		s.Count100x = *r.Count100x
	}
	return s, nil
}

type rawTrade struct {
	ID           *string  `json:"id"`
	GameID       *string  `json:"gameId"`
	PlayerID     *string  `json:"playerId"`
	Username     *string  `json:"username"`
	Level        *int     `json:"level"`
	Price        *float64 `json:"price"`
	Type         *string  `json:"type"`
	TickIndex    *int     `json:"tickIndex"`
	Coin         *string  `json:"coin"`
	Amount       *float64 `json:"amount"`
	Qty          *float64 `json:"qty"`
	Leverage     *float64 `json:"leverage"`
	BonusPortion *float64 `json:"bonusPortion"`
	RealPortion  *float64 `json:"realPortion"`
}

// TradeFromRaw parses a standard/newTrade "data" payload into a Trade. Of
// the four annotator-inferred fields, the three flags are left false and
// TokenType starts as unknown — only Annotate classifies them.
func TradeFromRaw(data json.RawMessage) (Trade, error) {
	var r rawTrade
	if err := json.Unmarshal(data, &r); err != nil {
		return Trade{}, err
	}
	t := Trade{
		ID:           deref(r.ID),
		GameID:       deref(r.GameID),
		PlayerID:     deref(r.PlayerID),
		Username:     deref(r.Username),
		Type:         TradeBuy,
		Coin:         "solana",
		Leverage:     r.Leverage,
		BonusPortion: r.BonusPortion,
		RealPortion:  r.RealPortion,
		TokenType:    TokenUnknown,
	}
	if r.Level != nil {
		t.Level = *r.Level
	}
	if r.Price != nil {
		t.Price = *r.Price
	}
	if r.Type != nil && *r.Type != "" {
		t.Type = TradeType(*r.Type)
	}
	if r.TickIndex != nil {
		t.TickIndex = *r.TickIndex
	}
	if r.Coin != nil && *r.Coin != "" {
		t.Coin = *r.Coin
	}
	if r.Amount != nil {
		t.Amount = *r.Amount
	}
	if r.Qty != nil {
		t.Qty = *r.Qty
	}
	return t, nil
}

type rawGlobalSidebet struct {
	ID           *string  `json:"id"`
	PlayerID     *string  `json:"playerId"`
	Username     *string  `json:"username"`
	GameID       *string  `json:"gameId"`
	Type         *string  `json:"type"`
	BetAmount    *float64 `json:"betAmount"`
	XPayout      *int     `json:"xPayout"`
	CoinAddress  *string  `json:"coinAddress"`
	BonusPortion *float64 `json:"bonusPortion"`
	RealPortion  *float64 `json:"realPortion"`
	Timestamp    *int64   `json:"timestamp"`
}

func globalSidebetFromRaw(raw json.RawMessage) GlobalSidebetEntry {
	var r rawGlobalSidebet
	_ = json.Unmarshal(raw, &r)
	e := GlobalSidebetEntry{
		ID:          deref(r.ID),
		PlayerID:    deref(r.PlayerID),
		Username:    deref(r.Username),
		GameID:      deref(r.GameID),
		Type:        deref(r.Type),
		CoinAddress: deref(r.CoinAddress),
		XPayout:     5,
	}
	if r.BetAmount != nil {
		e.BetAmount = *r.BetAmount
	}
	if r.XPayout != nil {
		e.XPayout = *r.XPayout
	}
	if r.BonusPortion != nil {
		e.BonusPortion = *r.BonusPortion
	}
	if r.RealPortion != nil {
		e.RealPortion = *r.RealPortion
	}
	if r.Timestamp != nil {
		e.Timestamp = *r.Timestamp
	}
	return e
}

type rawGameHistory struct {
	ID             *string           `json:"id"`
	Timestamp      *int64            `json:"timestamp"`
	PeakMultiplier *float64          `json:"peakMultiplier"`
	Rugged         *bool             `json:"rugged"`
	GameVersion    *string           `json:"gameVersion"`
	Prices         []float64         `json:"prices"`
	GlobalTrades   []map[string]any  `json:"globalTrades"`
	GlobalSidebets []json.RawMessage `json:"globalSidebets"`
	ProvablyFair   json.RawMessage   `json:"provablyFair"`
}

// GameHistoryRecordFromRaw parses one entry of a gameStateUpdate's
// "gameHistory" array into a GameHistoryRecord.
func GameHistoryRecordFromRaw(raw json.RawMessage) (GameHistoryRecord, error) {
	var r rawGameHistory
	if err := json.Unmarshal(raw, &r); err != nil {
		return GameHistoryRecord{}, err
	}
	rec := GameHistoryRecord{
		ID:          deref(r.ID),
		GameVersion: "v3",
		Rugged:      true,
		Prices:      r.Prices,
	}
	if r.Timestamp != nil {
		rec.Timestamp = *r.Timestamp
	}
	if r.PeakMultiplier != nil {
		rec.PeakMultiplier = *r.PeakMultiplier
	}
	if r.Rugged != nil {
		rec.Rugged = *r.Rugged
	}
	if r.GameVersion != nil && *r.GameVersion != "" {
		rec.GameVersion = *r.GameVersion
	}
	if rec.Prices == nil {
		rec.Prices = []float64{}
	}
	// GlobalTrades is always empty on the public upstream; null normalizes to empty.
	if r.GlobalTrades != nil {
		rec.GlobalTrades = r.GlobalTrades
	} else {
		rec.GlobalTrades = []map[string]any{}
	}
	rec.GlobalSidebets = []GlobalSidebetEntry{}
	for _, raw := range r.GlobalSidebets {
		rec.GlobalSidebets = append(rec.GlobalSidebets, globalSidebetFromRaw(raw))
	}
	if len(r.ProvablyFair) > 0 {
		var pf struct {
			ServerSeed     *string `json:"serverSeed"`
			ServerSeedHash *string `json:"serverSeedHash"`
		}
		if err := json.Unmarshal(r.ProvablyFair, &pf); err == nil {
			rec.ProvablyFair = GameHistoryProvablyFair{
				ServerSeed:     deref(pf.ServerSeed),
				ServerSeedHash: deref(pf.ServerSeedHash),
			}
		}
	}
	return rec, nil
}
