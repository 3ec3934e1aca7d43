// Package model holds the typed wire records the sanitization pipeline
// produces: game ticks, session stats, trades, history records, and the
// outer SanitizedEvent envelope they travel in.
package model

import "time"

// Phase is the closed set of game lifecycle states.
type Phase string

const (
	PhaseActive   Phase = "ACTIVE"
	PhaseRugged   Phase = "RUGGED"
	PhasePresale  Phase = "PRESALE"
	PhaseCooldown Phase = "COOLDOWN"
	PhaseUnknown  Phase = "UNKNOWN"
)

// TradeType is the closed set of trade kinds.
type TradeType string

const (
	TradeBuy        TradeType = "buy"
	TradeSell       TradeType = "sell"
	TradeShortOpen  TradeType = "short_open"
	TradeShortClose TradeType = "short_close"
)

// TokenType is the closed set of annotator-inferred token classifications.
type TokenType string

const (
	TokenPractice TokenType = "practice"
	TokenReal     TokenType = "real"
	TokenUnknown  TokenType = "unknown"
)

// Channel is the closed set of logical output streams.
type Channel string

const (
	ChannelGame    Channel = "game"
	ChannelStats   Channel = "stats"
	ChannelTrades  Channel = "trades"
	ChannelHistory Channel = "history"
	ChannelAll     Channel = "all"
)

// PartialPrices carries optional partial-history price hints for a game tick.
type PartialPrices struct {
	PresaleStart   *float64 `json:"presaleStart,omitempty"`
	PresaleEnd     *float64 `json:"presaleEnd,omitempty"`
	CooldownStart  *float64 `json:"cooldownStart,omitempty"`
}

// ProvablyFair carries the live (possibly pre-reveal) provably-fair fields.
// ServerSeed defaults to "" when not yet revealed — it is only ever
// populated on the rug-transition broadcast (see phase.Transition.IsSeedReveal).
type ProvablyFair struct {
	ServerSeedHash string `json:"serverSeedHash"`
	ServerSeed     string `json:"serverSeed"`
	Version        string `json:"version"`
}

// Rugpool is relayed verbatim from the upstream, never computed.
type Rugpool struct {
	Balance       float64 `json:"balance"`
	Contributions float64 `json:"contributions"`
	Payouts       float64 `json:"payouts"`
}

// SideBet is a fixed-window wager referenced inside leaderboard entries and
// history records; the pipeline only relays it.
type SideBet struct {
	ID        string  `json:"id"`
	PlayerID  string  `json:"playerId"`
	StartTick int     `json:"startTick"`
	EndTick   int     `json:"endTick"`
	XPayout   float64 `json:"xPayout"`
	Active    bool    `json:"active"`
}

// ShortPosition supplements the leaderboard/trade surface for short trades.
type ShortPosition struct {
	PlayerID   string  `json:"playerId"`
	EntryPrice float64 `json:"entryPrice"`
	EntryTick  int     `json:"entryTick"`
	Size       float64 `json:"size"`
}

// LeaderboardEntry is one row of a game's live leaderboard.
type LeaderboardEntry struct {
	PlayerID   string  `json:"playerId"`
	Username   string  `json:"username"`
	Level      int     `json:"level"`
	PnL        float64 `json:"pnl"`
	IsPractice bool    `json:"isPractice"`
}

// GodCandleTier is one of the (up to three) rare-event slots carried on
// DailyRecords. The GameID of a populated tier is the stable key for newness.
type GodCandleTier struct {
	Multiplier  float64      `json:"multiplier"`
	GameID      string       `json:"gameId"`
	Timestamp   time.Time    `json:"timestamp"`
	ServerSeed  string       `json:"serverSeed"`
	MassiveJump *MassiveJump `json:"massiveJump,omitempty"`
}

// MassiveJump records a tier's before/after price pair
// ([jump_multiplier, resulting_price] on the raw upstream wire).
type MassiveJump struct {
	From float64 `json:"from"`
	To   float64 `json:"to"`
}

// DailyRecords wraps the three god-candle tier slots plus the raw
// "highest today" fields. A tier is "populated" when its GameID is
// non-empty.
type DailyRecords struct {
	HighestToday           *float64       `json:"highest_today,omitempty"`
	HighestTodayTimestamp  *time.Time     `json:"highest_today_timestamp,omitempty"`
	HighestTodayGameID     string         `json:"highest_today_game_id,omitempty"`
	HighestTodayServerSeed string         `json:"highest_today_server_seed,omitempty"`
	Tier2x                 *GodCandleTier `json:"tier2x,omitempty"`
	Tier10x                *GodCandleTier `json:"tier10x,omitempty"`
	Tier50x                *GodCandleTier `json:"tier50x,omitempty"`
}

// HasGodCandle reports whether any tier is populated.
func (d *DailyRecords) HasGodCandle() bool {
	if d == nil {
		return false
	}
	return populated(d.Tier2x) || populated(d.Tier10x) || populated(d.Tier50x)
}

// GodCandleGameIDs returns the set of populated tiers' game ids.
func (d *DailyRecords) GodCandleGameIDs() []string {
	if d == nil {
		return nil
	}
	var ids []string
	for _, t := range []*GodCandleTier{d.Tier2x, d.Tier10x, d.Tier50x} {
		if populated(t) {
			ids = append(ids, t.GameID)
		}
	}
	return ids
}

func populated(t *GodCandleTier) bool {
	return t != nil && t.GameID != ""
}

// GameTick is the typed record emitted on the "game" channel.
type GameTick struct {
	GameID              string         `json:"game_id"`
	Phase               Phase          `json:"phase"`
	Active              bool           `json:"active"`
	Price               float64        `json:"price"`
	Rugged              bool           `json:"rugged"`
	TickCount           int            `json:"tick_count"`
	TradeCount          *int           `json:"trade_count,omitempty"`
	CooldownTimer       int            `json:"cooldown_timer"`
	CooldownPaused      bool           `json:"cooldown_paused"`
	AllowPreRoundBuys   bool           `json:"allow_pre_round_buys"`
	PartialPrices       *PartialPrices `json:"partial_prices,omitempty"`
	ProvablyFair        *ProvablyFair  `json:"provably_fair,omitempty"`
	Rugpool             *Rugpool       `json:"rugpool,omitempty"`
	Leaderboard         []LeaderboardEntry `json:"leaderboard"`
	GameVersion         string         `json:"game_version,omitempty"`
	DailyRecords        *DailyRecords  `json:"daily_records,omitempty"`
	HasGodCandle        bool           `json:"has_god_candle"`
}

// SessionStats is the typed record emitted on the "stats" channel.
type SessionStats struct {
	ConnectedPlayers   int      `json:"connected_players"`
	AverageMultiplier  *float64 `json:"average_multiplier,omitempty"`
	Count2x            int      `json:"count_2x"`
	Count10x           int      `json:"count_10x"`
	Count50x           int      `json:"count_50x"`
	Count100x          int      `json:"count_100x"`
}

// Trade is the typed record emitted on the "trades" channel. The first
// block is relayed verbatim; the second block is annotator-inferred.
type Trade struct {
	ID            string    `json:"id"`
	GameID        string    `json:"game_id"`
	PlayerID      string    `json:"player_id"`
	Username      string    `json:"username"`
	Level         int       `json:"level"`
	Price         float64   `json:"price"`
	Type          TradeType `json:"type"`
	TickIndex     int       `json:"tick_index"`
	Coin          string    `json:"coin"`
	Amount        float64   `json:"amount"`
	Qty           float64   `json:"qty"`
	Leverage      *float64  `json:"leverage,omitempty"`
	BonusPortion  *float64  `json:"bonus_portion,omitempty"`
	RealPortion   *float64  `json:"real_portion,omitempty"`

	// Annotator-inferred. Annotate() is the only writer of these four fields.
	IsForcedSell bool      `json:"is_forced_sell"`
	IsLiquidation bool     `json:"is_liquidation"`
	IsPractice   bool      `json:"is_practice"`
	TokenType    TokenType `json:"token_type"`
}

// GlobalSidebetEntry is a history-channel side-bet record keyed by a
// global (not per-game) side-bet id.
type GlobalSidebetEntry struct {
	ID           string  `json:"id"`
	PlayerID     string  `json:"player_id"`
	Username     string  `json:"username"`
	GameID       string  `json:"game_id"`
	Type         string  `json:"type"`
	BetAmount    float64 `json:"bet_amount"`
	XPayout      int     `json:"x_payout"`
	CoinAddress  string  `json:"coin_address"`
	BonusPortion float64 `json:"bonus_portion"`
	RealPortion  float64 `json:"real_portion"`
	Timestamp    int64   `json:"timestamp"`
}

// GameHistoryProvablyFair is the revealed seed pair attached to a completed
// GameHistoryRecord, distinct from the live ProvablyFair (which may have an
// empty ServerSeed pre-reveal).
type GameHistoryProvablyFair struct {
	ServerSeed     string `json:"server_seed"`
	ServerSeedHash string `json:"server_seed_hash"`
}

// GameHistoryRecord is the typed record emitted on the "history" channel,
// exported on rug transitions.
type GameHistoryRecord struct {
	ID             string                   `json:"id"`
	Timestamp      int64                    `json:"timestamp"`
	PeakMultiplier float64                  `json:"peak_multiplier"`
	Rugged         bool                     `json:"rugged"`
	GameVersion    string                   `json:"game_version"`
	Prices         []float64                `json:"prices"`
	GlobalTrades   []map[string]any         `json:"global_trades"`
	GlobalSidebets []GlobalSidebetEntry     `json:"global_sidebets"`
	ProvablyFair   GameHistoryProvablyFair  `json:"provably_fair"`
}

// SanitizedEvent is the outer wire envelope every typed record travels in.
type SanitizedEvent struct {
	Channel   Channel     `json:"channel"`
	EventType string      `json:"event_type"`
	Data      any         `json:"data"`
	Timestamp time.Time   `json:"timestamp"`
	GameID    string      `json:"game_id"`
	Phase     Phase       `json:"phase"`
}
