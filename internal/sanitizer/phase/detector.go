// Package phase implements the game lifecycle phase detector: a pure
// classifier over a gameStateUpdate payload plus a stateful tracker that
// turns a sequence of classifications into transitions, including the
// two-broadcast rug mechanism and seed-reveal detection.
package phase

import (
	"encoding/json"

	"github.com/charleschow/rugs-sanitizer/internal/sanitizer/model"
	"github.com/charleschow/rugs-sanitizer/internal/telemetry"
)

// Transition describes a phase or game change between two consecutive
// gameStateUpdate events.
type Transition struct {
	PreviousPhase   model.Phase
	NewPhase        model.Phase
	PreviousGameID  string
	NewGameID       string
	IsNewGame       bool
	IsSeedReveal    bool
}

type rawState struct {
	Active            bool   `json:"active"`
	Rugged            bool   `json:"rugged"`
	CooldownTimer     int    `json:"cooldownTimer"`
	AllowPreRoundBuys bool   `json:"allowPreRoundBuys"`
	GameID            string `json:"gameId"`
	ProvablyFair      *struct {
		ServerSeed string `json:"serverSeed"`
	} `json:"provablyFair"`
}

// Detector is a stateful phase classifier. It is not safe for concurrent
// use — callers must serialize access the same way the rest of the
// pipeline does (single owner, no lock; see pipeline.Pipeline).
type Detector struct {
	currentPhase  model.Phase
	currentGameID string

	rugCount  int
	gamesSeen int
}

// New returns a Detector in the UNKNOWN/no-game starting state.
func New() *Detector {
	return &Detector{currentPhase: model.PhaseUnknown}
}

// CurrentPhase is the phase of the most recently processed event.
func (d *Detector) CurrentPhase() model.Phase { return d.currentPhase }

// CurrentGameID is the game id of the most recently processed event.
func (d *Detector) CurrentGameID() string { return d.currentGameID }

// RugCount is the number of same-game transitions into RUGGED seen so far;
// repeated RUGGED ticks of one game count once.
func (d *Detector) RugCount() int { return d.rugCount }

// GamesSeen is the number of new-game transitions seen so far: each change
// from a non-empty game id to a different non-empty one counts once, so the
// first game id observed is not counted.
func (d *Detector) GamesSeen() int { return d.gamesSeen }

// Detect classifies a gameStateUpdate payload into a Phase. Priority order:
//  1. active && !rugged       -> ACTIVE
//  2. rugged                  -> RUGGED
//  3. cooldownTimer > 0
//     a. allowPreRoundBuys    -> PRESALE
//     b. otherwise            -> COOLDOWN
//  4. allowPreRoundBuys       -> PRESALE (near-zero timer)
//  5. otherwise               -> UNKNOWN
func Detect(data json.RawMessage) model.Phase {
	var r rawState
	if err := json.Unmarshal(data, &r); err != nil {
		return model.PhaseUnknown
	}
	return detect(r)
}

func detect(r rawState) model.Phase {
	switch {
	case r.Active && !r.Rugged:
		return model.PhaseActive
	case r.Rugged:
		return model.PhaseRugged
	case r.CooldownTimer > 0:
		if r.AllowPreRoundBuys {
			return model.PhasePresale
		}
		return model.PhaseCooldown
	case r.AllowPreRoundBuys:
		return model.PhasePresale
	default:
		return model.PhaseUnknown
	}
}

// Process classifies data and updates internal state, returning a
// Transition if the phase or game id changed from the previous call, or
// nil if nothing changed. Process must be called once per gameStateUpdate
// event, in arrival order — it is the only place current phase/game-id
// state advances.
func (d *Detector) Process(data json.RawMessage) *Transition {
	var r rawState
	if err := json.Unmarshal(data, &r); err != nil {
		return nil
	}

	newPhase := detect(r)
	newGameID := r.GameID

	phaseChanged := newPhase != d.currentPhase
	gameChanged := newGameID != d.currentGameID && d.currentGameID != "" && newGameID != ""

	var transition *Transition

	if phaseChanged || gameChanged {
		isSeedReveal := false
		isNewGame := false

		// Two-broadcast rug mechanism: first broadcast is the same game
		// transitioning to RUGGED with serverSeed now revealed; the second
		// broadcast is a new game id entering COOLDOWN with a new hash.
		if newPhase == model.PhaseRugged && !gameChanged {
			d.rugCount++
			telemetry.Metrics.RugCount.Inc()
			if r.ProvablyFair != nil && r.ProvablyFair.ServerSeed != "" {
				isSeedReveal = true
			}
		}

		if gameChanged {
			isNewGame = true
			d.gamesSeen++
			telemetry.Metrics.GamesSeen.Inc()
		}

		transition = &Transition{
			PreviousPhase:  d.currentPhase,
			NewPhase:       newPhase,
			PreviousGameID: d.currentGameID,
			NewGameID:      newGameID,
			IsNewGame:      isNewGame,
			IsSeedReveal:   isSeedReveal,
		}

		if isSeedReveal {
			telemetry.Infof("phase: seed reveal game=%s", d.currentGameID)
		}
		if isNewGame {
			telemetry.Infof("phase: new game %s (prev=%s)", newGameID, d.currentGameID)
		}
	}

	d.currentPhase = newPhase
	d.currentGameID = newGameID

	return transition
}

// Stats is a point-in-time snapshot for the /stats HTTP surface.
type Stats struct {
	CurrentPhase  model.Phase `json:"current_phase"`
	CurrentGameID string      `json:"current_game_id"`
	RugCount      int         `json:"rug_count"`
	GamesSeen     int         `json:"games_seen"`
}

func (d *Detector) GetStats() Stats {
	return Stats{
		CurrentPhase:  d.currentPhase,
		CurrentGameID: d.currentGameID,
		RugCount:      d.rugCount,
		GamesSeen:     d.gamesSeen,
	}
}
