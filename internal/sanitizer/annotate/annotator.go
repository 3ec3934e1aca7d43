// Package annotate infers the fields a trade's wire payload cannot carry
// directly: token classification (practice vs real), forced-sell
// detection, and a reserved slot for leverage-liquidation inference.
package annotate

import "github.com/charleschow/rugs-sanitizer/internal/sanitizer/model"

// practiceTokenAddress is the one well-known practice-token sentinel; the
// platform has only ever issued one, but UpdatePracticeTokens tracks the
// set defensively in case that changes.
const practiceTokenAddress = "0xPractice"

// liquidationThresholds maps a leverage tier to the fractional drop from
// entry price at which a position is force-liquidated. Reserved for a
// future per-player avg-cost extension — nothing in this package reads it
// yet, and it must never be the sole reason is_liquidation flips true.
var liquidationThresholds = map[int]float64{
	2: 0.20,
	3: 0.10,
	4: 0.025,
	5: 0.01,
}

// Annotator sets the four inferred fields on trades. It is stateful only
// in its set of known practice-token addresses.
type Annotator struct {
	practiceAddresses map[string]struct{}
}

func New() *Annotator {
	return &Annotator{
		practiceAddresses: map[string]struct{}{practiceTokenAddress: {}},
	}
}

// UpdatePracticeTokens merges addresses from an availableShitcoins-style
// payload into the known practice set.
func (a *Annotator) UpdatePracticeTokens(addresses []string) {
	for _, addr := range addresses {
		if addr != "" {
			a.practiceAddresses[addr] = struct{}{}
		}
	}
}

// Annotate mutates trade in place and returns it for convenience.
func (a *Annotator) Annotate(trade *model.Trade, phase model.Phase) *model.Trade {
	trade.TokenType = classifyToken(trade.BonusPortion, trade.RealPortion)
	trade.IsPractice = trade.TokenType == model.TokenPractice

	if trade.Type == model.TradeSell && phase == model.PhaseRugged {
		trade.IsForcedSell = true
	}

	return trade
}

func classifyToken(bonus, real *float64) model.TokenType {
	if bonus == nil && real == nil {
		return model.TokenUnknown
	}
	var b, r float64
	if bonus != nil {
		b = *bonus
	}
	if real != nil {
		r = *real
	}
	switch {
	case b > 0 && r == 0:
		return model.TokenPractice
	case r > 0 && b == 0:
		return model.TokenReal
	case r > 0 && b > 0:
		// Mixed — can happen with position stacking.
		return model.TokenReal
	default:
		return model.TokenUnknown
	}
}
