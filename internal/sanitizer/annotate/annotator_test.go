package annotate

import (
	"testing"

	"github.com/charleschow/rugs-sanitizer/internal/sanitizer/model"
)

func f(v float64) *float64 { return &v }

func TestAnnotate_TokenTypeClassification(t *testing.T) {
	cases := []struct {
		name   string
		bonus  *float64
		real   *float64
		want   model.TokenType
	}{
		{"both nil", nil, nil, model.TokenUnknown},
		{"bonus only", f(1), f(0), model.TokenPractice},
		{"real only", f(0), f(1), model.TokenReal},
		{"both positive (stacking)", f(1), f(1), model.TokenReal},
		{"both zero", f(0), f(0), model.TokenUnknown},
	}

	a := New()
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			trade := &model.Trade{Type: model.TradeBuy, BonusPortion: c.bonus, RealPortion: c.real}
			a.Annotate(trade, model.PhaseActive)
			if trade.TokenType != c.want {
				t.Errorf("TokenType = %s, want %s", trade.TokenType, c.want)
			}
			if trade.IsPractice != (c.want == model.TokenPractice) {
				t.Errorf("IsPractice = %v, want %v", trade.IsPractice, c.want == model.TokenPractice)
			}
		})
	}
}

func TestAnnotate_ForcedSellOnRuggedSell(t *testing.T) {
	a := New()
	trade := &model.Trade{Type: model.TradeSell, RealPortion: f(1)}
	a.Annotate(trade, model.PhaseRugged)
	if !trade.IsForcedSell {
		t.Error("expected IsForcedSell=true for a sell during RUGGED")
	}
}

func TestAnnotate_NoForcedSellOutsideRugged(t *testing.T) {
	a := New()
	trade := &model.Trade{Type: model.TradeSell, RealPortion: f(1)}
	a.Annotate(trade, model.PhaseActive)
	if trade.IsForcedSell {
		t.Error("expected IsForcedSell=false outside RUGGED")
	}
}

func TestAnnotate_BuyNeverForcedSell(t *testing.T) {
	a := New()
	trade := &model.Trade{Type: model.TradeBuy, RealPortion: f(1)}
	a.Annotate(trade, model.PhaseRugged)
	if trade.IsForcedSell {
		t.Error("expected IsForcedSell=false for a buy even during RUGGED")
	}
}
