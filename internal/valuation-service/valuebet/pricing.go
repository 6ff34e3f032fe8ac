package valuebet

import (
	"math"

	"github.com/radieske/live-odds-core/internal/shared/stats"
	"github.com/radieske/live-odds-core/pkg/contracts/events"
)

// Pricing reúne as grandezas derivadas de (probabilidade verdadeira, odds)
type Pricing struct {
	TrueProb      float64
	ImpliedProb   float64
	Edge          float64
	FairOdds      float64
	ExpectedValue float64 // por unidade apostada
}

// Price calcula edge = p - 1/odds, fairOdds = 1/p e EV = p(odds-1) - (1-p)
func Price(trueProb, odds float64) Pricing {
	pr := Pricing{TrueProb: trueProb, ImpliedProb: 1 / odds}
	pr.Edge = trueProb - pr.ImpliedProb
	if trueProb > 0 {
		pr.FairOdds = 1 / trueProb
	}
	pr.ExpectedValue = trueProb*(odds-1) - (1 - trueProb)
	return pr
}

// KellyFraction = edge/(odds-1) × multiplier, limitado a [0, cap]
func KellyFraction(edge, odds, multiplier, cap float64) float64 {
	if edge <= 0 || odds <= 1 || math.IsNaN(edge) || math.IsNaN(odds) {
		return 0
	}
	k := edge / (odds - 1) * multiplier
	if math.IsNaN(k) || math.IsInf(k, 0) {
		return 0
	}
	return stats.Clamp(k, 0, math.Max(0, cap))
}

// Confidence combina a confiança do modelo com o edge escalado
func Confidence(predictionConfidence, edge float64) float64 {
	return stats.Clamp(0.6*predictionConfidence+0.4*math.Min(edge*10, 1.0), 0, 1)
}

// ProbabilityMapper traduz a previsão de vitória na probabilidade da seleção
// cotada. Spread/total são aproximações e podem ser trocadas.
type ProbabilityMapper interface {
	TrueProbability(q events.OddsQuote, p events.WinProbability) (float64, bool)
}

// LinearLineMapper aplica um ajuste linear por ponto de linha:
// spread parte da probabilidade de vitória do lado e soma line×PerPoint;
// total compara o total projetado pelo ritmo atual com a linha.
type LinearLineMapper struct {
	PerPoint float64
}

const (
	mappedFloor = 0.05
	mappedCeil  = 0.95
)

func (m LinearLineMapper) TrueProbability(q events.OddsQuote, p events.WinProbability) (float64, bool) {
	switch q.BetType {
	case events.BetMoneyline:
		switch q.Selection {
		case events.SelectionHome, events.SelectionAway:
			return p.For(q.Selection), true
		case events.SelectionDraw:
			if p.DrawProb == nil {
				return 0, false
			}
			return *p.DrawProb, true
		}

	case events.BetSpread:
		if q.Selection != events.SelectionHome && q.Selection != events.SelectionAway {
			return 0, false
		}
		base := p.For(q.Selection)
		if q.Line == nil {
			return base, true
		}
		return stats.Clamp(base+*q.Line*m.PerPoint, mappedFloor, mappedCeil), true

	case events.BetTotal:
		if q.Selection != events.SelectionOver && q.Selection != events.SelectionUnder {
			return 0, false
		}
		over := 0.5
		if q.Line != nil {
			f := p.Features
			projected := float64(f.TotalPoints) + (f.ScoringRateHome+f.ScoringRateAway)*f.TimeRemaining
			over = stats.Clamp(0.5+(projected-*q.Line)*m.PerPoint, mappedFloor, mappedCeil)
		}
		if q.Selection == events.SelectionUnder {
			return 1 - over, true
		}
		return over, true
	}
	return 0, false
}
