package probability

import (
	"math"
	"strings"

	"github.com/radieske/live-odds-core/internal/shared/stats"
	"github.com/radieske/live-odds-core/pkg/contracts/events"
)

const (
	ModelVersion    = "live-heuristic-v1"
	FallbackVersion = "fallback-v1"

	fallbackConfidence = 0.3
	momentumWeight     = 0.5
	priorWeight        = 0.5
	rateWeight         = 0.5
	minTimeFraction    = 0.02
	probFloor          = 0.01
	probCeil           = 0.99
)

// Peso de cada ponto de diferença no logit, por esporte
var pointWeight = map[string]float64{
	events.SportNFL:    0.08,
	events.SportNBA:    0.10,
	events.SportMLB:    0.35,
	events.SportNHL:    0.60,
	events.SportSoccer: 0.80,
}

const defaultPointWeight = 0.15

// Esportes com empate como resultado possível
var drawSports = map[string]bool{
	events.SportSoccer: true,
}

func weightFor(sport string) float64 {
	if w, ok := pointWeight[strings.ToUpper(sport)]; ok {
		return w
	}
	return defaultPointWeight
}

func sigmoid(z float64) float64 { return 1 / (1 + math.Exp(-z)) }

// score calcula (home, away, draw) a partir das features.
// A diferença projetada (placar + ritmo recente) é amplificada conforme o
// tempo acaba; com muito tempo restante o resultado tende a 0.5.
func score(sport string, f events.Features) (home, away float64, draw *float64) {
	frac := 1.0
	if f.TotalDuration > 0 {
		frac = stats.Clamp(f.TimeRemaining/f.TotalDuration, 0, 1)
	}

	projected := float64(f.ScoreDiff) + rateWeight*(f.ScoringRateHome-f.ScoringRateAway)*f.TimeRemaining
	z := projected * weightFor(sport) / math.Sqrt(math.Max(frac, minTimeFraction))
	z += f.Momentum * momentumWeight
	z += (f.H2H + f.FormHome - f.FormAway) * priorWeight * frac

	p := stats.Clamp(sigmoid(z), probFloor, probCeil)

	if !drawSports[strings.ToUpper(sport)] {
		return p, 1 - p, nil
	}

	// empate: cresce com o jogo empatado perto do fim, some com vantagem clara
	var d float64
	if f.ScoreDiff == 0 {
		d = 0.25 + 0.5*(1-frac)
	} else {
		d = 0.25 * frac / math.Abs(float64(f.ScoreDiff))
	}
	d = stats.Clamp(d, 0, 0.9)
	return p * (1 - d), (1 - p) * (1 - d), &d
}

// confidence é a média de: fração decorrida, diferença normalizada,
// densidade de eventos e estabilidade das últimas 3 previsões
func confidence(f events.Features, recentHome []float64) float64 {
	factors := []float64{
		f.ElapsedFraction(),
		math.Min(1, math.Abs(float64(f.ScoreDiff))/20),
		math.Min(1, float64(f.EventCount)/10),
	}
	if n := len(recentHome); n >= 3 {
		v := stats.Variance(recentHome[n-3:])
		factors = append(factors, math.Max(0.3, 1-v*10))
	}
	return stats.Clamp(stats.Mean(factors), 0.1, 1.0)
}

// Fallback deriva a probabilidade apenas da diferença de placar
func Fallback(st events.GameState) (home, away float64) {
	diff := float64(st.Score.Diff())
	home = 0.5 + math.Copysign(math.Min(0.4, math.Abs(diff)*0.03), diff)
	if diff == 0 {
		home = 0.5
	}
	return home, 1 - home
}
