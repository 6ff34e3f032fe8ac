package probability

import (
	"math"
	"strconv"
	"strings"

	"github.com/radieske/live-odds-core/pkg/contracts/events"
)

// duration descreve a estrutura de tempo de um esporte
type duration struct {
	Periods       int
	PeriodMinutes float64
	ClockBased    bool // false: estimativa pelo período (MLB)
}

var durationTable = map[string]duration{
	events.SportNFL:    {Periods: 4, PeriodMinutes: 15, ClockBased: true},
	events.SportNBA:    {Periods: 4, PeriodMinutes: 12, ClockBased: true},
	events.SportNHL:    {Periods: 3, PeriodMinutes: 20, ClockBased: true},
	events.SportSoccer: {Periods: 2, PeriodMinutes: 45, ClockBased: true},
	events.SportMLB:    {Periods: 9, PeriodMinutes: 20},
}

var defaultDuration = duration{Periods: 4, PeriodMinutes: 15, ClockBased: true}

// extra innings: tempo restante estimado
const extraInningsMinutes = 10.0

func durationFor(sport string) duration {
	if d, ok := durationTable[strings.ToUpper(sport)]; ok {
		return d
	}
	return defaultDuration
}

// TotalDuration retorna a duração regulamentar do jogo em minutos
func TotalDuration(sport string) float64 {
	d := durationFor(sport)
	return float64(d.Periods) * d.PeriodMinutes
}

// TimeRemaining estima os minutos restantes a partir de período e relógio.
// Sem relógio legível, assume metade do período atual.
func TimeRemaining(st events.GameState) float64 {
	if !st.Active {
		return 0
	}
	d := durationFor(st.Sport)
	period := st.Period
	if period < 1 {
		period = 1
	}

	if !d.ClockBased {
		if period > d.Periods {
			return extraInningsMinutes
		}
		return float64(d.Periods-period) * d.PeriodMinutes
	}

	if period > d.Periods {
		// prorrogação: só o relógio conta
		if left, ok := parseClock(st.Clock); ok {
			return left
		}
		return 0
	}

	left, ok := parseClock(st.Clock)
	if !ok {
		left = d.PeriodMinutes / 2
	}
	left = math.Min(left, d.PeriodMinutes)
	return float64(d.Periods-period)*d.PeriodMinutes + left
}

// parseClock converte "MM:SS" (ou "M:SS") em minutos
func parseClock(clock string) (float64, bool) {
	parts := strings.Split(strings.TrimSpace(clock), ":")
	if len(parts) != 2 {
		return 0, false
	}
	m, err := strconv.Atoi(parts[0])
	if err != nil || m < 0 {
		return 0, false
	}
	s, err := strconv.Atoi(parts[1])
	if err != nil || s < 0 || s >= 60 {
		return 0, false
	}
	return float64(m) + float64(s)/60, true
}
