// Package sim gera um feed ao vivo plausível (placar, lances e cotações)
// para alimentar o tópico de ingestão em desenvolvimento.
package sim

import (
	"encoding/json"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/radieske/live-odds-core/pkg/contracts/events"
)

// Fixture é uma partida do catálogo
type Fixture struct {
	GameID   string
	Sport    string
	HomeTeam string
	AwayTeam string
}

// Catálogo fixo de partidas simuladas
var Catalog = []Fixture{
	{GameID: "NBA_001", Sport: events.SportNBA, HomeTeam: "Lakers", AwayTeam: "Celtics"},
	{GameID: "NBA_002", Sport: events.SportNBA, HomeTeam: "Warriors", AwayTeam: "Nuggets"},
	{GameID: "NFL_001", Sport: events.SportNFL, HomeTeam: "Chiefs", AwayTeam: "Bills"},
	{GameID: "NHL_001", Sport: events.SportNHL, HomeTeam: "Bruins", AwayTeam: "Rangers"},
	{GameID: "SOC_001", Sport: events.SportSoccer, HomeTeam: "Flamengo", AwayTeam: "Palmeiras"},
}

var Bookmakers = []string{"pinnacle", "bet365", "betano"}

// periodos e minutos por período usados para avançar o relógio
var shape = map[string]struct {
	periods int
	minutes int
	points  []int // pontos possíveis por lance de placar
	rate    float64
}{
	events.SportNBA:    {4, 12, []int{2, 2, 3, 1}, 0.55},
	events.SportNFL:    {4, 15, []int{7, 3, 6}, 0.08},
	events.SportNHL:    {3, 20, []int{1}, 0.05},
	events.SportSoccer: {2, 45, []int{1}, 0.04},
}

// textos de lance: os de placar acompanham a atualização de score,
// os demais chegam como evento
var scoringPlays = map[string][]string{
	events.SportNBA:    {"%s makes layup", "%s three-pointer from the corner", "%s dunk"},
	events.SportNFL:    {"Touchdown %s", "%s field goal is good"},
	events.SportNHL:    {"Goal scored by %s"},
	events.SportSoccer: {"Goal for %s"},
}

var otherPlays = map[string][]string{
	events.SportNBA:    {"Turnover by %s", "Foul on %s", "%s call timeout"},
	events.SportNFL:    {"Pass intercepted by %s", "Fumble recovered by %s", "Penalty on %s, holding"},
	events.SportNHL:    {"Tripping penalty on %s", "Giveaway by %s"},
	events.SportSoccer: {"Yellow card for %s", "Foul by %s"},
}

// Game é o estado simulado de uma partida
type Game struct {
	Fixture
	Home, Away int
	Period     int
	Remaining  time.Duration // no período
	Active     bool
	odds       map[string]float64 // bookmaker:selection -> odds
}

// Simulator avança as partidas e produz mensagens de ingestão
type Simulator struct {
	rnd   *rand.Rand
	games []*Game
	now   func() time.Time
}

func New(seed int64, fixtures []Fixture, now func() time.Time) *Simulator {
	s := &Simulator{rnd: rand.New(rand.NewSource(seed)), now: now}
	for _, f := range fixtures {
		sh, ok := shape[f.Sport]
		if !ok {
			continue
		}
		s.games = append(s.games, &Game{
			Fixture:   f,
			Period:    1,
			Remaining: time.Duration(sh.minutes) * time.Minute,
			Active:    true,
			odds:      make(map[string]float64),
		})
	}
	return s
}

func (s *Simulator) Games() []*Game { return s.games }

// gera número aleatório entre min e max
func (s *Simulator) rndRange(min, max float64) float64 {
	return (s.rnd.Float64() * (max - min)) + min
}

// Tick avança cada partida ativa em step e devolve as mensagens geradas
func (s *Simulator) Tick(step time.Duration) []events.IngestMessage {
	var out []events.IngestMessage
	for _, g := range s.games {
		if !g.Active {
			continue
		}
		out = append(out, s.advance(g, step)...)
	}
	return out
}

func (s *Simulator) advance(g *Game, step time.Duration) []events.IngestMessage {
	sh := shape[g.Sport]
	ts := s.now().UTC()
	var out []events.IngestMessage

	team := g.HomeTeam
	home := s.rnd.Intn(2) == 0
	if !home {
		team = g.AwayTeam
	}

	scoringPlay := ""
	if s.rnd.Float64() < sh.rate {
		pts := sh.points[s.rnd.Intn(len(sh.points))]
		if home {
			g.Home += pts
		} else {
			g.Away += pts
		}
		list := scoringPlays[g.Sport]
		scoringPlay = fmt.Sprintf(list[s.rnd.Intn(len(list))], team)
	} else if s.rnd.Float64() < 0.3 {
		list := otherPlays[g.Sport]
		text := fmt.Sprintf(list[s.rnd.Intn(len(list))], team)
		out = append(out, message(g.GameID, events.KindEvent, events.RawPlay{Text: text, Team: team}, ts))
	}

	g.Remaining -= step
	clockMoved := false
	if g.Remaining <= 0 {
		// uma prorrogação no máximo
		if (g.Period >= sh.periods && g.Home != g.Away) || g.Period > sh.periods {
			g.Active = false
			g.Remaining = 0
		} else {
			g.Period++
			g.Remaining = time.Duration(sh.minutes) * time.Minute
		}
		clockMoved = true
	}

	if scoringPlay != "" || clockMoved || s.rnd.Float64() < 0.2 {
		upd := g.update()
		upd.ScoringPlay = scoringPlay
		out = append(out, message(g.GameID, events.KindScore, upd, ts))
	}
	if g.Active {
		out = append(out, s.quotes(g, ts)...)
	}
	return out
}

func (g *Game) update() events.ScoreUpdate {
	sport, home, away := g.Sport, g.HomeTeam, g.AwayTeam
	hs, as, period, active := g.Home, g.Away, g.Period, g.Active
	clock := fmt.Sprintf("%d:%02d", int(g.Remaining.Minutes()), int(g.Remaining.Seconds())%60)
	return events.ScoreUpdate{
		Sport: &sport, HomeTeam: &home, AwayTeam: &away,
		HomeScore: &hs, AwayScore: &as, Period: &period, Clock: &clock, Active: &active,
	}
}

// quotes gera moneyline por casa: preço "justo" pela diferença de placar
// mais ruído e margem da casa
func (s *Simulator) quotes(g *Game, ts time.Time) []events.IngestMessage {
	diff := float64(g.Home - g.Away)
	fair := 1 / (1 + math.Exp(-diff*0.15))
	var out []events.IngestMessage
	for _, bm := range Bookmakers {
		if s.rnd.Float64() < 0.5 {
			continue
		}
		for _, side := range []string{events.SelectionHome, events.SelectionAway} {
			p := fair
			if side == events.SelectionAway {
				p = 1 - fair
			}
			p = math.Min(0.97, math.Max(0.03, p+s.rndRange(-0.06, 0.06)))
			odds := math.Round(math.Max(events.MinDecimalOdds, 0.95/p)*100) / 100
			key := bm + ":" + side
			if g.odds[key] == odds {
				continue
			}
			g.odds[key] = odds
			out = append(out, message(g.GameID, events.KindOdds, events.OddsQuote{
				GameID: g.GameID, Sport: g.Sport, Bookmaker: bm,
				BetType: events.BetMoneyline, Selection: side, Odds: odds, Timestamp: ts,
			}, ts))
		}
	}
	return out
}

func message(gameID string, kind events.Kind, payload any, ts time.Time) events.IngestMessage {
	b, _ := json.Marshal(payload)
	return events.IngestMessage{GameID: gameID, Kind: kind, Payload: b, Timestamp: ts}
}
