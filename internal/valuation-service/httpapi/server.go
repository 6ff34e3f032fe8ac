package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/radieske/live-odds-core/internal/valuation-service/core"
	"github.com/radieske/live-odds-core/internal/valuation-service/gamestate"
	"github.com/radieske/live-odds-core/internal/valuation-service/probability"
	"github.com/radieske/live-odds-core/pkg/contracts/events"
)

// History é satisfeito por *repository.PostgresRepo
type History interface {
	ValueBetsByGame(ctx context.Context, gameID string, limit int) ([]events.ValueBet, error)
}

// API expõe a superfície de consulta do núcleo em JSON
type API struct {
	Core    *core.Core
	History History      // arquivo de value bets, opcional
	WS      http.Handler // endpoint de assinatura, opcional
}

// Router retorna o roteador HTTP com os endpoints REST
func (a *API) Router() http.Handler {
	r := chi.NewRouter()
	r.Get("/v1/games", a.listGames)
	r.Route("/v1/games/{id}", func(r chi.Router) {
		r.Get("/state", a.getState)                 // estado atual
		r.Get("/odds", a.getOdds)                   // última cotação por série (?bet_type=)
		r.Get("/odds/best", a.getBestOdds)          // melhor casa (?bet_type=&selection=)
		r.Get("/odds/trend", a.getOddsTrend)        // tendência de uma série
		r.Get("/probability", a.getProbability)     // previsão atual
		r.Get("/probability/trend", a.getProbTrend) // tendência das previsões (?window=)
		r.Get("/momentum", a.getMomentum)           // momentum atual
		r.Get("/events", a.getEvents)               // eventos recentes
		r.Get("/valuebets", a.getGameValueBets)     // value bets ativas da partida
		r.Put("/priors", a.putPriors)               // priors externos
		if a.History != nil {
			r.Get("/valuebets/history", a.getValueBetHistory) // arquivo (?limit=)
		}
	})
	r.Get("/v1/valuebets", a.listValueBets)
	r.Get("/v1/stats", a.getStats)
	if a.WS != nil {
		r.Handle("/ws", a.WS)
	}
	return r
}

// writeJSON serializa a resposta em JSON e define o status HTTP
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func betTypeParam(r *http.Request) (events.BetType, bool) {
	bt := events.BetType(r.URL.Query().Get("bet_type"))
	switch bt {
	case "", events.BetMoneyline, events.BetSpread, events.BetTotal:
		return bt, true
	}
	return "", false
}

func (a *API) listGames(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.Core.Games())
}

func (a *API) getState(w http.ResponseWriter, r *http.Request) {
	snap, err := a.Core.GameState(chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, gamestate.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (a *API) getOdds(w http.ResponseWriter, r *http.Request) {
	bt, ok := betTypeParam(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid bet_type")
		return
	}
	writeJSON(w, http.StatusOK, a.Core.OddsSnapshot(chi.URLParam(r, "id"), bt))
}

func (a *API) getBestOdds(w http.ResponseWriter, r *http.Request) {
	bt, ok := betTypeParam(r)
	sel := r.URL.Query().Get("selection")
	if !ok || bt == "" || sel == "" {
		writeError(w, http.StatusBadRequest, "bet_type and selection are required")
		return
	}
	snap, found := a.Core.BestOdds(chi.URLParam(r, "id"), bt, sel)
	if !found {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (a *API) getOddsTrend(w http.ResponseWriter, r *http.Request) {
	bt, ok := betTypeParam(r)
	q := r.URL.Query()
	if !ok || bt == "" || q.Get("bookmaker") == "" || q.Get("selection") == "" {
		writeError(w, http.StatusBadRequest, "bookmaker, bet_type and selection are required")
		return
	}
	key := events.QuoteKey{
		GameID:    chi.URLParam(r, "id"),
		Bookmaker: q.Get("bookmaker"),
		BetType:   bt,
		Selection: q.Get("selection"),
	}
	writeJSON(w, http.StatusOK, a.Core.OddsTrend(key))
}

func (a *API) getProbability(w http.ResponseWriter, r *http.Request) {
	snap, err := a.Core.WinProbability(chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, gamestate.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (a *API) getProbTrend(w http.ResponseWriter, r *http.Request) {
	window := 10 * time.Minute
	if v := r.URL.Query().Get("window"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			writeError(w, http.StatusBadRequest, "invalid window")
			return
		}
		window = d
	}
	writeJSON(w, http.StatusOK, a.Core.PredictionTrend(chi.URLParam(r, "id"), window))
}

func (a *API) getMomentum(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.Core.MomentumScore(chi.URLParam(r, "id")))
}

func (a *API) getEvents(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.Core.RecentEvents(chi.URLParam(r, "id")))
}

func (a *API) getGameValueBets(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.Core.ActiveValueBets(chi.URLParam(r, "id")))
}

func (a *API) getValueBetHistory(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 1000 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}
	out, err := a.History.ValueBetsByGame(r.Context(), chi.URLParam(r, "id"), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if out == nil {
		out = []events.ValueBet{}
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *API) listValueBets(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.Core.ActiveValueBets(""))
}

func (a *API) putPriors(w http.ResponseWriter, r *http.Request) {
	var p probability.Priors
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	a.Core.SetPriors(chi.URLParam(r, "id"), p)
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) getStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.Core.Stats())
}
