// Package gamestate guarda o último estado conhecido de cada partida ao vivo.
//
// Cada partida tem seu próprio slot: escritas na mesma partida são
// serializadas pelo mutex do slot e publicadas como snapshot imutável
// (atomic.Pointer); leituras nunca bloqueiam um escritor.
package gamestate

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/live-odds-core/pkg/contracts/events"
)

var (
	ErrNotFound   = errors.New("game not found")
	ErrOutOfOrder = errors.New("out-of-order update")
)

type slot struct {
	mu    sync.Mutex
	state atomic.Pointer[events.GameState]
}

// Store é o repositório em memória de GameState
type Store struct {
	log *zap.Logger

	mu    sync.RWMutex
	games map[string]*slot
}

func NewStore(log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{log: log, games: make(map[string]*slot)}
}

func (s *Store) slotFor(gameID string, create bool) *slot {
	s.mu.RLock()
	sl, ok := s.games[gameID]
	s.mu.RUnlock()
	if ok || !create {
		return sl
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if sl, ok = s.games[gameID]; !ok {
		sl = &slot{}
		s.games[gameID] = sl
	}
	return sl
}

// Upsert aplica o delta com timestamp ts e devolve o novo snapshot.
// Atualizações mais antigas que a última aplicada são rejeitadas (ErrOutOfOrder).
// Timestamps iguais são aceitos: a ingestão é at-least-once.
func (s *Store) Upsert(gameID string, delta events.ScoreUpdate, ts time.Time) (events.GameState, error) {
	if gameID == "" {
		return events.GameState{}, fmt.Errorf("upsert: empty game id")
	}
	sl := s.slotFor(gameID, true)

	sl.mu.Lock()
	defer sl.mu.Unlock()

	var next events.GameState
	if cur := sl.state.Load(); cur != nil {
		if ts.Before(cur.LastUpdated) {
			s.log.Warn("out-of-order game update rejected",
				zap.String("game_id", gameID),
				zap.Time("update_ts", ts),
				zap.Time("last_updated", cur.LastUpdated),
			)
			return *cur, fmt.Errorf("game %s: %w", gameID, ErrOutOfOrder)
		}
		next = *cur
	} else {
		next = events.GameState{GameID: gameID, Period: 1, Active: true}
	}

	apply(&next, delta)
	next.LastUpdated = ts

	sl.state.Store(&next)
	return next, nil
}

func apply(st *events.GameState, d events.ScoreUpdate) {
	if d.Sport != nil {
		st.Sport = *d.Sport
	}
	if d.HomeTeam != nil {
		st.HomeTeam = *d.HomeTeam
	}
	if d.AwayTeam != nil {
		st.AwayTeam = *d.AwayTeam
	}
	if d.HomeScore != nil {
		st.Score.Home = *d.HomeScore
	}
	if d.AwayScore != nil {
		st.Score.Away = *d.AwayScore
	}
	if d.Period != nil && *d.Period > 0 {
		st.Period = *d.Period
	}
	if d.Clock != nil {
		st.Clock = *d.Clock
	}
	if d.Possession != nil {
		st.Possession = *d.Possession
	}
	if d.Active != nil {
		st.Active = *d.Active
	}
}

// Get retorna o snapshot atual da partida
func (s *Store) Get(gameID string) (events.GameState, error) {
	sl := s.slotFor(gameID, false)
	if sl == nil {
		return events.GameState{}, ErrNotFound
	}
	st := sl.state.Load()
	if st == nil {
		return events.GameState{}, ErrNotFound
	}
	return *st, nil
}

// List retorna os snapshots de todas as partidas conhecidas
func (s *Store) List() []events.GameState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]events.GameState, 0, len(s.games))
	for _, sl := range s.games {
		if st := sl.state.Load(); st != nil {
			out = append(out, *st)
		}
	}
	return out
}

// Evict remove partidas inativas cuja última atualização é anterior a cutoff.
// Partidas ativas nunca são removidas.
func (s *Store) Evict(cutoff time.Time) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var evicted []string
	for id, sl := range s.games {
		st := sl.state.Load()
		if st == nil || st.Active || !st.LastUpdated.Before(cutoff) {
			continue
		}
		delete(s.games, id)
		evicted = append(evicted, id)
	}
	return evicted
}
