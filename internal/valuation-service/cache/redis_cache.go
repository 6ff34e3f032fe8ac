package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/radieske/live-odds-core/pkg/contracts/events"
)

// RedisCache espelha os snapshots do núcleo no Redis para leitura por outros serviços
// Client: cliente Redis
// TTL: tempo de expiração dos registros
type RedisCache struct {
	Client *redis.Client
	TTL    time.Duration
}

// NewRedisCache cria uma instância de cache Redis com TTL configurável
func NewRedisCache(c *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{Client: c, TTL: ttl}
}

func keyState(gameID string) string           { return "live:state:" + gameID }
func keyPrediction(gameID string) string      { return "live:prediction:" + gameID }
func keyValueBets(gameID string) string       { return "live:valuebets:" + gameID }
func fieldValueBet(vb events.ValueBet) string { return vb.Key().String() }

// SetGameState armazena o último estado da partida
func (r *RedisCache) SetGameState(ctx context.Context, st events.GameState) error {
	return r.setJSON(ctx, keyState(st.GameID), st)
}

// SetPrediction armazena a última previsão publicada
func (r *RedisCache) SetPrediction(ctx context.Context, p events.WinProbability) error {
	return r.setJSON(ctx, keyPrediction(p.GameID), p)
}

// SetValueBet mantém um hash por partida com as value bets ativas;
// apostas desativadas saem do hash
func (r *RedisCache) SetValueBet(ctx context.Context, vb events.ValueBet) error {
	key := keyValueBets(vb.GameID)
	if !vb.IsActive {
		return r.Client.HDel(ctx, key, fieldValueBet(vb)).Err()
	}
	b, err := json.Marshal(vb)
	if err != nil {
		return err
	}
	pipe := r.Client.TxPipeline()
	pipe.HSet(ctx, key, fieldValueBet(vb), b)
	pipe.Expire(ctx, key, r.TTL)
	_, err = pipe.Exec(ctx)
	return err
}

func (r *RedisCache) setJSON(ctx context.Context, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return r.Client.Set(ctx, key, b, r.TTL).Err()
}
