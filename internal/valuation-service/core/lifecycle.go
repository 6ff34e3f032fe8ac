package core

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Start dispara as varreduras periódicas (expiração, TTL de previsões,
// despejo de partidas encerradas e limpeza de conexões mortas)
func (c *Core) Start(ctx context.Context) {
	ctx, c.cancel = context.WithCancel(ctx)

	c.every(ctx, c.cfg.SweepInterval, func() { c.SweepOnce() })
	c.every(ctx, c.cfg.ReapInterval, func() {
		if n := c.Broker.Reap(); n > 0 {
			c.log.Info("reaped dead connections", zap.Int("count", n))
		}
	})
}

func (c *Core) every(ctx context.Context, d time.Duration, fn func()) {
	if d <= 0 {
		return
	}
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		t := time.NewTicker(d)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				fn()
			}
		}
	}()
}

// SweepResult conta o que uma varredura removeu
type SweepResult struct {
	ExpiredValueBets int
	StalePredictions int
	EvictedGames     []string
}

// SweepOnce executa uma varredura completa
func (c *Core) SweepOnce() SweepResult {
	var res SweepResult
	res.ExpiredValueBets = len(c.Detector.Sweep())
	res.StalePredictions = c.Engine.Sweep()

	if c.cfg.GameRetention > 0 {
		for _, id := range c.States.Evict(c.now().Add(-c.cfg.GameRetention)) {
			unlock := c.locks.Lock(id)
			c.Odds.Evict(id)
			c.Momentum.Evict(id)
			c.Engine.Evict(id)
			c.Detector.Evict(id)
			c.published.Delete(id)
			unlock()
			res.EvictedGames = append(res.EvictedGames, id)
		}
	}

	if res.ExpiredValueBets > 0 || len(res.EvictedGames) > 0 {
		c.log.Info("sweep finished",
			zap.Int("expired_value_bets", res.ExpiredValueBets),
			zap.Int("stale_predictions", res.StalePredictions),
			zap.Strings("evicted_games", res.EvictedGames),
		)
	}
	return res
}

// Close encerra as varreduras e desconecta todos os assinantes
func (c *Core) Close() {
	if c.cancel != nil {
		c.cancel()
	}
	c.wg.Wait()
	c.Broker.Close()
}
