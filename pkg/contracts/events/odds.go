package events

import (
	"fmt"
	"time"
)

// BetType identifica o mercado de uma cotação
type BetType string

const (
	BetMoneyline BetType = "moneyline"
	BetSpread    BetType = "spread"
	BetTotal     BetType = "total"
)

// Seleções reconhecidas
const (
	SelectionHome  = "home"
	SelectionAway  = "away"
	SelectionDraw  = "draw"
	SelectionOver  = "over"
	SelectionUnder = "under"
)

// MinDecimalOdds é o menor valor aceito para odds decimais
const MinDecimalOdds = 1.01

// QuoteKey identifica a série de cotações (partida, casa, mercado, seleção)
type QuoteKey struct {
	GameID    string  `json:"game_id"`
	Bookmaker string  `json:"bookmaker"`
	BetType   BetType `json:"bet_type"`
	Selection string  `json:"selection"`
}

func (k QuoteKey) String() string {
	return fmt.Sprintf("%s:%s:%s:%s", k.GameID, k.Bookmaker, k.BetType, k.Selection)
}

// OddsQuote é uma cotação imutável; cotações novas substituem as antigas
type OddsQuote struct {
	GameID    string    `json:"game_id"`
	Sport     string    `json:"sport,omitempty"`
	Bookmaker string    `json:"bookmaker"`
	BetType   BetType   `json:"bet_type"`
	Selection string    `json:"selection"`
	Odds      float64   `json:"odds"`
	Line      *float64  `json:"line,omitempty"` // spread ou total
	Timestamp time.Time `json:"timestamp"`
}

// Key retorna a chave da série desta cotação
func (q OddsQuote) Key() QuoteKey {
	return QuoteKey{GameID: q.GameID, Bookmaker: q.Bookmaker, BetType: q.BetType, Selection: q.Selection}
}

// Direções de movimento de linha
const (
	DirectionUp     = "up"
	DirectionDown   = "down"
	DirectionStable = "stable"
)

// LineMovement compara duas cotações consecutivas da mesma série
type LineMovement struct {
	GameID       string    `json:"game_id"`
	Bookmaker    string    `json:"bookmaker"`
	BetType      BetType   `json:"bet_type"`
	Selection    string    `json:"selection"`
	OldOdds      float64   `json:"old_odds"`
	NewOdds      float64   `json:"new_odds"`
	OldLine      *float64  `json:"old_line,omitempty"`
	NewLine      *float64  `json:"new_line,omitempty"`
	Delta        float64   `json:"delta"`
	Direction    string    `json:"direction"`
	Significance float64   `json:"significance"`
	Timestamp    time.Time `json:"timestamp"`
}
