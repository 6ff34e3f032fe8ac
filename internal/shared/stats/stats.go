// Package stats reúne as estatísticas simples usadas em tendências de odds e de previsões.
// Séries vazias ou degeneradas retornam zero em vez de NaN.
package stats

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// Mean retorna a média; zero para série vazia
func Mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	return stat.Mean(xs, nil)
}

// Variance é a variância populacional
func Variance(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	return stat.PopVariance(xs, nil)
}

// StdDev é o desvio padrão populacional
func StdDev(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	return stat.PopStdDev(xs, nil)
}

// Slope ajusta y = a + b*x por mínimos quadrados com x = 0..n-1 e retorna b
func Slope(ys []float64) float64 {
	xs := make([]float64, len(ys))
	for i := range xs {
		xs[i] = float64(i)
	}
	return SlopeXY(xs, ys)
}

// SlopeXY retorna a inclinação da regressão linear simples de ys sobre xs
func SlopeXY(xs, ys []float64) float64 {
	if len(ys) < 2 || len(xs) != len(ys) {
		return 0
	}
	_, beta := stat.LinearRegression(xs, ys, nil, false)
	if math.IsNaN(beta) || math.IsInf(beta, 0) {
		return 0
	}
	return beta
}

// Clamp limita v ao intervalo [lo, hi]
func Clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
