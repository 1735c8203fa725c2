package broker

import (
	"math"
	"math/rand"
	"sync"
	"time"
)

// SignalGenerator composes trade recommendations around a live quote. The
// market overview fields are heuristic and only give the recommendation
// context; the actionable parts are direction, price and close time.
type SignalGenerator struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

// NewSignalGenerator seeds a generator from the clock.
func NewSignalGenerator() *SignalGenerator {
	return &SignalGenerator{
		rnd: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

var (
	volatilityLevels = []string{"Low", "Medium", "High"}
	sentimentLevels  = []string{"Bullish", "Bearish", "Neutral", "Mixed"}
	volumeLevels     = []string{"Low", "Average", "High"}
	ratingLevels     = []string{"BUY", "SELL", "NEUTRAL"}
	rsiReadings      = []string{"Flat line", "Fluctuation", "Sharp move"}
	macdReadings     = []string{"Signal line crossover", "Flat line", "Divergence"}
	bollingerLevels  = []string{"Oscillating near middle band", "Touching upper band", "Touching lower band"}
	patternReadings  = []string{"Wedge forming", "Double top", "Channel", "Triangle"}
)

// Generate builds a signal for the asset at the given quote price. The close
// time is the quote time plus the expiration, truncated to whole seconds.
func (g *SignalGenerator) Generate(asset string, price float64, expiration time.Duration) *Signal {
	g.mu.Lock()
	defer g.mu.Unlock()

	direction := DirectionCall
	if g.rnd.Intn(2) == 1 {
		direction = DirectionPut
	}

	forecast := math.Round((0.3+g.rnd.Float64()*1.2)*100) / 100
	if direction == DirectionPut {
		forecast = -forecast
	}

	spread := price * 0.004

	return &Signal{
		Asset:           asset,
		Direction:       direction,
		Price:           price,
		CloseTime:       time.Now().Add(expiration).Truncate(time.Second),
		ForecastPercent: forecast,
		Volatility:      pick(g.rnd, volatilityLevels),
		Sentiment:       pick(g.rnd, sentimentLevels),
		Volume:          pick(g.rnd, volumeLevels),
		Support:         round5(price - spread),
		Resistance:      round5(price + spread),
		RatingSummary:   pick(g.rnd, ratingLevels),
		RatingMA:        pick(g.rnd, ratingLevels),
		RatingOsc:       pick(g.rnd, ratingLevels),
		RSI:             pick(g.rnd, rsiReadings),
		MACD:            pick(g.rnd, macdReadings),
		BollingerBands:  pick(g.rnd, bollingerLevels),
		Pattern:         pick(g.rnd, patternReadings),
	}
}

func pick(rnd *rand.Rand, values []string) string {
	return values[rnd.Intn(len(values))]
}

func round5(v float64) float64 {
	return math.Round(v*1e5) / 1e5
}
