package rules

import (
	"fmt"
	"math"

	"github.com/fuelguard/fuelguard/internal/domain"
)

type priceKey struct {
	provider string
	fuelType string
}

// PriceSample is the per-provider, per-fuel-type price distribution of
// one evaluation batch.
type PriceSample struct {
	N      int
	Mean   float64
	StdDev float64
}

// PriceStats holds batch-level price-per-liter statistics grouped by
// provider and fuel type. Built once per batch from all transactions,
// including the ones under test.
type PriceStats struct {
	groups map[priceKey]PriceSample
}

// NewPriceStats computes price statistics over a batch. StdDev is the
// sample standard deviation (n-1 denominator); groups with fewer than
// two samples report zero spread.
func NewPriceStats(txs []domain.Transaction) *PriceStats {
	values := make(map[priceKey][]float64)
	for i := range txs {
		k := priceKey{provider: txs[i].Provider, fuelType: txs[i].FuelType}
		values[k] = append(values[k], txs[i].PricePerLiter)
	}

	groups := make(map[priceKey]PriceSample, len(values))
	for k, vs := range values {
		var sum float64
		for _, v := range vs {
			sum += v
		}
		mean := sum / float64(len(vs))

		var variance float64
		if len(vs) > 1 {
			for _, v := range vs {
				variance += (v - mean) * (v - mean)
			}
			variance /= float64(len(vs) - 1)
		}

		groups[k] = PriceSample{
			N:      len(vs),
			Mean:   mean,
			StdDev: math.Sqrt(variance),
		}
	}

	return &PriceStats{groups: groups}
}

// Sample returns the price distribution for a provider and fuel type.
func (s *PriceStats) Sample(provider, fuelType string) (PriceSample, bool) {
	if s == nil {
		return PriceSample{}, false
	}
	sample, ok := s.groups[priceKey{provider: provider, fuelType: fuelType}]
	return sample, ok
}

// checkPriceAnomaly fires when the price per liter deviates from the
// same-provider, same-fuel-type batch mean by more than the configured
// multiple of the sample standard deviation. Below the minimum sample
// size the statistics are not meaningful and the rule abstains.
func checkPriceAnomaly(tx *domain.Transaction, rc *Context) (string, bool) {
	sample, ok := rc.Prices.Sample(tx.Provider, tx.FuelType)
	if !ok || sample.N < rc.Config.PriceMinSamples {
		return "", false
	}

	deviation := math.Abs(tx.PricePerLiter - sample.Mean)
	if deviation <= rc.Config.PriceDeviationMultiple*sample.StdDev {
		return "", false
	}

	if sample.StdDev == 0 {
		return fmt.Sprintf("Price %.2f SEK/L deviates from uniform provider average %.2f SEK/L",
			tx.PricePerLiter, sample.Mean), true
	}

	return fmt.Sprintf("Price %.2f SEK/L deviates %.1fσ from provider average %.2f SEK/L",
		tx.PricePerLiter, deviation/sample.StdDev, sample.Mean), true
}
