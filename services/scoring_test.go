package services

import (
	"testing"

	"github.com/MdShahriya/LNODE-sub000/models"

	"github.com/stretchr/testify/assert"
)

func TestPerformanceScorePerfectInputs(t *testing.T) {
	assert.Equal(t, 100.0, PerformanceScore(0, 0, 0, 0, 0))
	assert.Equal(t, 100.0, PerformanceScore(40, 500, 50, 0, 0)) // at-threshold values carry no penalty
}

func TestPerformanceScoreDeductions(t *testing.T) {
	tests := []struct {
		name     string
		cpu      float64
		mem      float64
		latency  float64
		errors   int
		warnings int
		want     float64
	}{
		{"cpu high", 85, 0, 0, 0, 0, 80},
		{"cpu medium", 65, 0, 0, 0, 0, 90},
		{"cpu low band", 45, 0, 0, 0, 0, 95},
		{"memory high", 0, 2500, 0, 0, 0, 85},
		{"memory medium", 0, 1500, 0, 0, 0, 92},
		{"memory low band", 0, 600, 0, 0, 0, 97},
		{"latency extreme", 0, 0, 600, 0, 0, 75},
		{"latency high", 0, 0, 300, 0, 0, 85},
		{"latency medium", 0, 0, 150, 0, 0, 92},
		{"latency low band", 0, 0, 60, 0, 0, 97},
		{"errors", 0, 0, 0, 3, 0, 85},
		{"errors capped", 0, 0, 0, 10, 0, 70},
		{"warnings", 0, 0, 0, 0, 4, 92},
		{"warnings capped", 0, 0, 0, 0, 10, 85},
		{"combined", 85, 2500, 600, 10, 10, 0}, // total penalty exceeds 100, clamps
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PerformanceScore(tt.cpu, tt.mem, tt.latency, tt.errors, tt.warnings))
		})
	}
}

func TestPerformanceScoreBounds(t *testing.T) {
	extremes := []struct {
		cpu, mem, latency float64
		errors, warnings  int
	}{
		{-100, -100, -100, -5, -5},
		{1e9, 1e9, 1e9, 1 << 20, 1 << 20},
		{0, 0, 0, 0, 0},
		{100, 4000, 10000, 1000, 1000},
	}
	for _, e := range extremes {
		score := PerformanceScore(e.cpu, e.mem, e.latency, e.errors, e.warnings)
		assert.GreaterOrEqual(t, score, 0.0)
		assert.LessOrEqual(t, score, 100.0)
	}
}

func TestClassifyQuality(t *testing.T) {
	hours := func(h int64) int64 { return h * 3600 }

	tests := []struct {
		name    string
		score   float64
		uptime  int64
		errors  int
		want    models.NodeQuality
	}{
		{"diamond", 95, hours(100), 0, models.NodeQualityDiamond},
		{"diamond blocked by one error", 95, hours(100), 1, models.NodeQualityPlatinum},
		{"platinum", 90, hours(50), 1, models.NodeQualityPlatinum},
		{"gold", 80, hours(20), 3, models.NodeQualityGold},
		{"silver", 70, hours(5), 5, models.NodeQualitySilver},
		{"bronze default", 100, 0, 0, models.NodeQualityBronze},
		{"bronze on errors", 70, hours(5), 6, models.NodeQualityBronze},
		{"score just under silver", 69.9, hours(10), 0, models.NodeQualityBronze},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyQuality(tt.score, tt.uptime, tt.errors))
		})
	}
}

var tierRank = map[models.NodeQuality]int{
	models.NodeQualityBronze:   0,
	models.NodeQualitySilver:   1,
	models.NodeQualityGold:     2,
	models.NodeQualityPlatinum: 3,
	models.NodeQualityDiamond:  4,
}

// Improving any single input (score up, uptime up, errors down) must never
// downgrade the tier.
func TestClassifyQualityMonotonic(t *testing.T) {
	scores := []float64{0, 50, 69, 70, 79, 80, 89, 90, 94, 95, 100}
	uptimes := []int64{0, 4 * 3600, 5 * 3600, 19 * 3600, 20 * 3600, 49 * 3600, 50 * 3600, 99 * 3600, 100 * 3600, 400 * 3600}
	errCounts := []int{10, 6, 5, 4, 3, 2, 1, 0} // descending = improving

	for _, up := range uptimes {
		for _, errs := range errCounts {
			prev := -1
			for _, sc := range scores {
				rank := tierRank[ClassifyQuality(sc, up, errs)]
				assert.GreaterOrEqual(t, rank, prev, "score %v uptime %v errors %v", sc, up, errs)
				prev = rank
			}
		}
	}
	for _, sc := range scores {
		for _, errs := range errCounts {
			prev := -1
			for _, up := range uptimes {
				rank := tierRank[ClassifyQuality(sc, up, errs)]
				assert.GreaterOrEqual(t, rank, prev)
				prev = rank
			}
		}
	}
	for _, sc := range scores {
		for _, up := range uptimes {
			prev := -1
			for _, errs := range errCounts {
				rank := tierRank[ClassifyQuality(sc, up, errs)]
				assert.GreaterOrEqual(t, rank, prev)
				prev = rank
			}
		}
	}
}

func TestQualityMultiplier(t *testing.T) {
	assert.Equal(t, 1.0, QualityMultiplier(models.NodeQualityBronze))
	assert.Equal(t, 1.2, QualityMultiplier(models.NodeQualitySilver))
	assert.Equal(t, 1.5, QualityMultiplier(models.NodeQualityGold))
	assert.Equal(t, 2.0, QualityMultiplier(models.NodeQualityPlatinum))
	assert.Equal(t, 3.0, QualityMultiplier(models.NodeQualityDiamond))
	assert.Equal(t, 1.0, QualityMultiplier(models.NodeQuality("unknown")))
}
