package services

import (
	"github.com/MdShahriya/LNODE-sub000/models"
)

// BasePointsRate is the accrual rate in points per second of uptime
// (12 per minute, 720 per hour) before the quality multiplier.
const BasePointsRate = 0.2

// MaxSessionUptime caps a single session at 24 hours of accrual.
const MaxSessionUptime int64 = 86400

// Penalty caps for repeated errors/warnings within one session.
const (
	maxErrorPenalty   = 30.0
	maxWarningPenalty = 15.0
)

var qualityMultipliers = map[models.NodeQuality]float64{
	models.NodeQualityBronze:   1.0,
	models.NodeQualitySilver:   1.2,
	models.NodeQualityGold:     1.5,
	models.NodeQualityPlatinum: 2.0,
	models.NodeQualityDiamond:  3.0,
}

// QualityMultiplier returns the accrual multiplier for a tier.
// Unknown values fall back to bronze.
func QualityMultiplier(quality models.NodeQuality) float64 {
	if m, ok := qualityMultipliers[quality]; ok {
		return m
	}
	return qualityMultipliers[models.NodeQualityBronze]
}

// PerformanceScore grades session health from 100 down, one deduction per
// resource band plus capped per-incident deductions, clamped to [0,100].
func PerformanceScore(cpuUsage, memoryUsageMB, networkLatencyMs float64, errorCount, warningCount int) float64 {
	score := 100.0

	switch {
	case cpuUsage > 80:
		score -= 20
	case cpuUsage > 60:
		score -= 10
	case cpuUsage > 40:
		score -= 5
	}

	switch {
	case memoryUsageMB > 2000:
		score -= 15
	case memoryUsageMB > 1000:
		score -= 8
	case memoryUsageMB > 500:
		score -= 3
	}

	switch {
	case networkLatencyMs > 500:
		score -= 25
	case networkLatencyMs > 200:
		score -= 15
	case networkLatencyMs > 100:
		score -= 8
	case networkLatencyMs > 50:
		score -= 3
	}

	if errorCount > 0 {
		penalty := float64(errorCount) * 5
		if penalty > maxErrorPenalty {
			penalty = maxErrorPenalty
		}
		score -= penalty
	}
	if warningCount > 0 {
		penalty := float64(warningCount) * 2
		if penalty > maxWarningPenalty {
			penalty = maxWarningPenalty
		}
		score -= penalty
	}

	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

// ClassifyQuality returns the first tier whose thresholds all hold,
// evaluated strictest first. Re-run on every heartbeat; the classification
// standing at stop-time is the one accrual uses.
func ClassifyQuality(score float64, uptimeSeconds int64, errorCount int) models.NodeQuality {
	uptimeHours := float64(uptimeSeconds) / 3600

	switch {
	case score >= 95 && uptimeHours >= 100 && errorCount == 0:
		return models.NodeQualityDiamond
	case score >= 90 && uptimeHours >= 50 && errorCount <= 1:
		return models.NodeQualityPlatinum
	case score >= 80 && uptimeHours >= 20 && errorCount <= 3:
		return models.NodeQualityGold
	case score >= 70 && uptimeHours >= 5 && errorCount <= 5:
		return models.NodeQualitySilver
	default:
		return models.NodeQualityBronze
	}
}
