package relatedness

import "math"

// ThresholdConfig carries the adaptive-threshold bounds (spec section
// 4.5 step 8; env-overridable defaults live in internal/config).
type ThresholdConfig struct {
	Default      float64
	MinThreshold float64
	MaxThreshold float64
}

// DefaultThresholdConfig matches spec.md's stated defaults.
func DefaultThresholdConfig() ThresholdConfig {
	return ThresholdConfig{Default: 0.75, MinThreshold: 0.60, MaxThreshold: 0.95}
}

// adaptiveThreshold implements spec section 4.5 step 8 exactly, branch by
// branch, over the candidate set's base (pre-boost) scores.
func adaptiveThreshold(baseScores []float64, cfg ThresholdConfig) (threshold float64, relaxed bool) {
	for _, b := range baseScores {
		if b >= 0.99 {
			return math.Min(0.99, cfg.Default), false
		}
	}

	n := len(baseScores)
	if n == 0 {
		return clamp(cfg.Default, cfg.MinThreshold, cfg.MaxThreshold), false
	}

	mean := meanOf(baseScores)
	stddev := stddevOf(baseScores, mean)
	maxScore := maxOf(baseScores)

	switch {
	case n < 5:
		threshold = math.Max(mean-0.10, cfg.MinThreshold)
	case stddev < 0.05:
		threshold = math.Max(mean+0.05, cfg.MinThreshold)
	case stddev < 0.15:
		threshold = math.Max(mean-0.05, cfg.MinThreshold)
	default:
		threshold = math.Max(mean-0.15, cfg.MinThreshold)
	}

	threshold = clamp(threshold, cfg.MinThreshold, cfg.MaxThreshold)

	if maxScore < threshold {
		threshold = math.Max(maxScore-0.05, cfg.MinThreshold)
		relaxed = true
	}
	return threshold, relaxed
}

func clamp(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

func meanOf(values []float64) float64 {
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func stddevOf(values []float64, mean float64) float64 {
	var sumSquares float64
	for _, v := range values {
		diff := v - mean
		sumSquares += diff * diff
	}
	return math.Sqrt(sumSquares / float64(len(values)))
}

func maxOf(values []float64) float64 {
	max := values[0]
	for _, v := range values[1:] {
		if v > max {
			max = v
		}
	}
	return max
}
