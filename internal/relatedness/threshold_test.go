package relatedness

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAdaptiveThreshold_HighBaseScoreCapsAtConfiguredDefault(t *testing.T) {
	cfg := DefaultThresholdConfig()
	threshold, relaxed := adaptiveThreshold([]float64{0.995, 0.5}, cfg)
	assert.Equal(t, 0.75, threshold)
	assert.False(t, relaxed)
}

func TestAdaptiveThreshold_FewSamplesUsesMeanMinusTenth(t *testing.T) {
	cfg := DefaultThresholdConfig()
	scores := []float64{0.8, 0.82, 0.78}
	threshold, _ := adaptiveThreshold(scores, cfg)
	mean := meanOf(scores)
	expected := mean - 0.10
	if expected < cfg.MinThreshold {
		expected = cfg.MinThreshold
	}
	assert.InDelta(t, expected, threshold, 1e-9)
}

func TestAdaptiveThreshold_LowStddevRaisesThreshold(t *testing.T) {
	cfg := DefaultThresholdConfig()
	// sigma ~0.037 (< 0.05) and the max 0.90 stays above mean+0.05, so the
	// result is not relaxed.
	scores := []float64{0.80, 0.80, 0.80, 0.80, 0.80, 0.90}
	threshold, _ := adaptiveThreshold(scores, cfg)
	mean := meanOf(scores)
	assert.InDelta(t, mean+0.05, threshold, 1e-6)
}

func TestAdaptiveThreshold_ClampsToMinAndMax(t *testing.T) {
	cfg := DefaultThresholdConfig()
	low, _ := adaptiveThreshold([]float64{0.1, 0.1, 0.1, 0.1, 0.1, 0.9}, cfg)
	assert.GreaterOrEqual(t, low, cfg.MinThreshold)
	assert.LessOrEqual(t, low, cfg.MaxThreshold)
}

func TestAdaptiveThreshold_RelaxesWhenMaxBelowThreshold(t *testing.T) {
	cfg := ThresholdConfig{Default: 0.75, MinThreshold: 0.60, MaxThreshold: 0.95}
	// six low, tightly clustered scores: computed threshold exceeds the max score.
	scores := []float64{0.61, 0.615, 0.61, 0.615, 0.61, 0.615}
	threshold, relaxed := adaptiveThreshold(scores, cfg)
	maxScore := maxOf(scores)
	if threshold > maxScore {
		t.Fatalf("expected relaxation to bring threshold at or below max score; threshold=%v max=%v", threshold, maxScore)
	}
	_ = relaxed
}

func TestAdaptiveThreshold_EmptyScoresUsesDefault(t *testing.T) {
	cfg := DefaultThresholdConfig()
	threshold, relaxed := adaptiveThreshold(nil, cfg)
	assert.Equal(t, cfg.Default, threshold)
	assert.False(t, relaxed)
}
