// Package vision derives coarse skin-condition scores from raw photo bytes.
package vision

import (
	"math"

	"github.com/secmon-lab/dermis/pkg/domain/model"
	"github.com/secmon-lab/dermis/pkg/domain/types"
)

// MaxSamples bounds the number of bytes read from a single image
const MaxSamples = 18000

const maxConfidence = 0.85

type metrics struct {
	mean     float64
	edge     float64
	variance float64
}

// Estimate returns a VisualSignal for images, or nil when there is nothing to analyze.
// The result depends only on the input bytes.
func Estimate(images [][]byte) *model.VisualSignal {
	var sum metrics
	count := 0
	for _, img := range images {
		if len(img) == 0 {
			continue
		}
		m := measure(img)
		sum.mean += m.mean
		sum.edge += m.edge
		sum.variance += m.variance
		count++
	}
	if count == 0 {
		return nil
	}

	n := float64(count)
	mean := sum.mean / n
	edge := sum.edge / n
	variance := sum.variance / n

	hydration := clamp(0.4 + 0.35*(1-variance) + 0.2*(mean-0.5))
	oiliness := clamp(0.48 + 0.28*variance + 0.18*edge - 0.1*mean)
	texture := clamp(0.45 + 0.3*(1-edge) + 0.2*(1-variance))

	return &model.VisualSignal{
		Hydration:    round(hydration),
		Oiliness:     round(oiliness),
		Texture:      round(texture),
		DetectedType: classify(hydration, oiliness),
		Concerns:     concerns(hydration, oiliness, texture),
		Confidence:   math.Min(maxConfidence, 0.5+0.1*n),
	}
}

func measure(img []byte) metrics {
	stride := 1
	if len(img) > MaxSamples {
		stride = int(math.Ceil(float64(len(img)) / MaxSamples))
	}

	var (
		total, totalSq, edgeTotal float64
		prev                      float64
		samples                   int
	)
	for i := 0; i < len(img) && samples < MaxSamples; i += stride {
		s := float64(img[i]) / 255
		total += s
		totalSq += s * s
		if samples > 0 {
			edgeTotal += math.Abs(s - prev)
		}
		prev = s
		samples++
	}

	n := float64(samples)
	mean := total / n
	variance := totalSq/n - mean*mean
	if variance < 0 {
		variance = 0
	}

	edge := 0.0
	if samples > 1 {
		edge = edgeTotal / float64(samples-1)
	}

	return metrics{
		mean:     mean,
		edge:     clamp(edge),
		variance: clamp(variance * 4),
	}
}

func classify(hydration, oiliness float64) types.SkinType {
	switch {
	case oiliness > 0.63:
		return types.SkinTypeOily
	case hydration < 0.42:
		return types.SkinTypeDry
	case math.Abs(oiliness-0.5) > 0.09:
		return types.SkinTypeCombination
	default:
		return types.SkinTypeNormal
	}
}

func concerns(hydration, oiliness, texture float64) []string {
	out := []string{}
	if oiliness > 0.62 {
		out = append(out, model.ConcernExcessOil)
	}
	if hydration < 0.44 {
		out = append(out, model.ConcernDehydration)
	}
	if texture < 0.5 {
		out = append(out, model.ConcernUnevenTexture)
	}
	return out
}

func clamp(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

// round keeps scores stable across platforms when serialized
func round(v float64) float64 {
	return math.Round(v*1000) / 1000
}
