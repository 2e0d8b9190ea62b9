package memory

import (
	"math"

	"github.com/BaSui01/sriflow/types"
)

// maxIntensity is the largest unnormalized magnitude reachable from in-range
// inputs, rounded to √6 so typical strong emotions land near 1.
var maxIntensity = math.Sqrt(6)

// Intensity returns the emotional magnitude of v in [0, 1].
//
// The core dimensions are measured from neutral (valence 0, arousal and
// dominance 0.5); the six discrete emotions are measured from zero.
func Intensity(v types.AffectiveVector) float64 {
	a := v.Arousal - 0.5
	d := v.Dominance - 0.5
	basic := v.Valence*v.Valence + a*a + d*d

	extended := v.Surprise*v.Surprise + v.Fear*v.Fear + v.Joy*v.Joy +
		v.Anger*v.Anger + v.Sadness*v.Sadness + v.Disgust*v.Disgust

	return clamp01(math.Sqrt(basic+extended) / maxIntensity)
}

func clamp01(x float64) float64 {
	switch {
	case math.IsNaN(x):
		return 0
	case x < 0:
		return 0
	case x > 1:
		return 1
	default:
		return x
	}
}
