package scoring

import "math"

// Tender pattern shape: wins saturate at winSaturation; the value ratio
// saturates ratioSpan above the department mean.
const (
	winSaturation  = 5.0
	ratioSpan      = 0.4
	winShare       = 0.7
	ratioShare     = 0.3
	shellSaturate  = 5.0
	addressOnlyMul = 0.5
)

// Confidence bounds.
const (
	baseConfidence   = 0.5
	degreePerPoint   = 20.0
	absentConfidence = 0.3
)

// Clamp01 bounds v to [0,1]. NaN maps to 0.
func Clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// SharedDirectorScore normalizes n, the number of companies reachable via a
// shared director, against the population mean and max. Companies at or
// below the mean score 0.
func SharedDirectorScore(n int, mean float64, max int) float64 {
	x := float64(n)
	if x <= mean || float64(max) <= mean {
		return 0
	}
	return Clamp01((x - mean) / (float64(max) - mean))
}

// TenderPatternScore rises with the win count and with the mean ratio of
// won contract values to the issuing department's mean value.
func TenderPatternScore(wins int, ratio float64) float64 {
	if wins <= 0 {
		return 0
	}
	w := math.Min(float64(wins)/winSaturation, 1)
	r := Clamp01((ratio - 1) / ratioSpan)
	return Clamp01(winShare*w + ratioShare*r)
}

// ShellScore rises with the number of other companies sharing both
// registration year and address (full weight) or only the address (half).
func ShellScore(sameYearAndAddress, addressOnly int) float64 {
	return Clamp01(float64(sameYearAndAddress)/shellSaturate + addressOnlyMul*float64(addressOnly)/shellSaturate)
}

// Confidence grows with the number of edges touching the company.
func Confidence(degree int, present bool) float64 {
	if !present {
		return absentConfidence
	}
	return math.Min(baseConfidence+float64(degree)/degreePerPoint, 1)
}
