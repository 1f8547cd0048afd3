package dynet

import (
	"math"
	"time"
)

// DyNet encoding constants.
const (
	// MaxLevel is the highest channel level the bus accepts.
	MaxLevel = 254

	// maxFade is the largest fade value the 24-bit fade field can carry.
	maxFade = 0xFFFFFF

	// fadeUnit is the resolution of the DyNet2 fade field.
	fadeUnit = 10 * time.Millisecond

	// v1FadeUnit is the resolution of the single DyNet1 fade byte.
	v1FadeUnit = 20 * time.Millisecond

	// fixed88Scale is the scale factor of the 8.8 fixed-point format.
	fixed88Scale = 256

	// maxExactFloat bounds values that convert to int64 without loss.
	maxExactFloat = 1 << 53

	byteShift = 8
)

// EncodeFixed88 converts x to signed 8.8 fixed point and returns the high and
// low bytes. NaN, infinities and values too large to represent yield (0, 0).
func EncodeFixed88(x float64) (hi, lo byte) {
	scaled := x * fixed88Scale
	if !isFinite(scaled) || math.Abs(scaled) > maxExactFloat {
		return 0, 0
	}
	raw := int64(scaled)
	return byte(raw >> byteShift), byte(raw)
}

// EncodeDecimal splits x into its integer part and its fraction in
// hundredths (0-99), each masked to a byte. This is the encoding used by
// temperature and setpoint bodies: 21.5 becomes (0x15, 0x32).
//
// A fraction that rounds up to 100 is carried into the integer part, so
// 21.999 encodes as (22, 0). Non-finite input yields (0, 0).
func EncodeDecimal(x float64) (intPart, frac byte) {
	if !isFinite(x) || math.Abs(x) > maxExactFloat {
		return 0, 0
	}
	whole := math.Trunc(x)
	hundredths := math.Round((x - whole) * 100)
	switch {
	case hundredths >= 100:
		whole++
		hundredths -= 100
	case hundredths <= -100:
		whole--
		hundredths += 100
	}
	return byte(int64(whole)), byte(int64(hundredths))
}

// PercentToLevel maps a percentage onto the bus level range 0-254.
// Input is clamped to [0, 100]; NaN yields 0.
//
//	PercentToLevel(50)  // 127
//	PercentToLevel(150) // 254
func PercentToLevel(percent float64) int {
	if math.IsNaN(percent) {
		return 0
	}
	percent = math.Max(0, math.Min(percent, 100))
	return int(math.Round(percent / 100 * MaxLevel))
}

// fadeHundredths converts a fade duration to the 24-bit DyNet2 fade value.
// The second return is false when the duration is negative or does not fit.
func fadeHundredths(fade time.Duration) (uint32, bool) {
	if fade < 0 {
		return 0, false
	}
	v := fade / fadeUnit
	if v > maxFade {
		return 0, false
	}
	return uint32(v), true
}

// fadeV1 converts a fade duration to the DyNet1 fade byte, saturating at 0xFF.
func fadeV1(fade time.Duration) byte {
	if fade <= 0 {
		return 0
	}
	v := fade / v1FadeUnit
	if v > math.MaxUint8 {
		return math.MaxUint8
	}
	return byte(v)
}

func isFinite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}
