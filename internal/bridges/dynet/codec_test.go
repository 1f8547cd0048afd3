package dynet

import (
	"math"
	"testing"
	"time"
)

func TestEncodeFixed88(t *testing.T) {
	tests := []struct {
		name   string
		value  float64
		wantHi byte
		wantLo byte
	}{
		{"one", 1.0, 0x01, 0x00},
		{"half", 0.5, 0x00, 0x80},
		{"21.5", 21.5, 0x15, 0x80},
		{"truncates", 1.999, 0x01, 0xFF},
		{"negative one", -1.0, 0xFF, 0x00},
		{"zero", 0, 0x00, 0x00},
		{"NaN", math.NaN(), 0x00, 0x00},
		{"+Inf", math.Inf(1), 0x00, 0x00},
		{"-Inf", math.Inf(-1), 0x00, 0x00},
		{"huge", 1e300, 0x00, 0x00},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hi, lo := EncodeFixed88(tt.value)
			if hi != tt.wantHi || lo != tt.wantLo {
				t.Errorf("EncodeFixed88(%v) = (%02X, %02X), want (%02X, %02X)", tt.value, hi, lo, tt.wantHi, tt.wantLo)
			}
		})
	}
}

func TestEncodeDecimal(t *testing.T) {
	tests := []struct {
		name     string
		value    float64
		wantInt  byte
		wantFrac byte
	}{
		{"21.5", 21.5, 0x15, 0x32},
		{"whole", 20, 0x14, 0x00},
		{"quarter", 0.25, 0x00, 0x19},
		{"18.05", 18.05, 0x12, 0x05},
		{"carry into integer", 21.999, 0x16, 0x00},
		{"masked integer", 300.5, 0x2C, 0x32},
		{"NaN", math.NaN(), 0x00, 0x00},
		{"Inf", math.Inf(1), 0x00, 0x00},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			i, f := EncodeDecimal(tt.value)
			if i != tt.wantInt || f != tt.wantFrac {
				t.Errorf("EncodeDecimal(%v) = (%02X, %02X), want (%02X, %02X)", tt.value, i, f, tt.wantInt, tt.wantFrac)
			}
		})
	}
}

func TestEncodeDecimalFractionRange(t *testing.T) {
	for v := 0.0; v < 40; v += 0.001 {
		_, f := EncodeDecimal(v)
		if f > 99 {
			t.Fatalf("EncodeDecimal(%v) fraction = %d, want 0..99", v, f)
		}
	}
}

func TestPercentToLevel(t *testing.T) {
	tests := []struct {
		percent float64
		want    int
	}{
		{0, 0},
		{100, 254},
		{50, 127},
		{25, 64},
		{-5, 0},
		{150, 254},
		{math.NaN(), 0},
		{math.Inf(1), 254},
		{math.Inf(-1), 0},
	}

	for _, tt := range tests {
		if got := PercentToLevel(tt.percent); got != tt.want {
			t.Errorf("PercentToLevel(%v) = %d, want %d", tt.percent, got, tt.want)
		}
	}
}

func TestPercentToLevelMonotonic(t *testing.T) {
	prev := PercentToLevel(0)
	for p := 0.0; p <= 100; p += 0.5 {
		got := PercentToLevel(p)
		if got < prev {
			t.Fatalf("PercentToLevel(%v) = %d, below previous %d", p, got, prev)
		}
		if got < 0 || got > MaxLevel {
			t.Fatalf("PercentToLevel(%v) = %d, outside 0..%d", p, got, MaxLevel)
		}
		prev = got
	}
}

func TestFadeHundredths(t *testing.T) {
	tests := []struct {
		fade   time.Duration
		want   uint32
		wantOK bool
	}{
		{0, 0, true},
		{500 * time.Millisecond, 50, true},
		{2 * time.Second, 200, true},
		{15 * time.Millisecond, 1, true},
		{maxFade * fadeUnit, maxFade, true},
		{(maxFade + 1) * fadeUnit, 0, false},
		{-time.Millisecond, 0, false},
	}

	for _, tt := range tests {
		got, ok := fadeHundredths(tt.fade)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("fadeHundredths(%v) = (%d, %t), want (%d, %t)", tt.fade, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestFadeV1(t *testing.T) {
	tests := []struct {
		fade time.Duration
		want byte
	}{
		{0, 0},
		{-time.Second, 0},
		{500 * time.Millisecond, 25},
		{time.Second, 50},
		{time.Minute, 0xFF},
	}

	for _, tt := range tests {
		if got := fadeV1(tt.fade); got != tt.want {
			t.Errorf("fadeV1(%v) = %d, want %d", tt.fade, got, tt.want)
		}
	}
}
