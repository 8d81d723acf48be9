package usecase

import (
	"math"
	"testing"
)

func TestIndelRatio(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want float64
	}{
		{"both empty", "", "", 100},
		{"one empty", "abc", "", 0},
		{"identical", "widget", "widget", 100},
		{"disjoint", "abc", "xyz", 0},
		{"kitten sitting", "kitten", "sitting", 800.0 / 13.0},
		{"prefix", "widget", "widget 2", 1200.0 / 14.0},
		{"unicode counted in runes", "café", "cafe", 75},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := IndelRatio(tt.a, tt.b)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("IndelRatio(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestTokenSetSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want float64
	}{
		{"identical", "brand x widget", "brand x widget", 100},
		{"reordered", "brand x widget", "widget brand x", 100},
		{"duplicates ignored", "widget widget blue", "blue widget", 100},
		{"subset scores 100", "widget", "brand widget blue", 100},
		{"empty left", "", "widget", 0},
		{"empty right", "widget", "", 0},
		{"disjoint", "abc", "xyz", 0},
		{"glued unit", "brand x widget 16", "brand x widget 16oz", 3400.0 / 36.0},
		{"different pack number", "widget 2", "widget 6", 87.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TokenSetSimilarity(tt.a, tt.b)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("TokenSetSimilarity(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestTokenSetSimilarity_SymmetricAndBounded(t *testing.T) {
	pairs := [][2]string{
		{"almond butter crunchy", "crunchy peanut butter"},
		{"coffee beans dark roast 2lb", "dark roast coffee 32oz"},
		{"a", "b"},
		{"kitchen towels 6 rolls", "paper towels kitchen 12 rolls"},
		{"", ""},
	}

	for _, p := range pairs {
		ab := TokenSetSimilarity(p[0], p[1])
		ba := TokenSetSimilarity(p[1], p[0])
		if ab != ba {
			t.Errorf("not symmetric for %q / %q: %v vs %v", p[0], p[1], ab, ba)
		}
		if ab < 0 || ab > 100 {
			t.Errorf("out of range for %q / %q: %v", p[0], p[1], ab)
		}
	}
}
