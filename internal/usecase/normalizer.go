package usecase

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/dealscout/backend/internal/domain"
)

// DefaultSizeCompatibility is the minimum total-quantity ratio for two titles to count as the same size
const DefaultSizeCompatibility = 0.85

// Unit conversions to grams; milliliters are treated as grams
const (
	gramsPerPound = 453.59237
	gramsPerOunce = 28.349523125
	gramsPerKilo  = 1000.0
	gramsPerLiter = 1000.0
)

// Package-level compiled regex patterns for performance
var (
	nonAlphanumericRunRegex = regexp.MustCompile(`[^a-z0-9]+`)

	// Matches quantities like "16 oz", "16.9 fl oz", "2lb", "500 ml", "1.5 liters"
	massPatternRegex = regexp.MustCompile(
		`(?i)(\d+(?:\.\d+)?)\s*(?:fl\.?\s*(ounces|ounce|oz)|(pounds|pound|lbs|lb|ounces|ounce|oz|kg|grams|gram|g|ml|liters|liter|l))\b`,
	)

	// Matches "pack of 6", "12 ct", "3-pack", "3pack"
	packOfRegex   = regexp.MustCompile(`(?i)pack\s*of\s*(\d+)`)
	countRegex    = regexp.MustCompile(`(?i)(\d+)\s*ct\b`)
	dashPackRegex = regexp.MustCompile(`(?i)\b(\d+)-?pack\b`)
)

// titleStopWords are filler words and bare unit words dropped from normalized titles
var titleStopWords = map[string]bool{
	"with": true, "and": true, "the": true, "for": true, "in": true,
	"of": true, "to": true, "by": true, "on": true,
	"oz": true, "fl": true, "ct": true, "pack": true, "count": true,
	"lb": true, "lbs": true, "ounce": true, "ounces": true,
}

// NormalizeTitle lowercases a title, collapses every run of non-alphanumerics
// into a single space and drops stop words.
func NormalizeTitle(title string) string {
	if title == "" {
		return ""
	}

	cleaned := nonAlphanumericRunRegex.ReplaceAllString(strings.ToLower(title), " ")

	var kept []string
	for _, token := range strings.Fields(cleaned) {
		if titleStopWords[token] {
			continue
		}
		kept = append(kept, token)
	}
	return strings.Join(kept, " ")
}

// ExtractSizeAndCount scans a title for mass/volume quantities and pack counts.
// The largest converted mass wins; the pack count is the largest pack number seen, at least 1.
func ExtractSizeAndCount(title string) domain.SizeInfo {
	info := domain.SizeInfo{PackCount: 1}
	if title == "" {
		return info
	}

	var best float64
	for _, m := range massPatternRegex.FindAllStringSubmatch(title, -1) {
		qty, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			continue
		}
		unit := m[3]
		if unit == "" {
			unit = m[2]
		}
		grams, ok := toGrams(qty, unit)
		if !ok || grams <= 0 {
			continue
		}
		if grams > best {
			best = grams
		}
	}
	if best > 0 {
		info.NormalizedMass = &best
	}

	for _, re := range []*regexp.Regexp{packOfRegex, countRegex, dashPackRegex} {
		for _, m := range re.FindAllStringSubmatch(title, -1) {
			n, err := strconv.Atoi(m[1])
			if err != nil {
				continue
			}
			info.PackCount = max(info.PackCount, n)
		}
	}

	return info
}

// toGrams converts a quantity in the given unit into grams
func toGrams(value float64, unit string) (float64, bool) {
	switch strings.ToLower(unit) {
	case "lb", "lbs", "pound", "pounds":
		return value * gramsPerPound, true
	case "oz", "ounce", "ounces":
		return value * gramsPerOunce, true
	case "kg":
		return value * gramsPerKilo, true
	case "g", "gram", "grams", "ml":
		return value, true
	case "l", "liter", "liters":
		return value * gramsPerLiter, true
	}
	return 0, false
}

// SizesCompatible reports whether two titles describe roughly the same total quantity.
// Missing size information on either side never blocks a match.
func SizesCompatible(titleA, titleB string, threshold float64) bool {
	a := ExtractSizeAndCount(titleA)
	b := ExtractSizeAndCount(titleB)
	if !a.HasMass() || !b.HasMass() {
		return true
	}
	return quantityRatio(a.TotalMass(), b.TotalMass()) >= threshold
}

// quantityRatio returns min/max of two positive quantities
func quantityRatio(a, b float64) float64 {
	hi := max(a, b)
	if hi <= 0 {
		return 0
	}
	return min(a, b) / hi
}
