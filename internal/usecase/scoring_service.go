package usecase

import (
	"context"
	"log"
	"math"
	"sort"

	"github.com/dealscout/backend/internal/domain"
)

// Scoring defaults
const (
	defaultMinTextSimilarity     = 60.0
	defaultMinCombinedSimilarity = 55.0
	defaultTextWeight            = 0.6
	defaultImageWeight           = 0.4
	defaultMinUnitRatio          = 0.6
	defaultMinSavingsAbsolute    = 2.0
	defaultMinSavingsPercent     = 5.0
	defaultMaxDeals              = 5
)

// unitMode says how reference quantities are measured
type unitMode int

const (
	unitModeCount unitMode = iota
	unitModeWeight
)

// ScoringConfig holds the thresholds of the deal scoring pipeline.
// Zero values fall back to the defaults above.
type ScoringConfig struct {
	MinTextSimilarity     float64
	MinCombinedSimilarity float64
	TextWeight            float64
	ImageWeight           float64
	MinUnitRatio          float64
	MinSavingsAbsolute    float64
	MinSavingsPercent     float64
	MaxDeals              int
	EnableDebugLogging    bool
}

func (c ScoringConfig) withDefaults() ScoringConfig {
	if c.MinTextSimilarity <= 0 {
		c.MinTextSimilarity = defaultMinTextSimilarity
	}
	if c.MinCombinedSimilarity <= 0 {
		c.MinCombinedSimilarity = defaultMinCombinedSimilarity
	}
	if c.TextWeight <= 0 && c.ImageWeight <= 0 {
		c.TextWeight = defaultTextWeight
		c.ImageWeight = defaultImageWeight
	}
	if c.MinUnitRatio <= 0 {
		c.MinUnitRatio = defaultMinUnitRatio
	}
	if c.MinSavingsAbsolute <= 0 {
		c.MinSavingsAbsolute = defaultMinSavingsAbsolute
	}
	if c.MinSavingsPercent <= 0 {
		c.MinSavingsPercent = defaultMinSavingsPercent
	}
	if c.MaxDeals <= 0 {
		c.MaxDeals = defaultMaxDeals
	}
	return c
}

// ScoringService ranks candidate offers against a reference product
type ScoringService struct {
	hasher domain.ImageHasher
	config ScoringConfig
}

// NewScoringService creates a scoring service. A nil hasher scores every image similarity as 0.
func NewScoringService(hasher domain.ImageHasher, config ScoringConfig) *ScoringService {
	return &ScoringService{
		hasher: hasher,
		config: config.withDefaults(),
	}
}

// referenceUnits is the reference product's quantity basis, computed once per call
type referenceUnits struct {
	units float64
	mode  unitMode
}

func newReferenceUnits(title string) referenceUnits {
	size := ExtractSizeAndCount(title)
	if size.HasMass() {
		return referenceUnits{units: size.TotalMass(), mode: unitModeWeight}
	}
	return referenceUnits{units: float64(max(1, size.PackCount)), mode: unitModeCount}
}

// candidateUnits resolves the candidate quantity in the reference's mode.
// ok is false when the candidate cannot be measured the same way.
func (r referenceUnits) candidateUnits(title string) (float64, bool) {
	size := ExtractSizeAndCount(title)
	switch {
	case r.mode == unitModeWeight && size.HasMass():
		return size.TotalMass(), true
	case r.mode == unitModeCount && !size.HasMass():
		return float64(max(1, size.PackCount)), true
	}
	return 0, false
}

// ScoreOffers returns the top candidates that look like the same product and
// save money, ranked by combined similarity then absolute savings.
// An empty result is a valid outcome. The call either completes with the full
// ranked list or returns an error (invalid reference or cancelled context).
// A reference price of zero or less is an invalid reference and yields
// ErrInvalidRequest, so no savings are computed against it.
func (s *ScoringService) ScoreOffers(
	ctx context.Context,
	reference *domain.ReferenceProduct,
	candidates []domain.CandidateOffer,
) ([]domain.ScoredOffer, error) {
	if err := reference.Validate(); err != nil {
		return nil, err
	}

	referenceTitle := NormalizeTitle(reference.Title)
	refUnits := newReferenceUnits(reference.Title)

	referenceHash, hasReferenceHash := s.hash(ctx, reference.Image())

	scored := make([]domain.ScoredOffer, 0, len(candidates))
	for _, candidate := range candidates {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		textSim := TokenSetSimilarity(referenceTitle, NormalizeTitle(candidate.Title))
		if textSim < s.config.MinTextSimilarity {
			continue
		}

		var imageSim float64
		if hasReferenceHash {
			if candidateHash, ok := s.hash(ctx, candidate.Thumbnail); ok {
				imageSim = domain.HashSimilarity(referenceHash, candidateHash)
			}
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		combined := s.config.TextWeight*textSim + s.config.ImageWeight*imageSim
		if combined < s.config.MinCombinedSimilarity {
			continue
		}

		savingsAbs, savingsPct, ok := s.savings(reference.Price, refUnits, candidate)
		if !ok {
			continue
		}

		if s.config.EnableDebugLogging {
			log.Printf("[SCORE] %q | text: %.1f | image: %.1f | combined: %.1f | savings: %.2f (%.1f%%)",
				candidate.Title, textSim, imageSim, combined, savingsAbs, savingsPct)
		}

		scored = append(scored, domain.ScoredOffer{
			CandidateOffer:     candidate,
			TextSimilarity:     textSim,
			ImageSimilarity:    imageSim,
			CombinedSimilarity: combined,
			SavingsAbsolute:    savingsAbs,
			SavingsPercent:     savingsPct,
		})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].CombinedSimilarity != scored[j].CombinedSimilarity {
			return scored[i].CombinedSimilarity > scored[j].CombinedSimilarity
		}
		return scored[i].SavingsAbsolute > scored[j].SavingsAbsolute
	})

	if len(scored) > s.config.MaxDeals {
		scored = scored[:s.config.MaxDeals]
	}
	return scored, nil
}

// savings computes absolute and percent savings of a candidate against the
// reference price. Per-unit prices are compared when both sides measure the
// same way and their total quantities are within MinUnitRatio; otherwise raw
// prices are compared. Savings are rounded to cents and hundredths of a
// percent before the thresholds apply. ok is false when the candidate is not
// cheaper or the savings clear neither the absolute nor the percent bar.
func (s *ScoringService) savings(
	referencePrice float64,
	ref referenceUnits,
	candidate domain.CandidateOffer,
) (abs, pct float64, ok bool) {
	// The candidate price scaled to the reference quantity
	comparable := candidate.Price
	candidateUnits, measurable := ref.candidateUnits(candidate.Title)
	if measurable && candidateUnits != ref.units && quantityRatio(ref.units, candidateUnits) >= s.config.MinUnitRatio {
		comparable = candidate.Price * ref.units / candidateUnits
	}

	abs = roundTo(referencePrice-comparable, 100)
	if abs <= 0 {
		return 0, 0, false
	}
	if referencePrice > 0 {
		pct = roundTo((referencePrice-comparable)/referencePrice*100, 100)
	}

	if abs < s.config.MinSavingsAbsolute && pct < s.config.MinSavingsPercent {
		return 0, 0, false
	}
	return abs, pct, true
}

// roundTo rounds v to the nearest 1/scale
func roundTo(v, scale float64) float64 {
	return math.Round(v*scale) / scale
}

// hash returns the perceptual hash for an image reference, if any
func (s *ScoringService) hash(ctx context.Context, url string) (uint64, bool) {
	if s.hasher == nil || url == "" {
		return 0, false
	}
	return s.hasher.Hash(ctx, url)
}
