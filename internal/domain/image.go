package domain

import "math/bits"

// HashBits is the length of a perceptual hash
const HashBits = 64

// HashSimilarity converts the Hamming distance of two 64-bit perceptual hashes
// into a 0-100 similarity.
func HashSimilarity(a, b uint64) float64 {
	distance := bits.OnesCount64(a ^ b)
	sim := 1 - float64(distance)/HashBits
	return max(0, min(1, sim)) * 100
}
