package imagehash

import (
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/corona10/goimagehash"
	_ "golang.org/x/image/webp"

	"github.com/dealscout/backend/internal/domain"
)

const (
	defaultTimeout  = 10 * time.Second
	defaultMaxBytes = 10 << 20
)

// Config holds configuration for the image comparator
type Config struct {
	Timeout  time.Duration
	MaxBytes int64
	Debug    bool
}

// Comparator downloads images and compares them by perceptual hash.
// It never returns errors; anything that cannot be fetched or decoded scores 0.
type Comparator struct {
	httpClient *http.Client
	maxBytes   int64
	debug      bool
}

// NewComparator creates a new image comparator
func NewComparator(cfg Config) *Comparator {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = defaultMaxBytes
	}
	return &Comparator{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		maxBytes:   cfg.MaxBytes,
		debug:      cfg.Debug,
	}
}

// Similarity returns the 0-100 perceptual similarity of two image URLs
func (c *Comparator) Similarity(ctx context.Context, urlA, urlB string) float64 {
	if urlA == "" || urlB == "" {
		return 0
	}
	a, ok := c.Hash(ctx, urlA)
	if !ok {
		return 0
	}
	b, ok := c.Hash(ctx, urlB)
	if !ok {
		return 0
	}
	return domain.HashSimilarity(a, b)
}

// Hash downloads url and returns its 64-bit perceptual hash
func (c *Comparator) Hash(ctx context.Context, url string) (uint64, bool) {
	if url == "" {
		return 0, false
	}

	img, err := c.download(ctx, url)
	if err != nil {
		log.Printf("[IMAGE] Skipping %s: %v", url, err)
		return 0, false
	}

	hash, err := goimagehash.PerceptionHash(img)
	if err != nil {
		log.Printf("[IMAGE] Hash failed for %s: %v", url, err)
		return 0, false
	}

	if c.debug {
		log.Printf("[IMAGE] %s -> %016x", url, hash.GetHash())
	}
	return hash.GetHash(), true
}

func (c *Comparator) download(ctx context.Context, url string) (image.Image, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "DealScout/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	img, format, err := image.Decode(io.LimitReader(resp.Body, c.maxBytes))
	if err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if c.debug {
		log.Printf("[IMAGE] Decoded %s image from %s", format, url)
	}
	return img, nil
}
