package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/text/unicode/norm"
)

var (
	// ErrEmptyText is returned for empty or whitespace-only input. No backend
	// call is made.
	ErrEmptyText = errors.New("text to embed is empty")

	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)

// Embedder turns text into a vector.
type Embedder interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float64, error)
}

// Factory creates the backend on first use.
type Factory func(ctx context.Context) (Embedder, error)

type Options struct {
	// Model is part of the cache key.
	Model string
	// Dimension, when positive, is enforced on every vector.
	Dimension int
	// CacheSize <= 0 disables caching.
	CacheSize int
}

// Provider owns one lazily created embedding backend and an LRU cache of
// recent vectors. It is safe for concurrent use.
type Provider struct {
	factory   Factory
	model     string
	dimension int

	once    sync.Once
	backend Embedder
	initErr error

	cache  *lru.Cache[string, []float64]
	logger *log.Logger
}

func NewProvider(factory Factory, opts Options) (*Provider, error) {
	if factory == nil {
		return nil, fmt.Errorf("embedding factory cannot be nil")
	}

	p := &Provider{
		factory:   factory,
		model:     opts.Model,
		dimension: opts.Dimension,
		logger:    log.New(log.Writer(), "[Embedding] ", log.LstdFlags),
	}

	if opts.CacheSize > 0 {
		cache, err := lru.New[string, []float64](opts.CacheSize)
		if err != nil {
			return nil, fmt.Errorf("failed to create embedding cache: %w", err)
		}
		p.cache = cache
	}

	return p, nil
}

// NewStaticProvider wraps an existing backend. Used by tests and by callers
// that already hold a client.
func NewStaticProvider(backend Embedder, opts Options) (*Provider, error) {
	if backend == nil {
		return nil, fmt.Errorf("embedder cannot be nil")
	}
	return NewProvider(func(context.Context) (Embedder, error) { return backend, nil }, opts)
}

func (p *Provider) SetLogger(logger *log.Logger) {
	if logger != nil {
		p.logger = logger
	}
}

func (p *Provider) Model() string {
	return p.model
}

// Dimension returns the enforced dimension, or 0 when unchecked.
func (p *Provider) Dimension() int {
	return p.dimension
}

// Embed returns the vector for text. The returned slice is owned by the
// caller.
func (p *Provider) Embed(ctx context.Context, text string) ([]float64, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyText
	}
	text = norm.NFC.String(text)

	key := p.cacheKey(text)
	if p.cache != nil {
		if cached, ok := p.cache.Get(key); ok {
			return copyVector(cached), nil
		}
	}

	backend, err := p.ensureBackend(ctx)
	if err != nil {
		return nil, err
	}

	vector, err := backend.GenerateEmbedding(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("failed to generate embedding: %w", err)
	}
	if len(vector) == 0 {
		return nil, fmt.Errorf("failed to generate embedding: backend returned an empty vector")
	}
	if p.dimension > 0 && len(vector) != p.dimension {
		return nil, fmt.Errorf("%w: expected %d, got %d", ErrDimensionMismatch, p.dimension, len(vector))
	}

	if p.cache != nil {
		p.cache.Add(key, copyVector(vector))
	}
	return vector, nil
}

func (p *Provider) ensureBackend(ctx context.Context) (Embedder, error) {
	p.once.Do(func() {
		// a cancelled first request must not poison the provider for later ones
		backend, err := p.factory(context.WithoutCancel(ctx))
		if err != nil {
			p.initErr = fmt.Errorf("failed to initialize embedding backend: %w", err)
			p.logger.Printf("%v", p.initErr)
			return
		}
		if backend == nil {
			p.initErr = fmt.Errorf("failed to initialize embedding backend: factory returned nil")
			return
		}
		p.backend = backend
		p.logger.Printf("embedding backend ready (model=%s, dimension=%d)", p.model, p.dimension)
	})
	return p.backend, p.initErr
}

func (p *Provider) cacheKey(text string) string {
	sum := sha256.Sum256([]byte(p.model + "\x00" + text))
	return hex.EncodeToString(sum[:])
}

func copyVector(v []float64) []float64 {
	out := make([]float64, len(v))
	copy(out, v)
	return out
}
