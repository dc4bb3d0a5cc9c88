package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	"github.com/creastat/retrieval/cache"
	"go.uber.org/zap"
)

// CachedProvider wraps a Provider with a vector cache keyed by model and text.
// Cache failures are logged and treated as misses.
type CachedProvider struct {
	next   Provider
	store  cache.Store
	model  string
	logger *zap.Logger
}

// NewCachedProvider creates a CachedProvider. model namespaces cache keys so
// switching models never serves stale vectors.
func NewCachedProvider(next Provider, store cache.Store, model string, logger *zap.Logger) *CachedProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedProvider{
		next:   next,
		store:  store,
		model:  model,
		logger: logger,
	}
}

// Embed implements Provider.
func (p *CachedProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	key := p.key(text)
	if v := p.lookup(ctx, key); v != nil {
		return v, nil
	}

	v, err := p.next.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	p.save(ctx, key, v)
	return v, nil
}

// EmbedBatch implements Provider. Only misses reach the wrapped provider and
// results keep input order.
func (p *CachedProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	keys := make([]string, len(texts))
	var missIdx []int
	var missTexts []string

	for i, text := range texts {
		keys[i] = p.key(text)
		if v := p.lookup(ctx, keys[i]); v != nil {
			out[i] = v
			continue
		}
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, text)
	}

	if len(missTexts) == 0 {
		return out, nil
	}

	vectors, err := p.next.EmbedBatch(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	for j, i := range missIdx {
		out[i] = vectors[j]
		p.save(ctx, keys[i], vectors[j])
	}

	p.logger.Debug("embedding cache batch",
		zap.Int("hits", len(texts)-len(missTexts)),
		zap.Int("misses", len(missTexts)))
	return out, nil
}

func (p *CachedProvider) key(text string) string {
	sum := sha256.Sum256([]byte(p.model + "\x00" + text))
	return hex.EncodeToString(sum[:])
}

func (p *CachedProvider) lookup(ctx context.Context, key string) []float32 {
	blob, err := p.store.Get(ctx, key)
	if err != nil {
		p.logger.Warn("embedding cache get failed", zap.String("key", key), zap.Error(err))
		return nil
	}
	if blob == nil {
		return nil
	}
	v, err := DecodeVector(blob)
	if err != nil || len(v) == 0 {
		p.logger.Warn("discarding corrupt cached embedding", zap.String("key", key), zap.Error(err))
		return nil
	}
	return v
}

func (p *CachedProvider) save(ctx context.Context, key string, v []float32) {
	if err := p.store.Set(ctx, key, EncodeVector(v)); err != nil {
		p.logger.Warn("embedding cache set failed", zap.String("key", key), zap.Error(err))
	}
}

// Compile-time check that CachedProvider implements Provider.
var _ Provider = (*CachedProvider)(nil)
