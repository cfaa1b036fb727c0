package llm

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"

	"github.com/avaluev/conductor/pkg/models"
)

// cacheReadDiscount is the fraction of the input price saved when tokens
// are served from the backend's prompt cache (cache reads bill at ~10% of
// the regular input rate).
const cacheReadDiscount = 0.90

// PromptCache tracks which system-instruction signatures have been sent
// before, so repeat calls can mark the segment cacheable, and accounts the
// realized savings.
type PromptCache struct {
	mu      sync.Mutex
	seen    map[string]struct{}
	hits    int
	misses  int
	savings float64
}

// NewPromptCache creates an empty PromptCache.
func NewPromptCache() *PromptCache {
	return &PromptCache{seen: make(map[string]struct{})}
}

// MarkCacheable records the system instruction's signature and reports
// whether an identical instruction was seen before. The first call for a
// signature is a miss (the backend writes the cache); subsequent calls are
// hits and should set Request.CacheSystem.
func (p *PromptCache) MarkCacheable(system string) bool {
	sig := signature(system)

	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.seen[sig]; ok {
		p.hits++
		return true
	}
	p.seen[sig] = struct{}{}
	p.misses++
	return false
}

// Savings converts a call's cache-read tokens into the realized USD saving
// for the given tier, returned as a negative delta suitable for
// UsageRecord.Savings. Returns zero when nothing was read from cache.
func (p *PromptCache) Savings(usage Usage, tier models.ModelTier) float64 {
	if usage.CacheReadTokens <= 0 {
		return 0
	}
	saved := float64(usage.CacheReadTokens) / 1_000_000 * tier.InputPerMillion * cacheReadDiscount

	p.mu.Lock()
	p.savings += saved
	p.mu.Unlock()

	return -saved
}

// Stats reports cache performance counters.
func (p *PromptCache) Stats() (hits, misses int, savingsUSD float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.hits, p.misses, p.savings
}

func signature(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
