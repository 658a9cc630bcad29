package insights

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"innersight/internal/core"
	"innersight/internal/provider"
)

type cachedResult struct {
	Text     string
	Analysis core.AnalysisResult
}

// resultCache keeps model-backed results only. A nil cache is a no-op.
type resultCache struct {
	lru *expirable.LRU[string, cachedResult]
}

func newResultCache(size int, ttl time.Duration) *resultCache {
	if size <= 0 {
		return nil
	}
	return &resultCache{lru: expirable.NewLRU[string, cachedResult](size, nil, ttl)}
}

func (c *resultCache) get(key string) (cachedResult, bool) {
	if c == nil {
		return cachedResult{}, false
	}
	v, ok := c.lru.Get(key)
	if !ok {
		return cachedResult{}, false
	}
	v.Analysis = v.Analysis.Clone()
	return v, true
}

func (c *resultCache) put(key string, v cachedResult) {
	if c == nil {
		return
	}
	v.Analysis = v.Analysis.Clone()
	c.lru.Add(key, v)
}

func (c *resultCache) size() int {
	if c == nil {
		return 0
	}
	return c.lru.Len()
}

func cacheKey(kind core.TaskKind, cfg provider.Config, prompt string) string {
	h := sha256.New()
	h.Write([]byte(kind))
	h.Write([]byte{0})
	h.Write([]byte(cfg.ID))
	h.Write([]byte{0})
	h.Write([]byte(cfg.Model))
	h.Write([]byte{0})
	h.Write([]byte(prompt))
	return hex.EncodeToString(h.Sum(nil))
}
