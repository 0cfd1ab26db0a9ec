package crypto

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strconv"
	"time"

	"github.com/allegro/bigcache/v3"
)

// CachedVerifier memoizes verification results. Reorganizations re-verify the
// same transactions many times; a hit skips 200 hashes and the path climb.
type CachedVerifier struct {
	inner Verifier
	cache *bigcache.BigCache
}

// NewCachedVerifier wraps inner with a cache bounded to maxMB megabytes.
// Entries expire after ttl.
func NewCachedVerifier(ctx context.Context, inner Verifier, maxMB int, ttl time.Duration) (*CachedVerifier, error) {
	if inner == nil {
		inner = MerkleVerifier{}
	}
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	cfg := bigcache.DefaultConfig(ttl)
	cfg.Shards = 256
	cfg.MaxEntriesInWindow = 1 << 16
	cfg.MaxEntrySize = 8
	cfg.HardMaxCacheSize = maxMB
	cfg.Verbose = false
	c, err := bigcache.New(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &CachedVerifier{inner: inner, cache: c}, nil
}

func verifyKey(message, signature, address string, index int64) string {
	h := sha256.New()
	for _, part := range []string{message, signature, address, strconv.FormatInt(index, 10)} {
		h.Write([]byte(strconv.Itoa(len(part))))
		h.Write([]byte{0})
		h.Write([]byte(part))
	}
	return hex.EncodeToString(h.Sum(nil))
}

func (c *CachedVerifier) VerifyMerkleSignature(message, signature, address string, index int64) bool {
	key := verifyKey(message, signature, address, index)
	if v, err := c.cache.Get(key); err == nil && len(v) == 1 {
		return v[0] == 1
	} else if err != nil && !errors.Is(err, bigcache.ErrEntryNotFound) {
		return c.inner.VerifyMerkleSignature(message, signature, address, index)
	}
	ok := c.inner.VerifyMerkleSignature(message, signature, address, index)
	val := []byte{0}
	if ok {
		val[0] = 1
	}
	_ = c.cache.Set(key, val)
	return ok
}

// Len reports the number of cached results.
func (c *CachedVerifier) Len() int {
	return c.cache.Len()
}

func (c *CachedVerifier) Close() error {
	return c.cache.Close()
}
