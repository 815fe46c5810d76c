package grammar

import (
	"bytes"
	"encoding/hex"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	gocache "github.com/patrickmn/go-cache"

	"github.com/dhamidi/graft/syntax"
)

const (
	DefaultCacheExpiration      = 30 * time.Minute
	DefaultCacheCleanupInterval = time.Hour
)

// Cache keeps languages compiled from EBNF source so that repeated loads
// of the same grammar skip table construction.
type Cache struct {
	cache *gocache.Cache
}

func NewCache(expiration, cleanupInterval time.Duration) *Cache {
	return &Cache{cache: gocache.New(expiration, cleanupInterval)}
}

// CacheKey hashes the grammar source together with the options that
// affect compilation.
func CacheKey(source []byte, opts EBNFOptions) string {
	h := xxhash.New()
	h.Write(source)
	h.WriteString("\x00start=" + opts.Start)
	h.WriteString("\x00extras=" + strings.Join(opts.Extras, ","))
	h.WriteString("\x00skip=" + strings.Join(opts.Skip, ","))
	return hex.EncodeToString(h.Sum(nil))
}

// CompileEBNF returns the cached language for source or compiles and
// caches it.
func (c *Cache) CompileEBNF(name string, source []byte, opts EBNFOptions) (*syntax.Language, error) {
	key := CacheKey(source, opts)
	if v, ok := c.cache.Get(key); ok {
		if lang, ok := v.(*syntax.Language); ok {
			return lang, nil
		}
	}
	g, err := FromEBNF(name, bytes.NewReader(source), opts)
	if err != nil {
		return nil, err
	}
	lang, err := Compile(g, WithStart(opts.Start))
	if err != nil {
		return nil, err
	}
	c.cache.SetDefault(key, lang)
	return lang, nil
}

func (c *Cache) Len() int {
	return c.cache.ItemCount()
}

func (c *Cache) Flush() {
	c.cache.Flush()
}
