// Package cache stores encoded solver results keyed by content hashes.
//
// A [Cache] is a plain byte store with TTLs. Backends:
//
//   - [NullCache]: never stores anything (caching disabled)
//   - [FileCache]: one JSON file per entry under a directory, for the CLI
//   - [RedisCache]: a shared Redis instance, for the HTTP server
//   - [MongoCache]: a MongoDB collection with a TTL index
//
// Keys are built by a [Keyer] so that callers never assemble key strings by
// hand. [ScopedKeyer] prefixes every key to separate tenants or environments.
//
// # Usage
//
//	c, err := cache.NewFileCache(dir)
//	keyer := cache.NewDefaultKeyer()
//	key := keyer.SolutionKey(p.Hash(), problem.HashParameters(params))
//	if data, hit, err := c.Get(ctx, key); err == nil && hit {
//	    // decode data
//	}
package cache

import (
	"context"
	"time"
)

// TTLs for cached entries. Results are a pure function of their key, so the
// TTL only bounds storage growth.
const (
	TTLSolution = 7 * 24 * time.Hour
	TTLGraph    = 24 * time.Hour
)

// Cache is a byte store with per-entry expiry. Implementations must be safe
// for concurrent use.
type Cache interface {
	// Get returns the stored data and whether the key was present.
	// Expired and corrupt entries are reported as misses.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores data under key. A ttl <= 0 means no expiry.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases backend resources.
	Close() error
}

// Keyer builds cache keys.
type Keyer interface {
	// SolutionKey identifies a solved problem under given parameters.
	SolutionKey(problemHash, paramsHash string) string

	// GraphKey identifies a rendered constraint graph.
	GraphKey(problemHash string, opts GraphKeyOpts) string
}

// GraphKeyOpts are the rendering options that change a graph artifact.
type GraphKeyOpts struct {
	Format     string `json:"format"`
	ParamsHash string `json:"params_hash"`
	Detailed   bool   `json:"detailed"`
	Goals      bool   `json:"goals"`
	Clusters   bool   `json:"clusters"`
}

// DefaultKeyer builds unprefixed keys.
type DefaultKeyer struct{}

// NewDefaultKeyer returns a DefaultKeyer.
func NewDefaultKeyer() Keyer { return DefaultKeyer{} }

// SolutionKey returns "solution:<sha256>".
func (DefaultKeyer) SolutionKey(problemHash, paramsHash string) string {
	return hashKey("solution", problemHash, paramsHash)
}

// GraphKey returns "graph:<sha256>".
func (DefaultKeyer) GraphKey(problemHash string, opts GraphKeyOpts) string {
	return hashKey("graph", problemHash, opts)
}
