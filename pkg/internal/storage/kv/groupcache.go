package kv

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/golang/groupcache"

	"github.com/yeisme/sharevault/pkg/configs"
)

// GroupcacheKV fronts a local map with a groupcache group. groupcache never
// invalidates, so every write bumps a per-key version and lookups go through
// "key@version"; a stale version simply stops being requested.
type GroupcacheKV struct {
	group *groupcache.Group
	peers *groupcache.HTTPPool

	mu   sync.RWMutex
	data map[string]gcEntry
}

type gcEntry struct {
	value   []byte
	version uint64
}

var gcVersion atomic.Uint64

// NewGroupcacheKV creates the group. groupcache names are process-global, so
// the configured name must be unique per process.
func NewGroupcacheKV(_ context.Context, cfg *configs.KVConfig) (KVStore, error) {
	gcCfg := cfg.Groupcache
	if gcCfg.Name == "" {
		return nil, fmt.Errorf("groupcache name is required")
	}

	kv := &GroupcacheKV{data: make(map[string]gcEntry)}

	if existing := groupcache.GetGroup(gcCfg.Name); existing != nil {
		return nil, fmt.Errorf("groupcache group %q already exists", gcCfg.Name)
	}

	kv.group = groupcache.NewGroup(gcCfg.Name, gcCfg.CacheBytes, groupcache.GetterFunc(kv.load))

	if len(gcCfg.Peers) > 0 {
		kv.peers = groupcache.NewHTTPPoolOpts(gcCfg.Self, &groupcache.HTTPPoolOptions{})
		kv.peers.Set(gcCfg.Peers...)
	}

	return kv, nil
}

func (g *GroupcacheKV) load(_ context.Context, versioned string, dest groupcache.Sink) error {
	idx := strings.LastIndexByte(versioned, '@')
	if idx < 0 {
		return ErrKeyNotFound
	}

	key := versioned[:idx]

	version, err := strconv.ParseUint(versioned[idx+1:], 10, 64)
	if err != nil {
		return ErrKeyNotFound
	}

	g.mu.RLock()
	entry, ok := g.data[key]
	g.mu.RUnlock()

	if !ok || entry.version != version {
		return ErrKeyNotFound
	}

	return dest.SetBytes(entry.value)
}

func (g *GroupcacheKV) Get(ctx context.Context, key string) ([]byte, error) {
	g.mu.RLock()
	entry, ok := g.data[key]
	g.mu.RUnlock()

	if !ok {
		return nil, ErrKeyNotFound
	}

	var raw []byte
	if err := g.group.Get(ctx, key+"@"+strconv.FormatUint(entry.version, 10), groupcache.AllocatingByteSliceSink(&raw)); err != nil {
		return nil, fmt.Errorf("failed to get key: %w", err)
	}

	val, live, err := openTTL(raw, time.Now())
	if err != nil {
		return nil, err
	}

	if !live {
		_ = g.Delete(ctx, key)
		return nil, ErrKeyNotFound
	}

	return val, nil
}

func (g *GroupcacheKV) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	encoded, err := sealTTL(value, ttl, time.Now())
	if err != nil {
		return err
	}

	data := make([]byte, len(encoded))
	copy(data, encoded)

	g.mu.Lock()
	g.data[key] = gcEntry{value: data, version: gcVersion.Add(1)}
	g.mu.Unlock()

	return nil
}

func (g *GroupcacheKV) Delete(_ context.Context, key string) error {
	g.mu.Lock()
	delete(g.data, key)
	g.mu.Unlock()

	return nil
}

func (g *GroupcacheKV) Exists(ctx context.Context, key string) (bool, error) {
	if _, err := g.Get(ctx, key); err != nil {
		if err == ErrKeyNotFound {
			return false, nil
		}

		return false, err
	}

	return true, nil
}

func (g *GroupcacheKV) Keys(_ context.Context, pattern string) ([]string, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	keys := make([]string, 0, len(g.data))
	for key := range g.data {
		if matchKey(pattern, key) {
			keys = append(keys, key)
		}
	}

	return keys, nil
}

func (g *GroupcacheKV) Close() error {
	return nil
}

func init() {
	RegisterKVFactory(configs.KVTypeGroupcache, NewGroupcacheKV)
}
