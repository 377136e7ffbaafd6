package smt

import (
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/simplelru"
	"github.com/spf13/afero"
	"github.com/yehan2002/errors"
)

// DefaultCacheSize the number of atlas headers kept by a cache created with size 0.
const DefaultCacheSize = 20

// key identifies a version of an atlas on disk.
// An atlas that was modified after it was cached gets a new key.
type key struct {
	path    string
	size    int64
	modTime time.Time
}

// Cache caches the headers of opened tile atlases.
// Cache is safe for concurrent use.
type Cache struct {
	fs  afero.Fs
	lru *simplelru.LRU

	mux sync.Mutex
}

// NewCache creates a cache that holds at most size atlas headers.
func NewCache(fs afero.Fs, size int) (*Cache, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	lru, err := simplelru.NewLRU(size, nil)
	if err != nil {
		return nil, errors.Wrap("smt: unable to create cache", err)
	}
	return &Cache{fs: fs, lru: lru}, nil
}

// Open opens the atlas at path, returning a cached copy if the file has not changed.
// Failed opens are never cached.
func (c *Cache) Open(path string) (*File, error) {
	info, err := c.fs.Stat(path)
	if err != nil {
		return nil, errors.Wrap("smt: unable to open "+path, err)
	}
	k := key{path: path, size: info.Size(), modTime: info.ModTime()}

	c.mux.Lock()
	defer c.mux.Unlock()

	if v, ok := c.lru.Get(k); ok {
		header := v.(Header)
		return &File{fs: c.fs, path: path, header: header}, nil
	}

	atlas, err := Open(c.fs, path)
	if err != nil {
		return nil, err
	}
	c.lru.Add(k, atlas.header)
	return atlas, nil
}

// Len the number of cached headers.
func (c *Cache) Len() int {
	c.mux.Lock()
	defer c.mux.Unlock()
	return c.lru.Len()
}
