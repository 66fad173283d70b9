// Package dirlist serves directory listings from a TTL cache that is
// invalidated by filesystem notifications.
package dirlist

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/codefionn/dateischnell/internal/logger"
	"github.com/codefionn/dateischnell/internal/pathguard"
)

// Entry is one row of a directory listing.
type Entry struct {
	Name    string    `json:"name"`
	Rel     string    `json:"path"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"mod_time"`
	IsDir   bool      `json:"is_dir"`
}

type cacheEntry struct {
	entries   []Entry
	timestamp time.Time
}

// Lister lists directories under a path guard, caching results per
// absolute directory.
type Lister struct {
	guard      *pathguard.Guard
	cache      map[string]*cacheEntry
	cacheMu    sync.RWMutex
	cacheTTL   time.Duration
	maxEntries int
	watcher    *fsnotify.Watcher
	stopWatch  chan struct{}
	closeOnce  sync.Once
}

// New creates a Lister. A failed watcher is not fatal; the cache then
// relies on the TTL alone.
func New(guard *pathguard.Guard, cacheTTL time.Duration, maxEntries int) *Lister {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		logger.Global().Warn("failed to create file watcher: %v", err)
	}

	l := &Lister{
		guard:      guard,
		cache:      make(map[string]*cacheEntry),
		cacheTTL:   cacheTTL,
		maxEntries: maxEntries,
		watcher:    watcher,
		stopWatch:  make(chan struct{}),
	}

	if watcher != nil {
		go l.watchDirs()
	}

	return l
}

// Close stops the filesystem watcher.
func (l *Lister) Close() error {
	var err error
	l.closeOnce.Do(func() {
		close(l.stopWatch)
		if l.watcher != nil {
			err = l.watcher.Close()
		}
	})
	return err
}

// watchDirs invalidates cached listings when their contents change.
func (l *Lister) watchDirs() {
	for {
		select {
		case <-l.stopWatch:
			return
		case event, ok := <-l.watcher.Events:
			if !ok {
				return
			}
			dir := filepath.Dir(event.Name)
			l.cacheMu.Lock()
			delete(l.cache, dir)
			delete(l.cache, event.Name)
			l.cacheMu.Unlock()
		case err, ok := <-l.watcher.Errors:
			if !ok {
				return
			}
			logger.Global().Error("filesystem watcher error: %v", err)
		}
	}
}

// Invalidate removes a root-relative directory from the cache. Used by
// write operations that change a listing before the watcher catches up.
func (l *Lister) Invalidate(rel string) {
	ref, err := l.guard.Resolve(rel)
	if err != nil {
		return
	}
	l.cacheMu.Lock()
	delete(l.cache, ref.Path)
	l.cacheMu.Unlock()
}

// ClearCache drops all cached listings.
func (l *Lister) ClearCache() {
	l.cacheMu.Lock()
	l.cache = make(map[string]*cacheEntry)
	l.cacheMu.Unlock()
}

// List returns the entries of the root-relative directory rel, sorted
// with directories first, then case-insensitively by name.
func (l *Lister) List(ctx context.Context, rel string) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ref, err := l.guard.Resolve(rel)
	if err != nil {
		return nil, err
	}

	l.cacheMu.RLock()
	if entry, ok := l.cache[ref.Path]; ok {
		if time.Since(entry.timestamp) < l.cacheTTL {
			l.cacheMu.RUnlock()
			return entry.entries, nil
		}
	}
	l.cacheMu.RUnlock()

	entries, err := os.ReadDir(ref.Path)
	if err != nil {
		return nil, err
	}

	result := make([]Entry, 0, len(entries))
	for _, entry := range entries {
		info, err := entry.Info()
		if err != nil {
			continue
		}
		result = append(result, Entry{
			Name:    entry.Name(),
			Rel:     filepath.ToSlash(filepath.Join(ref.Rel, entry.Name())),
			Size:    info.Size(),
			ModTime: info.ModTime(),
			IsDir:   entry.IsDir(),
		})
	}
	sortEntries(result)

	l.cacheMu.Lock()
	if len(l.cache) >= l.maxEntries {
		var oldestKey string
		var oldestTime time.Time
		for k, v := range l.cache {
			if oldestKey == "" || v.timestamp.Before(oldestTime) {
				oldestKey = k
				oldestTime = v.timestamp
			}
		}
		delete(l.cache, oldestKey)
		// Drop the watch with the entry, or the watch set grows with
		// every directory ever listed.
		if l.watcher != nil && oldestKey != ref.Path {
			_ = l.watcher.Remove(oldestKey)
		}
	}
	l.cache[ref.Path] = &cacheEntry{
		entries:   result,
		timestamp: time.Now(),
	}
	l.cacheMu.Unlock()

	if l.watcher != nil {
		if err := l.watcher.Add(ref.Path); err != nil {
			logger.Global().Warn("failed to add watcher for %s: %v", ref.Path, err)
		}
	}

	return result, nil
}

func sortEntries(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].IsDir != entries[j].IsDir {
			return entries[i].IsDir
		}
		return lowerLess(entries[i].Name, entries[j].Name)
	})
}

func lowerLess(a, b string) bool {
	la, lb := len(a), len(b)
	for i := 0; i < la && i < lb; i++ {
		ca, cb := lower(a[i]), lower(b[i])
		if ca != cb {
			return ca < cb
		}
	}
	return la < lb
}

func lower(c byte) byte {
	if 'A' <= c && c <= 'Z' {
		return c + 'a' - 'A'
	}
	return c
}
