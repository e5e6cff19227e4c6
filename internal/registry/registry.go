// Package registry implements component C: a filename -> TextureFile
// map bounded by a maximum open-file count, swept with a CLOCK
// (second-chance) policy (spec §3, §4.C).
package registry

import (
	"sync"
	"sync/atomic"

	"texturesys/internal/texturefile"
)

const defaultMaxOpenFiles = 100

// FileRegistry maps filename to TextureFile and enforces an upper bound
// on concurrently open underlying readers by closing least-recently-used
// entries. Entries themselves, once created, live for the lifetime of
// the registry -- only their open reader is ever reclaimed.
type FileRegistry struct {
	searchPath string

	mu     sync.Mutex
	files  map[string]*texturefile.TextureFile
	order  []string // insertion order, doubles as the CLOCK sweep ring
	cursor int

	openCount    atomic.Int64
	maxOpenFiles atomic.Int64
}

// New creates a registry that resolves filenames against searchPath
// (colon- or semicolon-separated directories, passed through to the
// image reader's Create per spec §6).
func New(searchPath string) *FileRegistry {
	r := &FileRegistry{
		searchPath: searchPath,
		files:      make(map[string]*texturefile.TextureFile),
	}
	r.maxOpenFiles.Store(defaultMaxOpenFiles)
	return r
}

// MaxOpenFiles sets the open-file budget (spec §4.C configuration).
func (r *FileRegistry) MaxOpenFiles(n int) {
	if n < 1 {
		n = 1
	}
	r.maxOpenFiles.Store(int64(n))
}

// IncrOpenFiles and DecrOpenFiles implement texturefile.OpenCounter.
// They are lock-free so that TextureFile can report transitions whether
// or not the caller currently holds the registry lock (ReadTile calls
// Open() outside that lock; FindOrOpen's construction happens inside it).
func (r *FileRegistry) IncrOpenFiles() { r.openCount.Add(1) }
func (r *FileRegistry) DecrOpenFiles() { r.openCount.Add(-1) }

// FindOrOpen looks up filename under the registry lock; on a hit it
// marks the entry used and returns it. On a miss it first makes room
// under the open-file budget, then constructs a new TextureFile (which
// attempts to open itself) and inserts it -- even if broken, since
// callers must check Broken() themselves (spec §4.C, §7).
func (r *FileRegistry) FindOrOpen(filename string) *texturefile.TextureFile {
	r.mu.Lock()
	defer r.mu.Unlock()

	if tf, ok := r.files[filename]; ok {
		tf.Use()
		return tf
	}

	r.checkMaxFilesLocked()

	tf := texturefile.New(filename, r.searchPath, r)
	r.files[filename] = tf
	r.order = append(r.order, filename)
	tf.Use()
	return tf
}

// checkMaxFilesLocked advances the sweep cursor, releasing entries
// second-chance style, while the open-file count is at or above budget.
// Called with r.mu held.
func (r *FileRegistry) checkMaxFilesLocked() {
	max := r.maxOpenFiles.Load()
	if len(r.order) == 0 {
		return
	}
	// Bound the sweep to two full laps of the ring (one to clear used
	// bits, one to release) so it never spins when nothing can be closed.
	steps := 0
	limit := len(r.order) * 2
	for r.openCount.Load() >= max && steps < limit {
		if r.cursor >= len(r.order) {
			r.cursor = 0
		}
		name := r.order[r.cursor]
		r.cursor++
		steps++
		if tf, ok := r.files[name]; ok {
			tf.Release()
		}
	}
}

// Lookup returns the already-registered TextureFile for filename
// without creating or opening one, for diagnostics.
func (r *FileRegistry) Lookup(filename string) (*texturefile.TextureFile, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	tf, ok := r.files[filename]
	return tf, ok
}

// OpenCount returns the current number of TextureFiles in the Open state.
func (r *FileRegistry) OpenCount() int { return int(r.openCount.Load()) }

// Len returns the number of distinct filenames ever referenced, open or not.
func (r *FileRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.files)
}
