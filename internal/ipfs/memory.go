package ipfs

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/zeebo/blake3"
)

// DefaultChunkSize is the progress granularity of MemoryStore.
const DefaultChunkSize = 256 * 1024

const memoryAddressPrefix = "b3"

// MemoryStore is an in-process content-addressed store. Addresses are blake3
// digests over the (name, bytes) entries sorted by name, so identical file sets
// resolve to the same directory address in any input order.
type MemoryStore struct {
	mu          sync.RWMutex
	objects     map[string][]byte
	directories map[string]map[string]string
	pins        map[string]struct{}
	chunkSize   int
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		objects:     map[string][]byte{},
		directories: map[string]map[string]string{},
		pins:        map[string]struct{}{},
		chunkSize:   DefaultChunkSize,
	}
}

// SetChunkSize changes the progress granularity. Non-positive values are ignored.
func (s *MemoryStore) SetChunkSize(size int) {
	if size > 0 {
		s.chunkSize = size
	}
}

// AddDirectory implements Store.
func (s *MemoryStore) AddDirectory(ctx context.Context, files []File, onProgress ProgressFunc) (string, error) {
	if len(files) == 0 {
		return "", errors.New("no files to add")
	}

	total := TotalSize(files)
	var transferred int64

	entries := make(map[string]string, len(files))
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		if _, dup := entries[f.Name]; dup {
			return "", fmt.Errorf("duplicate entry %q", f.Name)
		}

		for offset := 0; offset < len(f.Data); offset += s.chunkSize {
			end := min(offset+s.chunkSize, len(f.Data))
			transferred += int64(end - offset)
			if onProgress != nil {
				onProgress(transferred, total)
			}
		}

		fileHash := hashBytes(f.Data)
		entries[f.Name] = fileHash

		s.mu.Lock()
		s.objects[fileHash] = append([]byte(nil), f.Data...)
		s.mu.Unlock()
	}

	names := make([]string, 0, len(entries))
	for name := range entries {
		names = append(names, name)
	}
	sort.Strings(names)

	dirHasher := blake3.New()
	for _, name := range names {
		writeEntry(dirHasher, name, entries[name])
	}
	dirHash := memoryAddressPrefix + hex.EncodeToString(dirHasher.Sum(nil))

	s.mu.Lock()
	s.directories[dirHash] = entries
	s.mu.Unlock()

	if onProgress != nil && total == 0 {
		onProgress(0, 0)
	}
	return dirHash, nil
}

// ReadAll implements Store. Paths of the form <dir>/<name> resolve entries
// inside a directory.
func (s *MemoryStore) ReadAll(ctx context.Context, hash string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if data, ok := s.objects[hash]; ok {
		return append([]byte(nil), data...), nil
	}

	root, name, hasPath := strings.Cut(hash, "/")
	entries, ok := s.directories[root]
	if !ok {
		return nil, fmt.Errorf("%s: %w", hash, ErrNotFound)
	}
	if !hasPath {
		return nil, fmt.Errorf("%s is a directory", hash)
	}
	fileHash, ok := entries[name]
	if !ok {
		return nil, fmt.Errorf("%s: %w", hash, ErrNotFound)
	}
	return append([]byte(nil), s.objects[fileHash]...), nil
}

// Pin implements Store.
func (s *MemoryStore) Pin(ctx context.Context, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, isObject := s.objects[hash]
	_, isDir := s.directories[hash]
	if !isObject && !isDir {
		return fmt.Errorf("%s: %w", hash, ErrNotFound)
	}
	s.pins[hash] = struct{}{}
	return nil
}

// Pinned reports whether hash has been pinned.
func (s *MemoryStore) Pinned(hash string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.pins[hash]
	return ok
}

// Entries lists the names stored under a directory address, sorted.
func (s *MemoryStore) Entries(hash string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, ok := s.directories[hash]
	if !ok {
		return nil, fmt.Errorf("%s: %w", hash, ErrNotFound)
	}
	names := make([]string, 0, len(entries))
	for name := range entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// NodeInfo implements NodeInfoProvider.
func (s *MemoryStore) NodeInfo(ctx context.Context) (*NodeInfo, error) {
	return &NodeInfo{ID: "memory", AgentVersion: "webhost-mcp/memory"}, nil
}

func hashBytes(data []byte) string {
	sum := blake3.Sum256(data)
	return memoryAddressPrefix + hex.EncodeToString(sum[:])
}

// writeEntry length-prefixes both fields so that no two entry lists share an encoding.
func writeEntry(h *blake3.Hasher, name, fileHash string) {
	var size [8]byte
	binary.BigEndian.PutUint64(size[:], uint64(len(name)))
	_, _ = h.Write(size[:])
	_, _ = h.Write([]byte(name))
	binary.BigEndian.PutUint64(size[:], uint64(len(fileHash)))
	_, _ = h.Write(size[:])
	_, _ = h.Write([]byte(fileHash))
}
