package testutils

import (
	"context"
	"sync"

	"github.com/rxtech-lab/webhost-mcp/internal/ipfs"
)

// ScriptedStore is a MemoryStore whose AddDirectory calls fail according to a
// script. Entry i of the script is the error returned by call i+1; a nil entry,
// or a call past the end of the script, succeeds.
type ScriptedStore struct {
	*ipfs.MemoryStore

	mu     sync.Mutex
	script []error
	always error
	pinErr error
	calls  int
	pinned []string
}

// NewScriptedStore creates a store that fails its first calls with script.
func NewScriptedStore(script ...error) *ScriptedStore {
	return &ScriptedStore{MemoryStore: ipfs.NewMemoryStore(), script: script}
}

// FailAlways makes every AddDirectory call fail with err.
func (s *ScriptedStore) FailAlways(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.always = err
}

// FailPin makes Pin fail with err.
func (s *ScriptedStore) FailPin(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pinErr = err
}

// Calls returns the number of AddDirectory calls so far.
func (s *ScriptedStore) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// PinnedHashes returns the hashes passed to successful Pin calls.
func (s *ScriptedStore) PinnedHashes() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.pinned...)
}

// AddDirectory implements ipfs.Store. Failing calls report half of the bytes
// before failing, like an upload that broke mid-stream.
func (s *ScriptedStore) AddDirectory(ctx context.Context, files []ipfs.File, onProgress ipfs.ProgressFunc) (string, error) {
	s.mu.Lock()
	s.calls++
	call := s.calls
	err := s.always
	if err == nil && call <= len(s.script) {
		err = s.script[call-1]
	}
	s.mu.Unlock()

	if err != nil {
		if onProgress != nil {
			total := ipfs.TotalSize(files)
			onProgress(total/2, total)
		}
		return "", err
	}
	return s.MemoryStore.AddDirectory(ctx, files, onProgress)
}

// Pin implements ipfs.Store.
func (s *ScriptedStore) Pin(ctx context.Context, hash string) error {
	s.mu.Lock()
	err := s.pinErr
	s.mu.Unlock()
	if err != nil {
		return err
	}
	if err := s.MemoryStore.Pin(ctx, hash); err != nil {
		return err
	}
	s.mu.Lock()
	s.pinned = append(s.pinned, hash)
	s.mu.Unlock()
	return nil
}
