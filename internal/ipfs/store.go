// Package ipfs provides content-addressed stores used to publish website files.
package ipfs

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a content address is unknown to the store.
var ErrNotFound = errors.New("ipfs: content not found")

// File is one named entry of a directory upload.
type File struct {
	Name string `json:"name"`
	Data []byte `json:"-"`
}

// ProgressFunc receives the number of bytes transferred so far out of total.
type ProgressFunc func(transferred, total int64)

// Store is a content-addressed store that can add a set of files as one directory.
type Store interface {
	// AddDirectory uploads files wrapped in a single directory node and returns the
	// directory's content address.
	AddDirectory(ctx context.Context, files []File, onProgress ProgressFunc) (string, error)
	// ReadAll returns the bytes stored at hash, or at hash/path.
	ReadAll(ctx context.Context, hash string) ([]byte, error)
	// Pin asks the store to keep hash available.
	Pin(ctx context.Context, hash string) error
}

// NodeInfo identifies the store node.
type NodeInfo struct {
	ID              string `json:"id"`
	AgentVersion    string `json:"agent_version"`
	ProtocolVersion string `json:"protocol_version"`
}

// NodeInfoProvider is implemented by stores that can describe their node.
type NodeInfoProvider interface {
	NodeInfo(ctx context.Context) (*NodeInfo, error)
}

// TotalSize returns the sum of all file sizes.
func TotalSize(files []File) int64 {
	var total int64
	for _, f := range files {
		total += int64(len(f.Data))
	}
	return total
}
