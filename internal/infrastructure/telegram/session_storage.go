// Package telegram implements the MTProto client layer: connections, login
// exchanges, proxy dialing and error classification.
package telegram

import (
	"context"
	"encoding/base64"
	"fmt"
	"sync"

	"github.com/gotd/td/session"
)

// memorySessionStorage implements session.Storage on a byte slice. Sessions
// travel as opaque base64 credentials; nothing touches the disk here.
type memorySessionStorage struct {
	mu   sync.RWMutex
	data []byte
}

// newMemorySessionStorage seeds storage from a credential. An empty
// credential starts a fresh, unauthorized session.
func newMemorySessionStorage(credential string) (*memorySessionStorage, error) {
	s := &memorySessionStorage{}
	if credential != "" {
		data, err := base64.StdEncoding.DecodeString(credential)
		if err != nil {
			return nil, fmt.Errorf("decode credential: %w", err)
		}
		s.data = data
	}
	return s, nil
}

func (s *memorySessionStorage) LoadSession(_ context.Context) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.data) == 0 {
		return nil, session.ErrNotFound
	}
	out := make([]byte, len(s.data))
	copy(out, s.data)
	return out, nil
}

func (s *memorySessionStorage) StoreSession(_ context.Context, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data = make([]byte, len(data))
	copy(s.data, data)
	return nil
}

// Export returns the current session as an opaque credential.
func (s *memorySessionStorage) Export() (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.data) == 0 {
		return "", session.ErrNotFound
	}
	return base64.StdEncoding.EncodeToString(s.data), nil
}
