package secrets

import (
	"context"
	"sync"
)

// MemVault is an in-memory Vault for tests. Values are not encrypted.
type MemVault struct {
	mu sync.Mutex
	m  map[string]string
}

func NewMemVault() *MemVault {
	return &MemVault{m: make(map[string]string)}
}

func (v *MemVault) GetSecret(_ context.Context, key string) (string, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	s, ok := v.m[key]
	if !ok {
		return "", ErrNotFound
	}
	return s, nil
}

func (v *MemVault) SetSecret(_ context.Context, key, value string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.m[key] = value
	return nil
}

func (v *MemVault) RemoveSecret(_ context.Context, key string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	delete(v.m, key)
	return nil
}
