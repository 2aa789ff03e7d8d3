package cache

import (
	"context"
	"fmt"
	"sync"
)

// FakeKV is an in-process KV implementation for tests, avoiding a live
// Redis dependency in unit tests the way the teacher's store_test.go
// exercises store.Store against a t.TempDir() instead of a real
// filesystem fixture.
type FakeKV struct {
	mu      sync.Mutex
	hashes  map[string]map[string]string
	sets    map[string]map[string]struct{}
	strings map[string]string
}

// NewFakeKV returns an empty FakeKV.
func NewFakeKV() *FakeKV {
	return &FakeKV{
		hashes:  make(map[string]map[string]string),
		sets:    make(map[string]map[string]struct{}),
		strings: make(map[string]string),
	}
}

func (f *FakeKV) HSet(ctx context.Context, key string, values ...any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	h, ok := f.hashes[key]
	if !ok {
		h = make(map[string]string)
		f.hashes[key] = h
	}
	for i := 0; i+1 < len(values); i += 2 {
		field := fmt.Sprintf("%v", values[i])
		h[field] = fmt.Sprintf("%v", values[i+1])
	}
	return nil
}

func (f *FakeKV) HGet(ctx context.Context, key, field string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	h, ok := f.hashes[key]
	if !ok {
		return "", false, nil
	}
	v, ok := h[field]
	return v, ok, nil
}

func (f *FakeKV) Del(ctx context.Context, keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, k := range keys {
		delete(f.hashes, k)
		delete(f.sets, k)
		delete(f.strings, k)
	}
	return nil
}

func (f *FakeKV) SAdd(ctx context.Context, key string, members ...any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sets[key]
	if !ok {
		s = make(map[string]struct{})
		f.sets[key] = s
	}
	for _, m := range members {
		s[fmt.Sprintf("%v", m)] = struct{}{}
	}
	return nil
}

func (f *FakeKV) SMembers(ctx context.Context, key string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := f.sets[key]
	out := make([]string, 0, len(s))
	for m := range s {
		out = append(out, m)
	}
	return out, nil
}

func (f *FakeKV) Get(ctx context.Context, key string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.strings[key]
	return v, ok, nil
}

func (f *FakeKV) Set(ctx context.Context, key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.strings[key] = value
	return nil
}
