package services

import (
	"context"
	"sync"
)

// Serializer runs fn so that calls for the same table number never overlap.
// Calls for different numbers may run in parallel.
type Serializer interface {
	Do(ctx context.Context, number int, fn func() error) error
}

// MutexSerializer keeps one mutex per table number, dropped again once no
// caller holds or waits for it.
type MutexSerializer struct {
	mu    sync.Mutex
	locks map[int]*tableLock
}

type tableLock struct {
	mu   sync.Mutex
	refs int
}

func NewMutexSerializer() *MutexSerializer {
	return &MutexSerializer{locks: make(map[int]*tableLock)}
}

func (s *MutexSerializer) Do(ctx context.Context, number int, fn func() error) error {
	s.mu.Lock()
	l, ok := s.locks[number]
	if !ok {
		l = &tableLock{}
		s.locks[number] = l
	}
	l.refs++
	s.mu.Unlock()

	l.mu.Lock()
	defer func() {
		l.mu.Unlock()
		s.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(s.locks, number)
		}
		s.mu.Unlock()
	}()

	if err := ctx.Err(); err != nil {
		return err
	}
	return fn()
}

func (s *MutexSerializer) size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.locks)
}
