package session

import (
	"context"
	"sync"
)

type userLock struct {
	ch   chan struct{}
	refs int
}

// MemoryStore implements Store in process. Each user has its own lock, so
// rotations for different users never wait on each other.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]Record
	locks   map[string]*userLock
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]Record),
		locks:   make(map[string]*userLock),
	}
}

func (m *MemoryStore) Upsert(ctx context.Context, rec Record) error {
	unlock, err := m.lock(ctx, rec.UserID)
	if err != nil {
		return err
	}
	defer unlock()

	m.mu.Lock()
	m.records[rec.UserID] = rec
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Rotate(ctx context.Context, userID string, fn RotateFunc) (Record, error) {
	unlock, err := m.lock(ctx, userID)
	if err != nil {
		return Record{}, err
	}
	defer unlock()

	current, _ := m.Get(ctx, userID)

	next, err := fn(current)
	if err != nil {
		return Record{}, err
	}
	next.UserID = userID

	// A caller that gave up while fn ran must not see its rotation applied.
	if err := ctx.Err(); err != nil {
		return Record{}, unavailable(err)
	}

	m.mu.Lock()
	m.records[userID] = next
	m.mu.Unlock()
	return next, nil
}

func (m *MemoryStore) Delete(ctx context.Context, userID string) error {
	unlock, err := m.lock(ctx, userID)
	if err != nil {
		return err
	}
	defer unlock()

	m.mu.Lock()
	delete(m.records, userID)
	m.mu.Unlock()
	return nil
}

// Get returns a copy of the user's record, or nil when there is none.
func (m *MemoryStore) Get(_ context.Context, userID string) (*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.records[userID]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

// Ping always succeeds.
func (m *MemoryStore) Ping(context.Context) error {
	return nil
}

func (m *MemoryStore) lock(ctx context.Context, userID string) (func(), error) {
	m.mu.Lock()
	l := m.locks[userID]
	if l == nil {
		l = &userLock{ch: make(chan struct{}, 1)}
		m.locks[userID] = l
	}
	l.refs++
	m.mu.Unlock()

	select {
	case l.ch <- struct{}{}:
		return func() {
			<-l.ch
			m.release(userID, l)
		}, nil
	case <-ctx.Done():
		m.release(userID, l)
		return nil, unavailable(ctx.Err())
	}
}

func (m *MemoryStore) release(userID string, l *userLock) {
	m.mu.Lock()
	l.refs--
	if l.refs == 0 {
		delete(m.locks, userID)
	}
	m.mu.Unlock()
}
