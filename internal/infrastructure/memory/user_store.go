// Package memory is a process-local user store with the same contract as the
// PostgreSQL one. It backs STORAGE_DRIVER=memory and the service tests.
package memory

import (
	"bytes"
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/oksasatya/finflow-api/internal/domain/entity"
	"github.com/oksasatya/finflow-api/internal/domain/repository"
)

var errTxDone = errors.New("transaction already finished")

// UserStore is a thread-safe in-memory store implementation.
type UserStore struct {
	mu         sync.RWMutex
	users      map[uuid.UUID]*entity.User
	emailIndex map[string]uuid.UUID // email -> userID

	// Now is the clock; tests may replace it.
	Now func() time.Time
}

func NewUserStore() *UserStore {
	return &UserStore{
		users:      make(map[uuid.UUID]*entity.User),
		emailIndex: make(map[string]uuid.UUID),
		Now:        func() time.Time { return time.Now().UTC() },
	}
}

func clone(u *entity.User) *entity.User {
	c := *u
	return &c
}

func applyPatch(u *entity.User, p repository.UserPatch, now time.Time) {
	if p.FirstName != nil {
		u.FirstName = *p.FirstName
	}
	if p.LastName != nil {
		u.LastName = *p.LastName
	}
	if p.IsActive != nil {
		u.IsActive = *p.IsActive
	}
	if p.IsVerified != nil {
		u.IsVerified = *p.IsVerified
	}
	u.UpdatedAt = now
}

func (s *UserStore) prepare(u *entity.User) {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	now := s.Now()
	u.CreatedAt = now
	u.UpdatedAt = now
}

func (s *UserStore) Create(ctx context.Context, u *entity.User) error {
	s.prepare(u)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.emailIndex[u.Email]; taken {
		return repository.ErrDuplicateEmail
	}
	s.users[u.ID] = clone(u)
	s.emailIndex[u.Email] = u.ID
	return nil
}

func (s *UserStore) GetByID(ctx context.Context, id uuid.UUID) (*entity.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return clone(u), nil
}

func (s *UserStore) GetByEmail(ctx context.Context, email string) (*entity.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.emailIndex[email]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return clone(s.users[id]), nil
}

func (s *UserStore) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.emailIndex[email]
	return ok, nil
}

func (s *UserStore) ListActive(ctx context.Context, offset, limit int) ([]*entity.User, error) {
	s.mu.RLock()
	active := make([]*entity.User, 0, len(s.users))
	for _, u := range s.users {
		if u.IsActive {
			active = append(active, clone(u))
		}
	}
	s.mu.RUnlock()

	sort.Slice(active, func(i, j int) bool {
		if !active[i].CreatedAt.Equal(active[j].CreatedAt) {
			return active[i].CreatedAt.Before(active[j].CreatedAt)
		}
		return bytes.Compare(active[i].ID[:], active[j].ID[:]) < 0
	})

	if offset >= len(active) {
		return []*entity.User{}, nil
	}
	end := offset + limit
	if end > len(active) {
		end = len(active)
	}
	return active[offset:end], nil
}

func (s *UserStore) Update(ctx context.Context, id uuid.UUID, p repository.UserPatch) (*entity.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	applyPatch(u, p, s.Now())
	return clone(u), nil
}

func (s *UserStore) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return false, nil
	}
	delete(s.emailIndex, u.Email)
	delete(s.users, id)
	return true, nil
}

// Begin opens a transaction whose writes stay invisible until Commit.
func (s *UserStore) Begin(ctx context.Context) (repository.UserTx, error) {
	return &userTx{store: s, staged: make(map[uuid.UUID]*entity.User), created: make(map[uuid.UUID]bool), deleted: make(map[uuid.UUID]bool)}, nil
}

type userTx struct {
	store   *UserStore
	staged  map[uuid.UUID]*entity.User // post-write images
	created map[uuid.UUID]bool
	deleted map[uuid.UUID]bool
	done    bool
}

// lookup sees staged writes first, then committed state.
func (t *userTx) lookup(id uuid.UUID) (*entity.User, bool) {
	if t.deleted[id] {
		return nil, false
	}
	if u, ok := t.staged[id]; ok {
		return u, true
	}
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()
	u, ok := t.store.users[id]
	if !ok {
		return nil, false
	}
	return clone(u), true
}

func (t *userTx) stagedEmail(email string) bool {
	for id := range t.created {
		if t.staged[id].Email == email && !t.deleted[id] {
			return true
		}
	}
	return false
}

func (t *userTx) Create(ctx context.Context, u *entity.User) error {
	if t.done {
		return errTxDone
	}
	exists, _ := t.store.ExistsByEmail(ctx, u.Email)
	if exists || t.stagedEmail(u.Email) {
		return repository.ErrDuplicateEmail
	}
	t.store.prepare(u)
	t.staged[u.ID] = clone(u)
	t.created[u.ID] = true
	return nil
}

func (t *userTx) GetByID(ctx context.Context, id uuid.UUID) (*entity.User, error) {
	u, ok := t.lookup(id)
	if !ok {
		return nil, repository.ErrNotFound
	}
	return clone(u), nil
}

func (t *userTx) GetByEmail(ctx context.Context, email string) (*entity.User, error) {
	for id, u := range t.staged {
		if u.Email == email && !t.deleted[id] {
			return clone(u), nil
		}
	}
	return t.store.GetByEmail(ctx, email)
}

func (t *userTx) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	if t.stagedEmail(email) {
		return true, nil
	}
	return t.store.ExistsByEmail(ctx, email)
}

// ListActive reads committed state only.
func (t *userTx) ListActive(ctx context.Context, offset, limit int) ([]*entity.User, error) {
	return t.store.ListActive(ctx, offset, limit)
}

func (t *userTx) Update(ctx context.Context, id uuid.UUID, p repository.UserPatch) (*entity.User, error) {
	if t.done {
		return nil, errTxDone
	}
	u, ok := t.lookup(id)
	if !ok {
		return nil, repository.ErrNotFound
	}
	u = clone(u)
	applyPatch(u, p, t.store.Now())
	t.staged[id] = u
	return clone(u), nil
}

func (t *userTx) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	if t.done {
		return false, errTxDone
	}
	if _, ok := t.lookup(id); !ok {
		return false, nil
	}
	t.deleted[id] = true
	return true, nil
}

// Commit re-checks email uniqueness against state committed since Begin, so
// two transactions racing on one email cannot both succeed.
func (t *userTx) Commit(ctx context.Context) error {
	if t.done {
		return nil
	}
	t.done = true
	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()

	for id := range t.created {
		if t.deleted[id] {
			continue
		}
		if _, taken := s.emailIndex[t.staged[id].Email]; taken {
			return repository.ErrDuplicateEmail
		}
	}
	for id := range t.staged {
		if t.created[id] || t.deleted[id] {
			continue
		}
		if _, ok := s.users[id]; !ok {
			return repository.ErrNotFound
		}
	}

	for id, u := range t.staged {
		if t.deleted[id] {
			continue
		}
		s.users[id] = clone(u)
		if t.created[id] {
			s.emailIndex[u.Email] = id
		}
	}
	for id := range t.deleted {
		if u, ok := s.users[id]; ok {
			delete(s.emailIndex, u.Email)
			delete(s.users, id)
		}
	}
	return nil
}

func (t *userTx) Rollback(ctx context.Context) error {
	t.done = true
	t.staged = nil
	t.created = nil
	t.deleted = nil
	return nil
}

var (
	_ repository.UserStore = (*UserStore)(nil)
	_ repository.UserTx    = (*userTx)(nil)
)
