package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/oksasatya/finflow-api/internal/domain/entity"
)

var (
	// ErrNotFound is returned when the requested user does not exist.
	ErrNotFound = errors.New("user not found")
	// ErrDuplicateEmail is returned when an insert violates email uniqueness.
	ErrDuplicateEmail = errors.New("duplicate email")
)

// UserPatch lists the mutable user fields. Nil fields are left untouched.
type UserPatch struct {
	FirstName  *string
	LastName   *string
	IsActive   *bool
	IsVerified *bool
}

// Empty reports whether the patch changes nothing.
func (p UserPatch) Empty() bool {
	return p.FirstName == nil && p.LastName == nil && p.IsActive == nil && p.IsVerified == nil
}

// UserRepository defines the interface for user-related database operations.
type UserRepository interface {
	// Create assigns an ID when u.ID is uuid.Nil and fills timestamps.
	Create(ctx context.Context, u *entity.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*entity.User, error)
	GetByEmail(ctx context.Context, email string) (*entity.User, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	// ListActive orders by created_at, then id.
	ListActive(ctx context.Context, offset, limit int) ([]*entity.User, error)
	Update(ctx context.Context, id uuid.UUID, patch UserPatch) (*entity.User, error)
	Delete(ctx context.Context, id uuid.UUID) (bool, error)
}

// UserTx stages writes until Commit. Rollback after Commit is a no-op.
type UserTx interface {
	UserRepository
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// UserStore is the entry point handed to services.
type UserStore interface {
	UserRepository
	Begin(ctx context.Context) (UserTx, error)
}
