package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/oksasatya/finflow-api/internal/domain/entity"
	"github.com/oksasatya/finflow-api/internal/domain/repository"
)

const uniqueViolation = "23505"

const userColumns = `user_id, email, first_name, last_name, password_hash, is_active, is_verified, created_at, updated_at`

// dbtx is satisfied by both *pgxpool.Pool and pgx.Tx.
type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type UserRepository struct {
	db dbtx
}

// UserStore runs statements on the pool and opens transactions on demand.
type UserStore struct {
	UserRepository
	pool *pgxpool.Pool
}

func NewUserStore(pool *pgxpool.Pool) *UserStore {
	return &UserStore{UserRepository: UserRepository{db: pool}, pool: pool}
}

func (s *UserStore) Begin(ctx context.Context) (repository.UserTx, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	return &userTx{UserRepository: UserRepository{db: tx}, tx: tx}, nil
}

type userTx struct {
	UserRepository
	tx   pgx.Tx
	done bool
}

func (t *userTx) Commit(ctx context.Context) error {
	if t.done {
		return nil
	}
	t.done = true
	if err := t.tx.Commit(ctx); err != nil {
		return mapWriteErr("commit", err)
	}
	return nil
}

func (t *userTx) Rollback(ctx context.Context) error {
	if t.done {
		return nil
	}
	t.done = true
	if err := t.tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return fmt.Errorf("rollback: %w", err)
	}
	return nil
}

func scanUser(row pgx.Row) (*entity.User, error) {
	u := &entity.User{}
	if err := row.Scan(&u.ID, &u.Email, &u.FirstName, &u.LastName, &u.PasswordHash,
		&u.IsActive, &u.IsVerified, &u.CreatedAt, &u.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return u, nil
}

func mapWriteErr(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return repository.ErrDuplicateEmail
	}
	return fmt.Errorf("%s: %w", op, err)
}

func (r *UserRepository) Create(ctx context.Context, u *entity.User) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	row := r.db.QueryRow(ctx, `
		INSERT INTO users (user_id, email, first_name, last_name, password_hash, is_active, is_verified)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at
	`, u.ID, u.Email, u.FirstName, u.LastName, u.PasswordHash, u.IsActive, u.IsVerified)

	if err := row.Scan(&u.CreatedAt, &u.UpdatedAt); err != nil {
		return mapWriteErr("insert user", err)
	}
	return nil
}

func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (*entity.User, error) {
	return scanUser(r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE user_id = $1`, id))
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*entity.User, error) {
	return scanUser(r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email))
}

func (r *UserRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE email = $1)`, email).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("exists by email: %w", err)
	}
	return exists, nil
}

func (r *UserRepository) ListActive(ctx context.Context, offset, limit int) ([]*entity.User, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE is_active = TRUE
		ORDER BY created_at, user_id
		OFFSET $1 LIMIT $2
	`, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("list active users: %w", err)
	}
	defer rows.Close()

	out := make([]*entity.User, 0, limit)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// Update sets only the non-nil patch fields; COALESCE keeps the rest.
func (r *UserRepository) Update(ctx context.Context, id uuid.UUID, p repository.UserPatch) (*entity.User, error) {
	row := r.db.QueryRow(ctx, `
		UPDATE users
		SET first_name  = COALESCE($2, first_name),
		    last_name   = COALESCE($3, last_name),
		    is_active   = COALESCE($4, is_active),
		    is_verified = COALESCE($5, is_verified),
		    updated_at  = now()
		WHERE user_id = $1
		RETURNING `+userColumns,
		id, p.FirstName, p.LastName, p.IsActive, p.IsVerified)
	return scanUser(row)
}

func (r *UserRepository) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	res, err := r.db.Exec(ctx, `DELETE FROM users WHERE user_id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("delete user: %w", err)
	}
	return res.RowsAffected() > 0, nil
}

var (
	_ repository.UserStore = (*UserStore)(nil)
	_ repository.UserTx    = (*userTx)(nil)
)
