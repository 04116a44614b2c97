package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/finflow-api/internal/domain/apperror"
	"github.com/oksasatya/finflow-api/internal/domain/entity"
	repo "github.com/oksasatya/finflow-api/internal/domain/repository"
	"github.com/oksasatya/finflow-api/pkg/helpers"
	"github.com/oksasatya/finflow-api/pkg/mailer"
	mailtpl "github.com/oksasatya/finflow-api/pkg/mailer/templates"
)

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
	maxSearchSize   = 50

	defaultProfileTTL = 5 * time.Minute
)

// EmailPublisher enqueues email jobs; *helpers.RabbitPublisher implements it.
type EmailPublisher interface {
	PublishJSON(ctx context.Context, body any) error
}

// UserIndex is the optional search index over users.
type UserIndex interface {
	Index(ctx context.Context, u *entity.User) error
	Search(ctx context.Context, q string, size int) ([]uuid.UUID, error)
}

// Service implements the user use cases. Store, Hasher, JWT and Logger are
// required; Redis, Index and Emails are optional and skipped when nil.
type Service struct {
	Store  repo.UserStore
	Hasher *helpers.PasswordHasher
	JWT    *helpers.JWTManager
	Logger *logrus.Logger

	Redis      *redis.Client
	ProfileTTL time.Duration

	Index    UserIndex
	Emails   EmailPublisher
	Branding mailtpl.Branding
}

func NewService(store repo.UserStore, hasher *helpers.PasswordHasher, jwt *helpers.JWTManager, logger *logrus.Logger) *Service {
	return &Service{
		Store:      store,
		Hasher:     hasher,
		JWT:        jwt,
		Logger:     logger,
		ProfileTTL: defaultProfileTTL,
	}
}

// UserView is the public representation of a user. It never carries the hash.
type UserView struct {
	UserID     uuid.UUID `json:"user_id"`
	Email      string    `json:"email"`
	FirstName  string    `json:"first_name"`
	LastName   string    `json:"last_name"`
	IsActive   bool      `json:"is_active"`
	IsVerified bool      `json:"is_verified"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func ToView(u *entity.User) UserView {
	return UserView{
		UserID:     u.ID,
		Email:      u.Email,
		FirstName:  u.FirstName,
		LastName:   u.LastName,
		IsActive:   u.IsActive,
		IsVerified: u.IsVerified,
		CreatedAt:  u.CreatedAt,
		UpdatedAt:  u.UpdatedAt,
	}
}

type RegisterInput struct {
	Email     string
	FirstName string
	LastName  string
	Password  string
}

type LoginResult struct {
	User        UserView
	AccessToken string
	ExpiresAt   time.Time
}

type UpdateProfileInput struct {
	FirstName *string
	LastName  *string
}

type UserPage struct {
	Items  []UserView `json:"items"`
	Offset int        `json:"offset"`
	Limit  int        `json:"limit"`
}

func profileKey(id uuid.UUID) string {
	return "user:profile:" + id.String()
}

// Register creates an active, unverified user. The email pre-check is only a
// fast path; the unique index decides concurrent registrations.
func (s *Service) Register(ctx context.Context, in RegisterInput) (UserView, error) {
	exists, err := s.Store.ExistsByEmail(ctx, in.Email)
	if err != nil {
		return UserView{}, fmt.Errorf("check email: %w", err)
	}
	if exists {
		return UserView{}, apperror.AlreadyExists("User", "email", in.Email)
	}

	hash, err := s.Hasher.Hash(in.Password)
	if err != nil {
		return UserView{}, fmt.Errorf("hash password: %w", err)
	}

	tx, err := s.Store.Begin(ctx)
	if err != nil {
		return UserView{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	u := &entity.User{
		Email:        in.Email,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		PasswordHash: hash,
		IsActive:     true,
		IsVerified:   false,
	}
	if err := tx.Create(ctx, u); err != nil {
		return UserView{}, s.mapDuplicate(err, in.Email)
	}
	if err := tx.Commit(ctx); err != nil {
		return UserView{}, s.mapDuplicate(err, in.Email)
	}

	helpers.LogInfo(s.Logger, "user registered", logrus.Fields{"user_id": u.ID.String()})
	s.afterWrite(ctx, u, mailtpl.Welcome, mailtpl.NewWelcomeData(s.Branding, u.FullName(), u.Email))
	return ToView(u), nil
}

func (s *Service) mapDuplicate(err error, email string) error {
	if errors.Is(err, repo.ErrDuplicateEmail) {
		return apperror.AlreadyExists("User", "email", email)
	}
	return fmt.Errorf("create user: %w", err)
}

// Authenticate validates email/password and returns the user without issuing tokens.
// Unknown email, wrong password and deactivated account are indistinguishable.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*entity.User, error) {
	u, err := s.Store.GetByEmail(ctx, email)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, apperror.InvalidCredentials()
	}
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	if !s.Hasher.Verify(password, u.PasswordHash) {
		return nil, apperror.InvalidCredentials()
	}
	if !u.IsActive {
		return nil, apperror.InvalidCredentials()
	}
	return u, nil
}

func (s *Service) Login(ctx context.Context, email, password string) (LoginResult, error) {
	u, err := s.Authenticate(ctx, email, password)
	if err != nil {
		return LoginResult{}, err
	}
	token, exp, err := s.JWT.GenerateAccessToken(u.ID.String())
	if err != nil {
		helpers.LogError(s.Logger, "generate access token failed", err, logrus.Fields{"user_id": u.ID.String()})
		return LoginResult{}, err
	}
	return LoginResult{User: ToView(u), AccessToken: token, ExpiresAt: exp}, nil
}

// GetProfile serves from the Redis profile cache when configured.
func (s *Service) GetProfile(ctx context.Context, id uuid.UUID) (UserView, error) {
	if s.Redis != nil {
		var cached UserView
		ok, err := helpers.RedisGetJSON(ctx, s.Redis, profileKey(id), &cached)
		if err != nil {
			helpers.LogWarn(s.Logger, "profile cache read failed", err, logrus.Fields{"user_id": id.String()})
		}
		if ok {
			return cached, nil
		}
	}
	u, err := s.Store.GetByID(ctx, id)
	if errors.Is(err, repo.ErrNotFound) {
		return UserView{}, apperror.NotFound("User", id)
	}
	if err != nil {
		return UserView{}, fmt.Errorf("load user: %w", err)
	}
	v := ToView(u)
	s.cacheProfile(ctx, v)
	return v, nil
}

// GetUser has the same contract as GetProfile; it backs lookups of other users.
func (s *Service) GetUser(ctx context.Context, id uuid.UUID) (UserView, error) {
	return s.GetProfile(ctx, id)
}

// UpdateProfile changes names only.
func (s *Service) UpdateProfile(ctx context.Context, id uuid.UUID, in UpdateProfileInput) (UserView, error) {
	patch := repo.UserPatch{FirstName: in.FirstName, LastName: in.LastName}
	u, err := s.applyPatch(ctx, id, patch)
	if err != nil {
		return UserView{}, err
	}
	changes := map[string]string{}
	if in.FirstName != nil {
		changes["First name"] = *in.FirstName
	}
	if in.LastName != nil {
		changes["Last name"] = *in.LastName
	}
	if len(changes) > 0 {
		s.afterWrite(ctx, u, mailtpl.ProfileUpdated, mailtpl.NewProfileUpdatedData(s.Branding, u.FullName(), u.Email, changes))
	}
	return ToView(u), nil
}

// Deactivate blocks future logins. It is idempotent.
func (s *Service) Deactivate(ctx context.Context, id uuid.UUID) (UserView, error) {
	inactive := false
	u, err := s.applyPatch(ctx, id, repo.UserPatch{IsActive: &inactive})
	if err != nil {
		return UserView{}, err
	}
	helpers.LogInfo(s.Logger, "user deactivated", logrus.Fields{"user_id": id.String()})
	s.afterWrite(ctx, u, "", nil)
	return ToView(u), nil
}

func (s *Service) applyPatch(ctx context.Context, id uuid.UUID, patch repo.UserPatch) (*entity.User, error) {
	if patch.Empty() {
		u, err := s.Store.GetByID(ctx, id)
		if errors.Is(err, repo.ErrNotFound) {
			return nil, apperror.NotFound("User", id)
		}
		return u, err
	}

	tx, err := s.Store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	u, err := tx.Update(ctx, id, patch)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, apperror.NotFound("User", id)
	}
	if err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, apperror.NotFound("User", id)
		}
		return nil, fmt.Errorf("commit user update: %w", err)
	}
	s.cacheProfile(ctx, ToView(u))
	return u, nil
}

// ListActiveUsers pages through active users. limit <= 0 means DefaultPageSize;
// larger than MaxPageSize is clamped.
func (s *Service) ListActiveUsers(ctx context.Context, offset, limit int) (UserPage, error) {
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	users, err := s.Store.ListActive(ctx, offset, limit)
	if err != nil {
		return UserPage{}, fmt.Errorf("list users: %w", err)
	}
	items := make([]UserView, 0, len(users))
	for _, u := range users {
		items = append(items, ToView(u))
	}
	return UserPage{Items: items, Offset: offset, Limit: limit}, nil
}

// SearchUsers asks the index for ids and loads the current rows, so results
// never show stale or deactivated users. Without an index it returns nothing.
func (s *Service) SearchUsers(ctx context.Context, q string, size int) ([]UserView, error) {
	out := []UserView{}
	if s.Index == nil || q == "" {
		return out, nil
	}
	if size <= 0 || size > maxSearchSize {
		size = DefaultPageSize
	}
	ids, err := s.Index.Search(ctx, q, size)
	if err != nil {
		return nil, fmt.Errorf("search users: %w", err)
	}
	for _, id := range ids {
		u, err := s.Store.GetByID(ctx, id)
		if errors.Is(err, repo.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("load user: %w", err)
		}
		if u.IsActive {
			out = append(out, ToView(u))
		}
	}
	return out, nil
}

func (s *Service) cacheProfile(ctx context.Context, v UserView) {
	if s.Redis == nil {
		return
	}
	if err := helpers.RedisSetJSON(ctx, s.Redis, profileKey(v.UserID), v, s.ProfileTTL); err != nil {
		helpers.LogWarn(s.Logger, "profile cache write failed", err, logrus.Fields{"user_id": v.UserID.String()})
	}
}

// afterWrite runs best-effort side effects once a write has committed:
// re-index the user and, when template is set, enqueue an email. Failures
// are logged and never returned.
func (s *Service) afterWrite(ctx context.Context, u *entity.User, template string, data map[string]any) {
	ctx = context.WithoutCancel(ctx)
	fields := logrus.Fields{"user_id": u.ID.String()}

	if s.Index != nil {
		if err := s.Index.Index(ctx, u); err != nil {
			helpers.LogWarn(s.Logger, "user index failed", err, fields)
		}
	}
	if s.Emails != nil && template != "" {
		job := mailer.EmailJob{To: u.Email, Template: template, Data: data}
		if err := s.Emails.PublishJSON(ctx, job); err != nil {
			helpers.LogWarn(s.Logger, "enqueue email failed", err, fields)
		}
	}
}
