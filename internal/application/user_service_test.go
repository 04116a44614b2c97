package application

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/oksasatya/finflow-api/internal/domain/apperror"
	"github.com/oksasatya/finflow-api/internal/domain/entity"
	repo "github.com/oksasatya/finflow-api/internal/domain/repository"
	"github.com/oksasatya/finflow-api/internal/infrastructure/memory"
	"github.com/oksasatya/finflow-api/pkg/helpers"
	"github.com/oksasatya/finflow-api/pkg/mailer"
	mailtpl "github.com/oksasatya/finflow-api/pkg/mailer/templates"
)

type fakeIndex struct {
	mu      sync.Mutex
	indexed map[uuid.UUID]entity.User
	hits    []uuid.UUID
	err     error
}

func (f *fakeIndex) Index(_ context.Context, u *entity.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.indexed == nil {
		f.indexed = map[uuid.UUID]entity.User{}
	}
	f.indexed[u.ID] = *u
	return f.err
}

func (f *fakeIndex) Search(_ context.Context, _ string, size int) ([]uuid.UUID, error) {
	if len(f.hits) > size {
		return f.hits[:size], nil
	}
	return f.hits, nil
}

type fakePublisher struct {
	mu   sync.Mutex
	jobs []mailer.EmailJob
	err  error
}

func (p *fakePublisher) PublishJSON(_ context.Context, body any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.jobs = append(p.jobs, body.(mailer.EmailJob))
	return p.err
}

// blindStore hides existing emails from the pre-check, simulating two
// registrations that both pass it before either inserts.
type blindStore struct {
	repo.UserStore
}

func (blindStore) ExistsByEmail(context.Context, string) (bool, error) { return false, nil }

func newTestService(t *testing.T) *Service {
	t.Helper()
	jwtm, err := helpers.NewJWTManager("test-secret", "HS256", 30*time.Minute)
	require.NoError(t, err)
	svc := NewService(memory.NewUserStore(), helpers.NewPasswordHasher(bcrypt.MinCost), jwtm, helpers.NewDiscardLogger())
	svc.Branding = mailtpl.Branding{CompanyName: "FinFlow", AppName: "finflow-api"}
	return svc
}

func register(t *testing.T, svc *Service, email string) UserView {
	t.Helper()
	v, err := svc.Register(context.Background(), RegisterInput{
		Email: email, FirstName: "A", LastName: "B", Password: "longenough1",
	})
	require.NoError(t, err)
	return v
}

func TestRegister(t *testing.T) {
	svc := newTestService(t)
	v := register(t, svc, "a@x.com")

	assert.NotEqual(t, uuid.Nil, v.UserID)
	assert.Equal(t, "a@x.com", v.Email)
	assert.True(t, v.IsActive)
	assert.False(t, v.IsVerified)

	stored, err := svc.Store.GetByID(context.Background(), v.UserID)
	require.NoError(t, err)
	assert.NotEqual(t, "longenough1", stored.PasswordHash)
	assert.True(t, svc.Hasher.Verify("longenough1", stored.PasswordHash))
}

func TestRegisterDuplicateLeavesStoreUnchanged(t *testing.T) {
	svc := newTestService(t)
	first := register(t, svc, "a@x.com")

	_, err := svc.Register(context.Background(), RegisterInput{
		Email: "a@x.com", FirstName: "Other", LastName: "Name", Password: "different1",
	})
	require.Error(t, err)
	assert.True(t, apperror.IsKind(err, apperror.KindAlreadyExists))
	assert.Equal(t, "User with email a@x.com already exists", err.Error())

	u, err := svc.Store.GetByEmail(context.Background(), "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, first.UserID, u.ID)
	assert.Equal(t, "A", u.FirstName)
	assert.True(t, svc.Hasher.Verify("longenough1", u.PasswordHash))
}

func TestRegisterRaceMapsUniqueViolation(t *testing.T) {
	svc := newTestService(t)
	svc.Store = blindStore{UserStore: svc.Store}
	register(t, svc, "race@x.com")

	_, err := svc.Register(context.Background(), RegisterInput{
		Email: "race@x.com", FirstName: "C", LastName: "D", Password: "longenough1",
	})
	assert.True(t, apperror.IsKind(err, apperror.KindAlreadyExists))
}

func TestRegisterConcurrentSameEmail(t *testing.T) {
	svc := newTestService(t)
	svc.Store = blindStore{UserStore: svc.Store}

	const n = 8
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Register(context.Background(), RegisterInput{
				Email: "same@x.com", FirstName: "A", LastName: "B", Password: "longenough1",
			})
		}(i)
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		assert.True(t, apperror.IsKind(err, apperror.KindAlreadyExists), err)
	}
	assert.Equal(t, 1, ok)
}

func TestLogin(t *testing.T) {
	svc := newTestService(t)
	v := register(t, svc, "a@x.com")
	ctx := context.Background()

	res, err := svc.Login(ctx, "a@x.com", "longenough1")
	require.NoError(t, err)
	assert.Equal(t, v.UserID, res.User.UserID)
	sub, ok := svc.JWT.ExtractSubject(res.AccessToken)
	require.True(t, ok)
	assert.Equal(t, v.UserID, sub)

	for name, creds := range map[string][2]string{
		"wrong password": {"a@x.com", "wrongpass1"},
		"unknown email":  {"nobody@x.com", "longenough1"},
		"case differs":   {"a@x.com", "LONGENOUGH1"},
	} {
		_, err := svc.Login(ctx, creds[0], creds[1])
		assert.True(t, apperror.IsKind(err, apperror.KindInvalidCredentials), name)
		assert.Equal(t, "Invalid email or password", err.Error(), name)
	}
}

func TestLoginRejectsDeactivatedUser(t *testing.T) {
	svc := newTestService(t)
	v := register(t, svc, "a@x.com")

	_, err := svc.Deactivate(context.Background(), v.UserID)
	require.NoError(t, err)

	_, err = svc.Login(context.Background(), "a@x.com", "longenough1")
	assert.True(t, apperror.IsKind(err, apperror.KindInvalidCredentials))
}

func TestGetProfileNotFound(t *testing.T) {
	svc := newTestService(t)
	id := uuid.New()
	_, err := svc.GetProfile(context.Background(), id)
	assert.True(t, apperror.IsKind(err, apperror.KindNotFound))
	assert.Equal(t, "User with id "+id.String()+" not found", err.Error())
}

func TestGetProfileUsesCache(t *testing.T) {
	svc := newTestService(t)
	mr := miniredis.RunT(t)
	svc.Redis = redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = svc.Redis.Close() })
	svc.ProfileTTL = time.Minute

	v := register(t, svc, "a@x.com")
	got, err := svc.GetProfile(context.Background(), v.UserID)
	require.NoError(t, err)
	assert.Equal(t, v.Email, got.Email)
	assert.True(t, mr.Exists(profileKey(v.UserID)))

	// Updates refresh the cached copy.
	name := "Ada"
	_, err = svc.UpdateProfile(context.Background(), v.UserID, UpdateProfileInput{FirstName: &name})
	require.NoError(t, err)
	got, err = svc.GetProfile(context.Background(), v.UserID)
	require.NoError(t, err)
	assert.Equal(t, "Ada", got.FirstName)

	mr.FastForward(2 * time.Minute)
	assert.False(t, mr.Exists(profileKey(v.UserID)))
}

func TestGetProfileSurvivesCacheOutage(t *testing.T) {
	svc := newTestService(t)
	mr := miniredis.RunT(t)
	svc.Redis = redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = svc.Redis.Close() })

	v := register(t, svc, "a@x.com")
	mr.Close()

	got, err := svc.GetProfile(context.Background(), v.UserID)
	require.NoError(t, err)
	assert.Equal(t, v.UserID, got.UserID)
}

func TestUpdateProfilePartial(t *testing.T) {
	svc := newTestService(t)
	pub := &fakePublisher{}
	svc.Emails = pub
	v := register(t, svc, "a@x.com")

	last := "Lovelace"
	got, err := svc.UpdateProfile(context.Background(), v.UserID, UpdateProfileInput{LastName: &last})
	require.NoError(t, err)
	assert.Equal(t, "A", got.FirstName)
	assert.Equal(t, "Lovelace", got.LastName)
	assert.False(t, got.UpdatedAt.Before(v.UpdatedAt))

	require.Len(t, pub.jobs, 2)
	assert.Equal(t, mailtpl.Welcome, pub.jobs[0].Template)
	assert.Equal(t, mailtpl.ProfileUpdated, pub.jobs[1].Template)
	assert.Equal(t, "a@x.com", pub.jobs[1].To)

	// An empty update changes nothing and sends nothing.
	same, err := svc.UpdateProfile(context.Background(), v.UserID, UpdateProfileInput{})
	require.NoError(t, err)
	assert.Equal(t, "Lovelace", same.LastName)
	assert.Len(t, pub.jobs, 2)

	_, err = svc.UpdateProfile(context.Background(), uuid.New(), UpdateProfileInput{LastName: &last})
	assert.True(t, apperror.IsKind(err, apperror.KindNotFound))
}

func TestSideEffectFailuresDoNotFailWrites(t *testing.T) {
	svc := newTestService(t)
	svc.Emails = &fakePublisher{err: errors.New("broker down")}
	svc.Index = &fakeIndex{err: errors.New("es down")}

	v := register(t, svc, "a@x.com")
	assert.NotEqual(t, uuid.Nil, v.UserID)
}

func TestDeactivateIsIdempotent(t *testing.T) {
	svc := newTestService(t)
	v := register(t, svc, "a@x.com")

	for i := 0; i < 2; i++ {
		got, err := svc.Deactivate(context.Background(), v.UserID)
		require.NoError(t, err)
		assert.False(t, got.IsActive)
	}
	_, err := svc.Deactivate(context.Background(), uuid.New())
	assert.True(t, apperror.IsKind(err, apperror.KindNotFound))
}

func TestListActiveUsers(t *testing.T) {
	svc := newTestService(t)
	a := register(t, svc, "a@x.com")
	b := register(t, svc, "b@x.com")
	c := register(t, svc, "c@x.com")
	_, err := svc.Deactivate(context.Background(), b.UserID)
	require.NoError(t, err)

	page, err := svc.ListActiveUsers(context.Background(), 0, 0)
	require.NoError(t, err)
	assert.Equal(t, DefaultPageSize, page.Limit)
	ids := []uuid.UUID{}
	for _, it := range page.Items {
		ids = append(ids, it.UserID)
	}
	assert.ElementsMatch(t, []uuid.UUID{a.UserID, c.UserID}, ids)

	page, err = svc.ListActiveUsers(context.Background(), -5, 1000)
	require.NoError(t, err)
	assert.Equal(t, 0, page.Offset)
	assert.Equal(t, MaxPageSize, page.Limit)

	page, err = svc.ListActiveUsers(context.Background(), 5, 10)
	require.NoError(t, err)
	assert.Empty(t, page.Items)
	assert.NotNil(t, page.Items)
}

func TestSearchUsers(t *testing.T) {
	svc := newTestService(t)
	idx := &fakeIndex{}
	svc.Index = idx

	res, err := svc.SearchUsers(context.Background(), "ada", 10)
	require.NoError(t, err)
	assert.Empty(t, res)

	a := register(t, svc, "ada@x.com")
	b := register(t, svc, "adb@x.com")
	assert.Contains(t, idx.indexed, a.UserID)

	_, err = svc.Deactivate(context.Background(), b.UserID)
	require.NoError(t, err)
	assert.False(t, idx.indexed[b.UserID].IsActive, "deactivation re-indexes")

	idx.hits = []uuid.UUID{a.UserID, b.UserID, uuid.New()}
	res, err = svc.SearchUsers(context.Background(), "ad", 10)
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, a.UserID, res[0].UserID)

	res, err = svc.SearchUsers(context.Background(), "", 10)
	require.NoError(t, err)
	assert.Empty(t, res)
}

func TestSearchUsersWithoutIndex(t *testing.T) {
	svc := newTestService(t)
	register(t, svc, "a@x.com")
	res, err := svc.SearchUsers(context.Background(), "a", 10)
	require.NoError(t, err)
	assert.NotNil(t, res)
	assert.Empty(t, res)
}
