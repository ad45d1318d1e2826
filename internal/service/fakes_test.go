package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/sakif/fluxgate/internal/apperror"
	"github.com/sakif/fluxgate/internal/model"
)

// =========================================================================
// FAKES AND HELPERS
// =========================================================================

// fakeUserRepo is an in-memory repository.UserRepository. The mutex makes
// DebitCredits behave like the conditional UPDATE it stands in for, so the
// concurrency tests mean something against it.
type fakeUserRepo struct {
	mu     sync.Mutex
	users  map[string]*model.User // keyed by ID
	nextID int

	// set to a non-nil error to simulate a database failure
	createErr error
	adjustErr error
	debitErr  error
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[string]*model.User), nextID: 1}
}

func (f *fakeUserRepo) CreateUser(_ context.Context, user *model.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.createErr != nil {
		return f.createErr
	}
	for _, u := range f.users {
		if strings.EqualFold(u.Email, user.Email) {
			return apperror.Conflict("user", user.Email)
		}
	}
	user.ID = fmt.Sprintf("user-%d", f.nextID)
	f.nextID++
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	copied := *user
	f.users[user.ID] = &copied
	return nil
}

func (f *fakeUserRepo) GetUserByEmail(_ context.Context, email string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, u := range f.users {
		if strings.EqualFold(u.Email, email) {
			copied := *u
			return &copied, nil
		}
	}
	return nil, apperror.NotFound("user", email)
}

func (f *fakeUserRepo) GetUserByID(_ context.Context, id string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	u, ok := f.users[id]
	if !ok {
		return nil, apperror.NotFound("user", id)
	}
	copied := *u
	return &copied, nil
}

func (f *fakeUserRepo) AdjustCredits(_ context.Context, id string, delta int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.adjustErr != nil {
		return 0, f.adjustErr
	}
	u, ok := f.users[id]
	if !ok {
		return 0, apperror.NotFound("user", id)
	}
	u.Credits += delta
	return u.Credits, nil
}

func (f *fakeUserRepo) DebitCredits(_ context.Context, id string, amount int64) (int64, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.debitErr != nil {
		return 0, false, f.debitErr
	}
	u, ok := f.users[id]
	if !ok || u.Credits < amount {
		return 0, false, nil
	}
	u.Credits -= amount
	return u.Credits, true, nil
}

func (f *fakeUserRepo) credits(id string) int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.users[id].Credits
}

// seed inserts a user directly and returns its ID.
func (f *fakeUserRepo) seed(email string, credits int64) string {
	u := &model.User{Email: email, PasswordHash: "unused", Credits: credits}
	if err := f.CreateUser(context.Background(), u); err != nil {
		panic(err)
	}
	return u.ID
}

// fakeSessions maps tokens to user IDs and reads the user fresh on every
// Validate, like auth.SessionManager does. It also issues tokens so it can
// stand in for the SessionIssuer.
type fakeSessions struct {
	mu       sync.Mutex
	users    *fakeUserRepo
	byToken  map[string]string
	byUser   map[string]string
	issued   int
	issueErr error
}

func newFakeSessions(users *fakeUserRepo) *fakeSessions {
	return &fakeSessions{
		users:   users,
		byToken: make(map[string]string),
		byUser:  make(map[string]string),
	}
}

func (f *fakeSessions) Issue(_ context.Context, userID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.issueErr != nil {
		return "", f.issueErr
	}
	f.issued++
	token := fmt.Sprintf("token-%d", f.issued)
	if old, ok := f.byUser[userID]; ok {
		delete(f.byToken, old)
	}
	f.byToken[token] = userID
	f.byUser[userID] = token
	return token, nil
}

func (f *fakeSessions) Validate(ctx context.Context, token string) (*model.User, bool) {
	f.mu.Lock()
	userID, ok := f.byToken[token]
	f.mu.Unlock()
	if !ok {
		return nil, false
	}
	u, err := f.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, false
	}
	return u, true
}

// login gives userID a session without going through AccountService.
func (f *fakeSessions) login(userID string) string {
	token, err := f.Issue(context.Background(), userID)
	if err != nil {
		panic(err)
	}
	return token
}

// fakeProvider returns url, or err when set. It records what it was asked.
type fakeProvider struct {
	mu       sync.Mutex
	url      string
	err      error
	block    bool // wait for ctx to end instead of answering
	requests []model.ImageRequest

	sawCanceled bool
}

func (f *fakeProvider) Generate(ctx context.Context, req model.ImageRequest) (string, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	if ctx.Err() != nil {
		f.sawCanceled = true
	}
	url, err, block := f.url, f.err, f.block
	f.mu.Unlock()

	if block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return url, err
}

func (f *fakeProvider) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

var errDatabaseDown = errors.New("database is down")

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
