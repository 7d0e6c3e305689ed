package service

import (
	"context"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/chatsounds/soundboard-server/internal/model"
	"github.com/chatsounds/soundboard-server/internal/repository"
)

type mockSoundRepo struct {
	mock.Mock
}

func (m *mockSoundRepo) FindByID(ctx context.Context, id string) (*model.Sound, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Sound), args.Error(1)
}

func (m *mockSoundRepo) FindByCommand(ctx context.Context, command string) (*model.Sound, error) {
	args := m.Called(ctx, command)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Sound), args.Error(1)
}

func (m *mockSoundRepo) FindAll(ctx context.Context, limit, offset int) ([]model.Sound, error) {
	args := m.Called(ctx, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Sound), args.Error(1)
}

func (m *mockSoundRepo) Create(ctx context.Context, params model.CreateSoundParams) (*model.Sound, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Sound), args.Error(1)
}

func (m *mockSoundRepo) Update(ctx context.Context, id string, params model.UpdateSoundParams) (*model.Sound, error) {
	args := m.Called(ctx, id, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Sound), args.Error(1)
}

func (m *mockSoundRepo) Delete(ctx context.Context, id string) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

func (m *mockSoundRepo) Count(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockSoundRepo) IncrementPlayCount(ctx context.Context, id string, at time.Time) (bool, error) {
	args := m.Called(ctx, id, at)
	return args.Bool(0), args.Error(1)
}

func (m *mockSoundRepo) MostPlayed(ctx context.Context, limit int) ([]model.PopularSound, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.PopularSound), args.Error(1)
}

func (m *mockSoundRepo) PlayCountDrift(ctx context.Context) ([]model.PlayCountDrift, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.PlayCountDrift), args.Error(1)
}

type mockUserRepo struct {
	mock.Mock
}

func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

func (m *mockUserRepo) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	args := m.Called(ctx, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

func (m *mockUserRepo) FindAll(ctx context.Context, limit, offset int) ([]model.User, error) {
	args := m.Called(ctx, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.User), args.Error(1)
}

func (m *mockUserRepo) Create(ctx context.Context, params model.CreateUserParams) (*model.User, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

func (m *mockUserRepo) Update(ctx context.Context, id string, params model.UpdateUserParams) (*model.User, error) {
	args := m.Called(ctx, id, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

func (m *mockUserRepo) Delete(ctx context.Context, id string) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

func (m *mockUserRepo) Count(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockUserRepo) FindOrCreate(ctx context.Context, username string) (*model.User, bool, error) {
	args := m.Called(ctx, username)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(*model.User), args.Bool(1), args.Error(2)
}

func (m *mockUserRepo) IncrementCommandCount(ctx context.Context, id string, at time.Time) (bool, error) {
	args := m.Called(ctx, id, at)
	return args.Bool(0), args.Error(1)
}

func (m *mockUserRepo) MostActive(ctx context.Context, limit int) ([]model.ActiveUser, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.ActiveUser), args.Error(1)
}

type mockPlayRepo struct {
	mock.Mock
}

func (m *mockPlayRepo) Create(ctx context.Context, soundID, username string, userID *string, at time.Time) (*model.PlayEvent, error) {
	args := m.Called(ctx, soundID, username, userID, at)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.PlayEvent), args.Error(1)
}

func (m *mockPlayRepo) Count(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockPlayRepo) CountByDay(ctx context.Context, from, to time.Time, soundID *string) ([]repository.DayCount, error) {
	args := m.Called(ctx, from, to, soundID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]repository.DayCount), args.Error(1)
}

func (m *mockPlayRepo) CountByHour(ctx context.Context, from, to time.Time) ([]repository.HourCount, error) {
	args := m.Called(ctx, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]repository.HourCount), args.Error(1)
}

func (m *mockPlayRepo) CountForSound(ctx context.Context, soundID string) (int64, error) {
	args := m.Called(ctx, soundID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockPlayRepo) UniqueUsersForSound(ctx context.Context, soundID string) (int64, error) {
	args := m.Called(ctx, soundID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockPlayRepo) Recent(ctx context.Context, limit int) ([]model.RecentPlay, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.RecentPlay), args.Error(1)
}

type mockTokens struct {
	mock.Mock
}

func (m *mockTokens) BuildAuthorizationURL(state string) string {
	return "https://id.twitch.tv/oauth2/authorize?state=" + state
}

func (m *mockTokens) ExchangeCode(ctx context.Context, code string) (*model.TokenData, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.TokenData), args.Error(1)
}

func (m *mockTokens) Refresh(ctx context.Context, refreshToken string) (*model.TokenData, error) {
	args := m.Called(ctx, refreshToken)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.TokenData), args.Error(1)
}

func (m *mockTokens) FetchProfile(ctx context.Context, accessToken string) (*model.Profile, error) {
	args := m.Called(ctx, accessToken)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Profile), args.Error(1)
}

func (m *mockTokens) Validate(ctx context.Context, accessToken string) bool {
	return m.Called(ctx, accessToken).Bool(0)
}

func (m *mockTokens) Revoke(ctx context.Context, accessToken string) bool {
	return m.Called(ctx, accessToken).Bool(0)
}

type published struct {
	Kind    model.EventKind
	Payload any
}

type fakePublisher struct {
	mu     sync.Mutex
	events []published
	err    error
}

func (p *fakePublisher) Publish(_ context.Context, kind model.EventKind, payload any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, published{Kind: kind, Payload: payload})
	return p.err
}

func (p *fakePublisher) all() []published {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]published(nil), p.events...)
}

type fakeRecorder struct {
	mu         sync.Mutex
	outcomes   []model.TriggerOutcome
	accounting []string
}

func (r *fakeRecorder) RecordTrigger(o model.TriggerOutcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, o)
}

func (r *fakeRecorder) RecordAccountingFailure(step string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.accounting = append(r.accounting, step)
}

func (r *fakeRecorder) RecordSessionsSwept(int)                      {}
func (r *fakeRecorder) RecordBroadcastDrop()                         {}
func (r *fakeRecorder) RecordConnectionState(model.ConnectionState)  {}
func (r *fakeRecorder) RecordHTTPRequest(string, int, time.Duration) {}
