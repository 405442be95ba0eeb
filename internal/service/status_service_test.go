package service

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/glebk/status-board/internal/domain"
	"github.com/glebk/status-board/internal/feed"
	"github.com/glebk/status-board/internal/repository/sqlite"
)

const testPassword = "secret"

// recordingPublisher keeps every published event
type recordingPublisher struct {
	mu     sync.Mutex
	events []feed.Event
}

func (p *recordingPublisher) Publish(ctx context.Context, event feed.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) kinds() []feed.Kind {
	p.mu.Lock()
	defer p.mu.Unlock()
	kinds := make([]feed.Kind, 0, len(p.events))
	for _, e := range p.events {
		kinds = append(kinds, e.Kind)
	}
	return kinds
}

// MockStatusRepository
type MockStatusRepository struct {
	mock.Mock
}

func (m *MockStatusRepository) Register(ctx context.Context, name string) (bool, error) {
	args := m.Called(ctx, name)
	return args.Bool(0), args.Error(1)
}

func (m *MockStatusRepository) UpdateStatus(ctx context.Context, name string, status domain.Status) (bool, error) {
	args := m.Called(ctx, name, status)
	return args.Bool(0), args.Error(1)
}

func (m *MockStatusRepository) ClearAll(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockStatusRepository) GetByName(ctx context.Context, name string) (*domain.StatusRecord, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.StatusRecord), args.Error(1)
}

func (m *MockStatusRepository) GetAll(ctx context.Context) ([]*domain.StatusRecord, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.StatusRecord), args.Error(1)
}

func newTestService(t *testing.T) (*StatusService, *sqlite.StatusRepository, *recordingPublisher) {
	t.Helper()

	db, err := sqlite.New(filepath.Join(t.TempDir(), "status.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	repo := sqlite.NewStatusRepository(db)
	pub := &recordingPublisher{}
	svc := NewStatusService(repo, pub, Credentials{SharedPassword: testPassword, AdminName: "Boss"})
	return svc, repo, pub
}

func session(name, password string) domain.Session {
	return domain.Session{Name: name, Password: password}
}

func TestStatusService_Scenario(t *testing.T) {
	svc, _, pub := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.Register(ctx, session("Sarah", testPassword)))

	board, err := svc.Board(ctx)
	require.NoError(t, err)
	require.Len(t, board, 1)
	assert.Equal(t, "Sarah", board[0].Name)
	assert.Equal(t, domain.StatusUnknown, board[0].Status)

	require.NoError(t, svc.UpdateStatus(ctx, session("Sarah", testPassword), domain.StatusHome))

	board, err = svc.Board(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusHome, board[0].Status)

	err = svc.UpdateStatus(ctx, session("Sarah", "wrong"), domain.StatusSlotA)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	board, err = svc.Board(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusHome, board[0].Status)

	assert.Equal(t, []feed.Kind{feed.KindInsert, feed.KindUpdate}, pub.kinds())
}

func TestStatusService_RegisterIsInsertOnly(t *testing.T) {
	svc, repo, pub := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.Register(ctx, session("  Sarah  ", testPassword)))
	require.NoError(t, svc.UpdateStatus(ctx, session("Sarah", testPassword), domain.StatusSlotB))
	require.NoError(t, svc.Register(ctx, session("Sarah", testPassword)))

	record, err := repo.GetByName(ctx, "Sarah")
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, domain.StatusSlotB, record.Status)

	// The second register was a no-op and must not notify viewers.
	assert.Equal(t, []feed.Kind{feed.KindInsert, feed.KindUpdate}, pub.kinds())
}

func TestStatusService_Validation(t *testing.T) {
	svc, repo, pub := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.Register(ctx, session("Sarah", testPassword)))

	t.Run("empty name on register", func(t *testing.T) {
		err := svc.Register(ctx, session("   ", testPassword))
		assert.ErrorIs(t, err, domain.ErrValidation)
	})

	for _, status := range []domain.Status{"", domain.StatusUnknown, "5", "home", "Office"} {
		t.Run("status "+string(status), func(t *testing.T) {
			err := svc.UpdateStatus(ctx, session("Sarah", testPassword), status)
			assert.ErrorIs(t, err, domain.ErrValidation)

			record, err := repo.GetByName(ctx, "Sarah")
			require.NoError(t, err)
			assert.Equal(t, domain.StatusUnknown, record.Status)
		})
	}

	t.Run("empty name on update", func(t *testing.T) {
		err := svc.UpdateStatus(ctx, session("", testPassword), domain.StatusHome)
		assert.ErrorIs(t, err, domain.ErrValidation)
	})

	assert.Equal(t, []feed.Kind{feed.KindInsert}, pub.kinds())
}

func TestStatusService_WrongPasswordAlwaysUnauthorized(t *testing.T) {
	svc, _, pub := newTestService(t)
	ctx := context.Background()

	for _, password := range []string{"", "wrong", "secret ", "SECRET"} {
		for _, name := range []string{"", "Sarah", "Boss"} {
			assert.ErrorIs(t, svc.Register(ctx, session(name, password)), domain.ErrUnauthorized)
			assert.ErrorIs(t, svc.UpdateStatus(ctx, session(name, password), "bogus"), domain.ErrUnauthorized)
			assert.ErrorIs(t, svc.UpdateStatus(ctx, session(name, password), domain.StatusHome), domain.ErrUnauthorized)
			assert.ErrorIs(t, svc.ClearAll(ctx, session(name, password)), domain.ErrUnauthorized)
		}
	}

	board, err := svc.Board(ctx)
	require.NoError(t, err)
	assert.Empty(t, board)
	assert.Empty(t, pub.kinds())
}

func TestStatusService_ClearAll(t *testing.T) {
	svc, _, pub := newTestService(t)
	ctx := context.Background()

	for _, name := range []string{"Sarah", "Boss"} {
		require.NoError(t, svc.Register(ctx, session(name, testPassword)))
	}

	assert.ErrorIs(t, svc.ClearAll(ctx, session("Sarah", testPassword)), domain.ErrUnauthorized)
	assert.ErrorIs(t, svc.ClearAll(ctx, session("Boss", "wrong")), domain.ErrUnauthorized)
	assert.ErrorIs(t, svc.ClearAll(ctx, session("boss", testPassword)), domain.ErrUnauthorized)

	board, err := svc.Board(ctx)
	require.NoError(t, err)
	assert.Len(t, board, 2)

	assert.False(t, svc.IsAdmin(session("Sarah", testPassword)))
	assert.True(t, svc.IsAdmin(session("Boss", testPassword)))

	require.NoError(t, svc.ClearAll(ctx, session("Boss", testPassword)))

	board, err = svc.Board(ctx)
	require.NoError(t, err)
	assert.Empty(t, board)

	// Clearing an empty board is a no-op for viewers.
	require.NoError(t, svc.ClearAll(ctx, session("Boss", testPassword)))
	assert.Equal(t, []feed.Kind{feed.KindInsert, feed.KindInsert, feed.KindDelete}, pub.kinds())
}

func TestStatusService_ClearAllDisabledWithoutAdmin(t *testing.T) {
	repo := new(MockStatusRepository)
	svc := NewStatusService(repo, nil, Credentials{SharedPassword: testPassword})

	err := svc.ClearAll(context.Background(), session("", testPassword))
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
	repo.AssertNotCalled(t, "ClearAll", mock.Anything)
}

func TestStatusService_StoreErrors(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("disk full")

	repo := new(MockStatusRepository)
	repo.On("Register", mock.Anything, "Sarah").Return(false, boom)
	repo.On("UpdateStatus", mock.Anything, "Sarah", domain.StatusHome).Return(false, boom)
	repo.On("ClearAll", mock.Anything).Return(int64(0), boom)
	repo.On("GetAll", mock.Anything).Return(nil, boom)

	pub := &recordingPublisher{}
	svc := NewStatusService(repo, pub, Credentials{SharedPassword: testPassword, AdminName: "Sarah"})

	err := svc.Register(ctx, session("Sarah", testPassword))
	assert.ErrorIs(t, err, domain.ErrStore)
	assert.ErrorIs(t, err, boom)

	assert.ErrorIs(t, svc.UpdateStatus(ctx, session("Sarah", testPassword), domain.StatusHome), domain.ErrStore)
	assert.ErrorIs(t, svc.ClearAll(ctx, session("Sarah", testPassword)), domain.ErrStore)

	_, err = svc.Board(ctx)
	assert.ErrorIs(t, err, domain.ErrStore)

	assert.Empty(t, pub.kinds())
	repo.AssertExpectations(t)
}

func TestStatusService_UpdateUnregisteredIsSilent(t *testing.T) {
	svc, repo, pub := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.UpdateStatus(ctx, session("Ghost", testPassword), domain.StatusHome))

	record, err := repo.GetByName(ctx, "Ghost")
	require.NoError(t, err)
	assert.Nil(t, record)
	assert.Empty(t, pub.kinds())
}
