package service

import (
	"context"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	apperrors "github.com/chaos-ops/display-server-go/internal/errors"
	"github.com/chaos-ops/display-server-go/internal/model"
)

// Mock repositories
type mockDeviceRepo struct {
	mock.Mock
}

func (m *mockDeviceRepo) FindByID(ctx context.Context, id string) (*model.Device, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Device), args.Error(1)
}

func (m *mockDeviceRepo) FindByPairingCode(ctx context.Context, code string) (*model.Device, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Device), args.Error(1)
}

func (m *mockDeviceRepo) FindByOrganisationID(ctx context.Context, organisationID string) ([]model.Device, error) {
	args := m.Called(ctx, organisationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Device), args.Error(1)
}

func (m *mockDeviceRepo) Create(ctx context.Context, params model.CreateDeviceParams) (*model.Device, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Device), args.Error(1)
}

func (m *mockDeviceRepo) Claim(ctx context.Context, code string, organisationID string, name *string) (*model.Device, error) {
	args := m.Called(ctx, code, organisationID, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Device), args.Error(1)
}

func (m *mockDeviceRepo) AssignDayPlan(ctx context.Context, deviceID string, organisationID string, dayPlanID string) (*model.Device, error) {
	args := m.Called(ctx, deviceID, organisationID, dayPlanID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Device), args.Error(1)
}

func (m *mockDeviceRepo) ClearDayPlan(ctx context.Context, deviceID string) (*model.Device, error) {
	args := m.Called(ctx, deviceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Device), args.Error(1)
}

func (m *mockDeviceRepo) ResetPairing(ctx context.Context, deviceID string, freshCode string) (*model.Device, error) {
	args := m.Called(ctx, deviceID, freshCode)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Device), args.Error(1)
}

func (m *mockDeviceRepo) CodeInUse(ctx context.Context, code string) (bool, error) {
	args := m.Called(ctx, code)
	return args.Bool(0), args.Error(1)
}

func (m *mockDeviceRepo) DeleteStaleUnpaired(ctx context.Context, before time.Time) (int64, error) {
	args := m.Called(ctx, before)
	return args.Get(0).(int64), args.Error(1)
}

type mockDayPlanRepo struct {
	mock.Mock
}

func (m *mockDayPlanRepo) FindByID(ctx context.Context, id string) (*model.DayPlan, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.DayPlan), args.Error(1)
}

// recordingNotifier captures push events so tests can assert on them.
type recordingNotifier struct {
	mu         sync.Mutex
	pairedFor  []string
	planForIDs []string
}

func (n *recordingNotifier) NotifyPaired(_ context.Context, deviceID string, _ PairedEvent) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.pairedFor = append(n.pairedFor, deviceID)
}

func (n *recordingNotifier) NotifyPlan(_ context.Context, deviceID string, _ *model.DayPlan) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.planForIDs = append(n.planForIDs, deviceID)
}

func strPtr(s string) *string { return &s }

func pairedDevice(id, orgID string) *model.Device {
	now := time.Now()
	return &model.Device{
		ID:             id,
		Status:         model.DeviceStatusPaired,
		OrganisationID: &orgID,
		CreatedAt:      now,
		PairedAt:       &now,
	}
}

func unpairedDevice(id, code string) *model.Device {
	return &model.Device{
		ID:          id,
		PairingCode: &code,
		Status:      model.DeviceStatusUnpaired,
		CreatedAt:   time.Now(),
	}
}

func TestGeneratePairingCode(t *testing.T) {
	t.Run("generates six decimal digits", func(t *testing.T) {
		pattern := regexp.MustCompile(`^[0-9]{6}$`)
		for i := 0; i < 100; i++ {
			code := generatePairingCode()
			assert.True(t, pattern.MatchString(code), "code should be six digits, got: %s", code)
		}
	})

	t.Run("covers the code space", func(t *testing.T) {
		codes := make(map[string]bool)
		for i := 0; i < 500; i++ {
			codes[generatePairingCode()] = true
		}
		// 500 draws from a million-slot space should hardly collide.
		assert.Greater(t, len(codes), 490)
	})
}

func TestMintCode(t *testing.T) {
	ctx := context.Background()

	t.Run("returns first free code", func(t *testing.T) {
		repo := new(mockDeviceRepo)
		repo.On("CodeInUse", ctx, mock.AnythingOfType("string")).Return(false, nil).Once()

		svc := NewPairingService(repo, NoopNotifier{})
		code, err := svc.MintCode(ctx)
		require.NoError(t, err)
		assert.Len(t, code, 6)
		repo.AssertExpectations(t)
	})

	t.Run("retries on collision", func(t *testing.T) {
		repo := new(mockDeviceRepo)
		repo.On("CodeInUse", ctx, mock.AnythingOfType("string")).Return(true, nil).Twice()
		repo.On("CodeInUse", ctx, mock.AnythingOfType("string")).Return(false, nil).Once()

		svc := NewPairingService(repo, NoopNotifier{})
		code, err := svc.MintCode(ctx)
		require.NoError(t, err)
		assert.Len(t, code, 6)
		repo.AssertNumberOfCalls(t, "CodeInUse", 3)
	})

	t.Run("gives up after bounded retries", func(t *testing.T) {
		repo := new(mockDeviceRepo)
		repo.On("CodeInUse", ctx, mock.AnythingOfType("string")).Return(true, nil)

		svc := NewPairingService(repo, NoopNotifier{})
		_, err := svc.MintCode(ctx)
		require.Error(t, err)
		assert.Equal(t, apperrors.ErrCodeCodeSpaceExhausted, apperrors.GetCode(err))
	})
}

func TestRegister(t *testing.T) {
	ctx := context.Background()

	t.Run("claims a pending code", func(t *testing.T) {
		repo := new(mockDeviceRepo)
		notifier := &recordingNotifier{}

		pending := unpairedDevice("d1", "331539")
		claimed := pairedDevice("d1", "org1")
		claimed.Name = strPtr("Foyer")

		repo.On("FindByPairingCode", ctx, "331539").Return(pending, nil)
		repo.On("Claim", ctx, "331539", "org1", strPtr("Foyer")).Return(claimed, nil)

		svc := NewPairingService(repo, notifier)
		device, err := svc.Register(ctx, "331539", "org1", strPtr("Foyer"))
		require.NoError(t, err)

		assert.Equal(t, "d1", device.ID)
		assert.Equal(t, model.DeviceStatusPaired, device.Status)
		assert.Nil(t, device.PairingCode)
		assert.Equal(t, []string{"d1"}, notifier.pairedFor)
		repo.AssertExpectations(t)
	})

	t.Run("trims surrounding whitespace from the code", func(t *testing.T) {
		repo := new(mockDeviceRepo)

		pending := unpairedDevice("d1", "331539")
		repo.On("FindByPairingCode", ctx, "331539").Return(pending, nil)
		repo.On("Claim", ctx, "331539", "org1", (*string)(nil)).Return(pairedDevice("d1", "org1"), nil)

		svc := NewPairingService(repo, NoopNotifier{})
		_, err := svc.Register(ctx, "  331539 ", "org1", nil)
		require.NoError(t, err)
		repo.AssertExpectations(t)
	})

	t.Run("rejects missing pairing code", func(t *testing.T) {
		svc := NewPairingService(new(mockDeviceRepo), NoopNotifier{})
		_, err := svc.Register(ctx, "  ", "org1", nil)
		require.Error(t, err)
		assert.Equal(t, apperrors.ErrCodeMissingRequired, apperrors.GetCode(err))
	})

	t.Run("rejects missing organisation id", func(t *testing.T) {
		svc := NewPairingService(new(mockDeviceRepo), NoopNotifier{})
		_, err := svc.Register(ctx, "331539", "", nil)
		require.Error(t, err)
		assert.Equal(t, apperrors.ErrCodeMissingRequired, apperrors.GetCode(err))
	})

	t.Run("unknown code fails with no mutation", func(t *testing.T) {
		repo := new(mockDeviceRepo)
		notifier := &recordingNotifier{}
		repo.On("FindByPairingCode", ctx, "000000").Return(nil, nil)

		svc := NewPairingService(repo, notifier)
		_, err := svc.Register(ctx, "000000", "org1", nil)
		require.Error(t, err)
		assert.Equal(t, apperrors.ErrCodeInvalidPairingCode, apperrors.GetCode(err))
		assert.Empty(t, notifier.pairedFor)
		repo.AssertNotCalled(t, "Claim", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("losing a concurrent claim yields conflict", func(t *testing.T) {
		repo := new(mockDeviceRepo)

		pending := unpairedDevice("d1", "331539")
		repo.On("FindByPairingCode", ctx, "331539").Return(pending, nil)
		// The winning claim cleared the code between lookup and update.
		repo.On("Claim", ctx, "331539", "org2", (*string)(nil)).Return(nil, nil)

		svc := NewPairingService(repo, NoopNotifier{})
		_, err := svc.Register(ctx, "331539", "org2", nil)
		require.Error(t, err)
		assert.Equal(t, apperrors.ErrCodeAlreadyPaired, apperrors.GetCode(err))
	})
}
