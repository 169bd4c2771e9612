package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	apperrors "github.com/chaos-ops/display-server-go/internal/errors"
	"github.com/chaos-ops/display-server-go/internal/model"
)

func newDisplayService(deviceRepo *mockDeviceRepo, dayPlanRepo *mockDayPlanRepo) *DisplayService {
	pairing := NewPairingService(deviceRepo, NoopNotifier{})
	return NewDisplayService(deviceRepo, dayPlanRepo, pairing)
}

func TestDisplayInit(t *testing.T) {
	ctx := context.Background()

	t.Run("creates an unpaired device with a fresh code", func(t *testing.T) {
		repo := new(mockDeviceRepo)
		repo.On("CodeInUse", ctx, mock.AnythingOfType("string")).Return(false, nil)
		repo.On("Create", ctx, mock.MatchedBy(func(p model.CreateDeviceParams) bool {
			return p.ID != "" && len(p.PairingCode) == 6
		})).Return(unpairedDevice("d1", "123456"), nil)

		svc := newDisplayService(repo, new(mockDayPlanRepo))
		res, err := svc.Init(ctx)
		require.NoError(t, err)

		assert.Equal(t, "d1", res.DeviceID)
		assert.Len(t, res.Code, 6)
		repo.AssertExpectations(t)
	})
}

func TestDisplayStatus(t *testing.T) {
	ctx := context.Background()

	t.Run("unpaired device exposes its pairing code", func(t *testing.T) {
		repo := new(mockDeviceRepo)
		repo.On("FindByID", ctx, "d1").Return(unpairedDevice("d1", "654321"), nil)

		svc := newDisplayService(repo, new(mockDayPlanRepo))
		res, err := svc.Status(ctx, "d1")
		require.NoError(t, err)

		assert.False(t, res.IsPaired)
		assert.Equal(t, model.DeviceStatusUnpaired, res.Status)
		require.NotNil(t, res.PairingCode)
		assert.Equal(t, "654321", *res.PairingCode)
		assert.Nil(t, res.OrganisationID)
		assert.Nil(t, res.DayPlan)
	})

	t.Run("paired device with a plan embeds the full plan", func(t *testing.T) {
		repo := new(mockDeviceRepo)
		plans := new(mockDayPlanRepo)

		device := pairedDevice("d1", "org1")
		device.CurrentDayPlanID = strPtr("plan1")
		plan := &model.DayPlan{
			ID:             "plan1",
			OrganisationID: "org1",
			Title:          "Sports Day",
			Date:           time.Date(2026, 6, 12, 0, 0, 0, 0, time.UTC),
			Items: []model.ScheduleItem{
				{ID: "i1", DayPlanID: "plan1", Title: "Opening", StartTime: time.Date(2026, 6, 12, 9, 0, 0, 0, time.UTC)},
			},
		}

		repo.On("FindByID", ctx, "d1").Return(device, nil)
		plans.On("FindByID", ctx, "plan1").Return(plan, nil)

		svc := newDisplayService(repo, plans)
		res, err := svc.Status(ctx, "d1")
		require.NoError(t, err)

		assert.True(t, res.IsPaired)
		require.NotNil(t, res.DayPlan)
		assert.Equal(t, "Sports Day", res.DayPlan.Title)
		assert.Len(t, res.DayPlan.Items, 1)
	})

	t.Run("deleted plan degrades to no plan", func(t *testing.T) {
		repo := new(mockDeviceRepo)
		plans := new(mockDayPlanRepo)

		device := pairedDevice("d1", "org1")
		device.CurrentDayPlanID = strPtr("gone")

		repo.On("FindByID", ctx, "d1").Return(device, nil)
		plans.On("FindByID", ctx, "gone").Return(nil, nil)

		svc := newDisplayService(repo, plans)
		res, err := svc.Status(ctx, "d1")
		require.NoError(t, err)
		assert.True(t, res.IsPaired)
		assert.Nil(t, res.DayPlan)
	})

	t.Run("unknown device is a not found error", func(t *testing.T) {
		repo := new(mockDeviceRepo)
		repo.On("FindByID", ctx, "ghost").Return(nil, nil)

		svc := newDisplayService(repo, new(mockDayPlanRepo))
		_, err := svc.Status(ctx, "ghost")
		require.Error(t, err)
		assert.Equal(t, apperrors.ErrCodeNotFound, apperrors.GetCode(err))
	})

	t.Run("polling is read only", func(t *testing.T) {
		repo := new(mockDeviceRepo)
		repo.On("FindByID", ctx, "d1").Return(unpairedDevice("d1", "654321"), nil)

		svc := newDisplayService(repo, new(mockDayPlanRepo))
		first, err := svc.Status(ctx, "d1")
		require.NoError(t, err)
		second, err := svc.Status(ctx, "d1")
		require.NoError(t, err)

		assert.Equal(t, first, second)
		repo.AssertNotCalled(t, "AssignDayPlan", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		repo.AssertNotCalled(t, "ResetPairing", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestDisplayDisconnectReset(t *testing.T) {
	ctx := context.Background()

	t.Run("disconnect returns the device to unpaired with a fresh code", func(t *testing.T) {
		repo := new(mockDeviceRepo)
		repo.On("CodeInUse", ctx, mock.AnythingOfType("string")).Return(false, nil)
		repo.On("ResetPairing", ctx, "d1", mock.AnythingOfType("string")).
			Return(unpairedDevice("d1", "777777"), nil)

		svc := newDisplayService(repo, new(mockDayPlanRepo))
		device, err := svc.Disconnect(ctx, "d1")
		require.NoError(t, err)

		assert.Equal(t, model.DeviceStatusUnpaired, device.Status)
		assert.Nil(t, device.OrganisationID)
		assert.Nil(t, device.CurrentDayPlanID)
		repo.AssertExpectations(t)
	})

	t.Run("reset hands back the identity pair", func(t *testing.T) {
		repo := new(mockDeviceRepo)
		repo.On("CodeInUse", ctx, mock.AnythingOfType("string")).Return(false, nil)
		repo.On("ResetPairing", ctx, "d1", mock.AnythingOfType("string")).
			Return(unpairedDevice("d1", "777777"), nil)

		svc := newDisplayService(repo, new(mockDayPlanRepo))
		res, err := svc.Reset(ctx, "d1")
		require.NoError(t, err)
		assert.Equal(t, "d1", res.DeviceID)
		assert.Equal(t, "777777", res.Code)
	})

	t.Run("disconnecting an unknown device is a not found error", func(t *testing.T) {
		repo := new(mockDeviceRepo)
		repo.On("CodeInUse", ctx, mock.AnythingOfType("string")).Return(false, nil)
		repo.On("ResetPairing", ctx, "ghost", mock.AnythingOfType("string")).Return(nil, nil)

		svc := newDisplayService(repo, new(mockDayPlanRepo))
		_, err := svc.Disconnect(ctx, "ghost")
		require.Error(t, err)
		assert.Equal(t, apperrors.ErrCodeNotFound, apperrors.GetCode(err))
	})
}

func TestListByOrganisation(t *testing.T) {
	ctx := context.Background()

	t.Run("returns the organisation's devices", func(t *testing.T) {
		repo := new(mockDeviceRepo)
		repo.On("FindByOrganisationID", ctx, "org1").
			Return([]model.Device{*pairedDevice("d1", "org1"), *pairedDevice("d2", "org1")}, nil)

		svc := newDisplayService(repo, new(mockDayPlanRepo))
		devices, err := svc.ListByOrganisation(ctx, "org1")
		require.NoError(t, err)
		assert.Len(t, devices, 2)
	})

	t.Run("requires an organisation id", func(t *testing.T) {
		svc := newDisplayService(new(mockDeviceRepo), new(mockDayPlanRepo))
		_, err := svc.ListByOrganisation(ctx, "")
		require.Error(t, err)
		assert.Equal(t, apperrors.ErrCodeMissingRequired, apperrors.GetCode(err))
	})
}
