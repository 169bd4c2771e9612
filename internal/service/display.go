package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	apperrors "github.com/chaos-ops/display-server-go/internal/errors"
	"github.com/chaos-ops/display-server-go/internal/model"
	"github.com/chaos-ops/display-server-go/internal/repository"
)

// InitResult is what a freshly booted kiosk persists locally: its stable
// device id and the code an operator will type into the admin UI.
type InitResult struct {
	DeviceID string `json:"deviceId"`
	Code     string `json:"code"`
}

// StatusResult is the denormalized snapshot a display polls on a fixed
// interval. The full day-plan payload is embedded so the kiosk never needs
// a second round trip to render.
type StatusResult struct {
	Status         model.DeviceStatus `json:"status"`
	IsPaired       bool               `json:"isPaired"`
	PairingCode    *string            `json:"pairingCode,omitempty"`
	OrganisationID *string            `json:"organisationId"`
	DeviceName     *string            `json:"deviceName"`
	DayPlan        *model.DayPlan     `json:"dayPlan"`
}

// DisplayService covers the device-facing operations: boot-time
// initialization, the status poll, and the operator-triggered
// disconnect/reset that return a display to the unpaired state.
type DisplayService struct {
	deviceRepo  repository.DeviceRepository
	dayPlanRepo repository.DayPlanRepository
	pairing     *PairingService
}

func NewDisplayService(
	deviceRepo repository.DeviceRepository,
	dayPlanRepo repository.DayPlanRepository,
	pairing *PairingService,
) *DisplayService {
	return &DisplayService{
		deviceRepo:  deviceRepo,
		dayPlanRepo: dayPlanRepo,
		pairing:     pairing,
	}
}

func (s *DisplayService) Init(ctx context.Context) (*InitResult, error) {
	code, err := s.pairing.MintCode(ctx)
	if err != nil {
		return nil, err
	}

	device, err := s.deviceRepo.Create(ctx, model.CreateDeviceParams{
		ID:          uuid.NewString(),
		PairingCode: code,
	})
	if err != nil {
		return nil, apperrors.Database(err)
	}

	log.Info().
		Str("deviceId", device.ID).
		Str("code", code).
		Msg("display initialized")

	return &InitResult{DeviceID: device.ID, Code: code}, nil
}

// Status is a pure read: polling any number of times without an intervening
// mutation returns identical snapshots.
func (s *DisplayService) Status(ctx context.Context, deviceID string) (*StatusResult, error) {
	device, err := s.deviceRepo.FindByID(ctx, deviceID)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if device == nil {
		return nil, apperrors.NotFound("Device")
	}

	result := &StatusResult{
		Status:         device.Status,
		IsPaired:       device.IsPaired(),
		PairingCode:    device.PairingCode,
		OrganisationID: device.OrganisationID,
		DeviceName:     device.Name,
	}

	if device.CurrentDayPlanID != nil {
		plan, err := s.dayPlanRepo.FindByID(ctx, *device.CurrentDayPlanID)
		if err != nil {
			return nil, apperrors.Database(err)
		}
		if plan == nil {
			// The plan was deleted out from under the assignment; the
			// display falls back to its waiting screen.
			log.Warn().
				Str("deviceId", deviceID).
				Str("dayPlanId", *device.CurrentDayPlanID).
				Msg("assigned day plan no longer exists")
		}
		result.DayPlan = plan
	}

	return result, nil
}

// Disconnect unbinds the display from its organisation and hands it a fresh
// pairing code.
func (s *DisplayService) Disconnect(ctx context.Context, deviceID string) (*model.Device, error) {
	device, err := s.unpair(ctx, deviceID)
	if err != nil {
		return nil, err
	}

	log.Info().Str("deviceId", deviceID).Msg("display disconnected")
	return device, nil
}

// Reset has the same server-side effect as Disconnect; it additionally
// returns the fresh identity pair for the kiosk to persist.
func (s *DisplayService) Reset(ctx context.Context, deviceID string) (*InitResult, error) {
	device, err := s.unpair(ctx, deviceID)
	if err != nil {
		return nil, err
	}

	log.Info().Str("deviceId", deviceID).Msg("display reset")
	return &InitResult{DeviceID: device.ID, Code: *device.PairingCode}, nil
}

func (s *DisplayService) unpair(ctx context.Context, deviceID string) (*model.Device, error) {
	if deviceID == "" {
		return nil, apperrors.MissingRequired("deviceId")
	}

	code, err := s.pairing.MintCode(ctx)
	if err != nil {
		return nil, err
	}

	device, err := s.deviceRepo.ResetPairing(ctx, deviceID, code)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if device == nil {
		return nil, apperrors.NotFound("Device")
	}

	return device, nil
}

// ListByOrganisation backs the admin dashboard's device overview.
func (s *DisplayService) ListByOrganisation(ctx context.Context, organisationID string) ([]model.Device, error) {
	if organisationID == "" {
		return nil, apperrors.MissingRequired("organisationId")
	}

	devices, err := s.deviceRepo.FindByOrganisationID(ctx, organisationID)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	return devices, nil
}
