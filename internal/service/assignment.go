package service

import (
	"context"
	"strings"

	"github.com/rs/zerolog/log"

	apperrors "github.com/chaos-ops/display-server-go/internal/errors"
	"github.com/chaos-ops/display-server-go/internal/model"
	"github.com/chaos-ops/display-server-go/internal/repository"
)

// AssignmentService lets an admin point a paired display at a day plan.
// Assignment is an idempotent overwrite; no history is kept.
type AssignmentService struct {
	deviceRepo  repository.DeviceRepository
	dayPlanRepo repository.DayPlanRepository
	notifier    Notifier
}

func NewAssignmentService(
	deviceRepo repository.DeviceRepository,
	dayPlanRepo repository.DayPlanRepository,
	notifier Notifier,
) *AssignmentService {
	return &AssignmentService{
		deviceRepo:  deviceRepo,
		dayPlanRepo: dayPlanRepo,
		notifier:    notifier,
	}
}

// AssignDayPlan sets the plan a display should show. The plan must belong
// to the display's organisation.
func (s *AssignmentService) AssignDayPlan(ctx context.Context, deviceID string, dayPlanID string) (*model.Device, error) {
	if strings.TrimSpace(deviceID) == "" {
		return nil, apperrors.MissingRequired("deviceId")
	}
	if strings.TrimSpace(dayPlanID) == "" {
		return nil, apperrors.MissingRequired("dayPlanId")
	}

	device, err := s.deviceRepo.FindByID(ctx, deviceID)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if device == nil {
		return nil, apperrors.NotFound("Device")
	}
	if !device.IsPaired() {
		return nil, apperrors.NotPaired()
	}

	plan, err := s.dayPlanRepo.FindByID(ctx, dayPlanID)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if plan == nil {
		return nil, apperrors.InvalidReference("Day plan does not exist")
	}
	if plan.OrganisationID != *device.OrganisationID {
		return nil, apperrors.InvalidReference("Day plan belongs to a different organisation")
	}

	// The UPDATE re-checks pairing and ownership, so a disconnect that
	// lands between the reads above and this write loses the plan race
	// instead of leaving an assignment on an unpaired device.
	updated, err := s.deviceRepo.AssignDayPlan(ctx, deviceID, plan.OrganisationID, dayPlanID)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if updated == nil {
		return nil, apperrors.NotPaired()
	}

	log.Info().
		Str("deviceId", deviceID).
		Str("dayPlanId", dayPlanID).
		Msg("day plan assigned")

	s.notifier.NotifyPlan(ctx, deviceID, plan)

	return updated, nil
}

// ClearDayPlan removes the assignment, returning the display to its
// waiting screen.
func (s *AssignmentService) ClearDayPlan(ctx context.Context, deviceID string) (*model.Device, error) {
	if strings.TrimSpace(deviceID) == "" {
		return nil, apperrors.MissingRequired("deviceId")
	}

	updated, err := s.deviceRepo.ClearDayPlan(ctx, deviceID)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if updated == nil {
		return nil, apperrors.NotFound("Device")
	}

	log.Info().Str("deviceId", deviceID).Msg("day plan cleared")

	s.notifier.NotifyPlan(ctx, deviceID, nil)

	return updated, nil
}
