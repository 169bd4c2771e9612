package service

import (
	"context"
	"crypto/rand"
	"math/big"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/chaos-ops/display-server-go/internal/config"
	apperrors "github.com/chaos-ops/display-server-go/internal/errors"
	"github.com/chaos-ops/display-server-go/internal/model"
	"github.com/chaos-ops/display-server-go/internal/repository"
)

const pairingCodeDigits = "0123456789"

// PairingService owns the pairing-code lifecycle: minting codes for
// unclaimed displays and claiming a code on behalf of an organisation admin.
type PairingService struct {
	deviceRepo repository.DeviceRepository
	notifier   Notifier
}

func NewPairingService(deviceRepo repository.DeviceRepository, notifier Notifier) *PairingService {
	return &PairingService{
		deviceRepo: deviceRepo,
		notifier:   notifier,
	}
}

// MintCode produces a pairing code that no currently unclaimed device
// holds. The code space (10^6) dwarfs the expected number of concurrently
// pending displays, so collisions are retried a bounded number of times and
// then treated as an internal fault.
func (s *PairingService) MintCode(ctx context.Context) (string, error) {
	for attempts := 0; attempts < config.PairingCodeMaxAttempts; attempts++ {
		code := generatePairingCode()

		inUse, err := s.deviceRepo.CodeInUse(ctx, code)
		if err != nil {
			return "", apperrors.Database(err)
		}
		if !inUse {
			return code, nil
		}
	}

	log.Error().Int("attempts", config.PairingCodeMaxAttempts).Msg("pairing code space exhausted")
	return "", apperrors.CodeSpaceExhausted()
}

// Register claims a pending code, binding its device to an organisation.
// Concurrent claims on the same code are serialized by the conditional
// claim update: exactly one caller wins, the rest see Conflict.
func (s *PairingService) Register(ctx context.Context, code string, organisationID string, name *string) (*model.Device, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, apperrors.MissingRequired("pairingCode")
	}
	if strings.TrimSpace(organisationID) == "" {
		return nil, apperrors.MissingRequired("organisationId")
	}

	pending, err := s.deviceRepo.FindByPairingCode(ctx, code)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if pending == nil {
		log.Warn().Str("code", code).Msg("register: unknown pairing code")
		return nil, apperrors.InvalidPairingCode()
	}

	device, err := s.deviceRepo.Claim(ctx, code, organisationID, name)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if device == nil {
		// A concurrent claim won between lookup and update.
		log.Warn().Str("code", code).Str("deviceId", pending.ID).Msg("register: code claimed concurrently")
		return nil, apperrors.AlreadyPaired()
	}

	log.Info().
		Str("deviceId", device.ID).
		Str("organisationId", organisationID).
		Msg("device paired")

	s.notifier.NotifyPaired(ctx, device.ID, PairedEvent{
		OrganisationID: organisationID,
		DeviceName:     name,
	})

	return device, nil
}

func generatePairingCode() string {
	digits := make([]byte, config.PairingCodeLength)
	for i := range digits {
		n, _ := rand.Int(rand.Reader, big.NewInt(int64(len(pairingCodeDigits))))
		digits[i] = pairingCodeDigits[n.Int64()]
	}
	return string(digits)
}
