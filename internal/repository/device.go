package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/chaos-ops/display-server-go/internal/model"
)

type DeviceRepository interface {
	FindByID(ctx context.Context, id string) (*model.Device, error)
	FindByPairingCode(ctx context.Context, code string) (*model.Device, error)
	FindByOrganisationID(ctx context.Context, organisationID string) ([]model.Device, error)
	Create(ctx context.Context, params model.CreateDeviceParams) (*model.Device, error)
	// Claim atomically binds the device holding code to an organisation.
	// Exactly one of any set of concurrent claims on the same code
	// succeeds; losers observe a nil device.
	Claim(ctx context.Context, code string, organisationID string, name *string) (*model.Device, error)
	// AssignDayPlan sets the plan on a device that is still PAIRED to the
	// given organisation. A concurrent disconnect or re-pair makes the
	// guard fail; callers observe a nil device, never a plan dangling on
	// an unpaired row.
	AssignDayPlan(ctx context.Context, deviceID string, organisationID string, dayPlanID string) (*model.Device, error)
	ClearDayPlan(ctx context.Context, deviceID string) (*model.Device, error)
	// ResetPairing returns the device to UNPAIRED with a fresh code,
	// clearing organisation, name and plan in the same statement.
	ResetPairing(ctx context.Context, deviceID string, freshCode string) (*model.Device, error)
	CodeInUse(ctx context.Context, code string) (bool, error)
	DeleteStaleUnpaired(ctx context.Context, before time.Time) (int64, error)
}

// deviceDB is an interface satisfied by both *sqlx.DB and *sqlx.Tx
type deviceDB interface {
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

type deviceRepo struct {
	db deviceDB
}

func NewDeviceRepository(db *sqlx.DB) DeviceRepository {
	return &deviceRepo{db: db}
}

func (r *deviceRepo) FindByID(ctx context.Context, id string) (*model.Device, error) {
	var device model.Device
	err := r.db.GetContext(ctx, &device, `
		SELECT * FROM devices WHERE id = $1
	`, id)
	return HandleNotFound(&device, err)
}

func (r *deviceRepo) FindByPairingCode(ctx context.Context, code string) (*model.Device, error) {
	var device model.Device
	err := r.db.GetContext(ctx, &device, `
		SELECT * FROM devices
		WHERE pairing_code = $1 AND status = 'UNPAIRED'
	`, code)
	return HandleNotFound(&device, err)
}

func (r *deviceRepo) FindByOrganisationID(ctx context.Context, organisationID string) ([]model.Device, error) {
	var devices []model.Device
	err := r.db.SelectContext(ctx, &devices, `
		SELECT * FROM devices
		WHERE organisation_id = $1
		ORDER BY paired_at DESC
	`, organisationID)
	return devices, err
}

func (r *deviceRepo) Create(ctx context.Context, params model.CreateDeviceParams) (*model.Device, error) {
	var device model.Device
	err := r.db.GetContext(ctx, &device, `
		INSERT INTO devices (id, pairing_code, status, unpaired_at)
		VALUES ($1, $2, 'UNPAIRED', NOW())
		RETURNING *
	`, params.ID, params.PairingCode)
	if err != nil {
		return nil, err
	}
	return &device, nil
}

func (r *deviceRepo) Claim(ctx context.Context, code string, organisationID string, name *string) (*model.Device, error) {
	var device model.Device
	err := r.db.GetContext(ctx, &device, `
		UPDATE devices SET
			status = 'PAIRED',
			organisation_id = $2,
			name = $3,
			pairing_code = NULL,
			paired_at = NOW()
		WHERE pairing_code = $1 AND status = 'UNPAIRED'
		RETURNING *
	`, code, organisationID, name)
	return HandleNotFound(&device, err)
}

func (r *deviceRepo) AssignDayPlan(ctx context.Context, deviceID string, organisationID string, dayPlanID string) (*model.Device, error) {
	var device model.Device
	err := r.db.GetContext(ctx, &device, `
		UPDATE devices SET
			current_day_plan_id = $3
		WHERE id = $1 AND status = 'PAIRED' AND organisation_id = $2
		RETURNING *
	`, deviceID, organisationID, dayPlanID)
	return HandleNotFound(&device, err)
}

func (r *deviceRepo) ClearDayPlan(ctx context.Context, deviceID string) (*model.Device, error) {
	var device model.Device
	err := r.db.GetContext(ctx, &device, `
		UPDATE devices SET
			current_day_plan_id = NULL
		WHERE id = $1
		RETURNING *
	`, deviceID)
	return HandleNotFound(&device, err)
}

func (r *deviceRepo) ResetPairing(ctx context.Context, deviceID string, freshCode string) (*model.Device, error) {
	var device model.Device
	err := r.db.GetContext(ctx, &device, `
		UPDATE devices SET
			status = 'UNPAIRED',
			organisation_id = NULL,
			name = NULL,
			current_day_plan_id = NULL,
			pairing_code = $2,
			paired_at = NULL,
			unpaired_at = NOW()
		WHERE id = $1
		RETURNING *
	`, deviceID, freshCode)
	return HandleNotFound(&device, err)
}

func (r *deviceRepo) CodeInUse(ctx context.Context, code string) (bool, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM devices
		WHERE pairing_code = $1 AND status = 'UNPAIRED'
	`, code)
	return count > 0, err
}

func (r *deviceRepo) DeleteStaleUnpaired(ctx context.Context, before time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM devices
		WHERE status = 'UNPAIRED' AND unpaired_at < $1
	`, before)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
