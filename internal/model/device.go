package model

import (
	"time"
)

// Device is one physical kiosk display. The row is created the first time
// the kiosk calls the pairing init endpoint and survives pairing cycles.
//
// Invariants enforced at the repository layer:
//   - PairingCode is set if and only if Status == UNPAIRED.
//   - OrganisationID is set if and only if Status == PAIRED.
//   - CurrentDayPlanID, when set, references a plan of OrganisationID.
type Device struct {
	ID               string       `db:"id" json:"id"`
	PairingCode      *string      `db:"pairing_code" json:"pairingCode,omitempty"`
	Status           DeviceStatus `db:"status" json:"status"`
	OrganisationID   *string      `db:"organisation_id" json:"organisationId,omitempty"`
	Name             *string      `db:"name" json:"name,omitempty"`
	CurrentDayPlanID *string      `db:"current_day_plan_id" json:"currentDayPlanId,omitempty"`
	CreatedAt        time.Time    `db:"created_at" json:"createdAt"`
	PairedAt         *time.Time   `db:"paired_at" json:"pairedAt,omitempty"`
	// UnpairedAt is refreshed whenever the device enters UNPAIRED (create,
	// disconnect, reset). The cleanup job cuts off on this, not CreatedAt,
	// so a freshly disconnected device is never reaped mid-pairing.
	UnpairedAt time.Time `db:"unpaired_at" json:"-"`
}

type CreateDeviceParams struct {
	ID          string
	PairingCode string
}

func (d *Device) IsPaired() bool {
	return d.Status == DeviceStatusPaired
}
