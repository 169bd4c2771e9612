package model

import (
	"time"
)

// DayPlan is owned by the event-management side of the application; the
// pairing core only reads it to build the denormalized status payload a
// display renders from.
type DayPlan struct {
	ID             string         `db:"id" json:"id"`
	OrganisationID string         `db:"organisation_id" json:"organisationId"`
	Title          string         `db:"title" json:"title"`
	Date           time.Time      `db:"date" json:"date"`
	Items          []ScheduleItem `db:"-" json:"items"`
}

// ScheduleItem is one activity on a day plan. StartTime is the planned
// start; DelayMin shifts it when the day runs late. The effective window of
// an item runs from its shifted start to the next item's shifted start.
type ScheduleItem struct {
	ID          string    `db:"id" json:"id"`
	DayPlanID   string    `db:"day_plan_id" json:"-"`
	Title       string    `db:"title" json:"title"`
	StartTime   time.Time `db:"start_time" json:"time"`
	DelayMin    int       `db:"delay_min" json:"delay"`
	DurationMin int       `db:"duration_min" json:"duration"`
	Position    int       `db:"position" json:"position"`
}

// EffectiveStart is the planned start shifted by the per-item delay.
func (i ScheduleItem) EffectiveStart() time.Time {
	return i.StartTime.Add(time.Duration(i.DelayMin) * time.Minute)
}
