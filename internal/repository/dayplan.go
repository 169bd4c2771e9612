package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/chaos-ops/display-server-go/internal/model"
)

// DayPlanRepository reads the day plans owned by the event-management side
// of the application. The pairing core never writes these tables.
type DayPlanRepository interface {
	FindByID(ctx context.Context, id string) (*model.DayPlan, error)
}

type dayPlanRepo struct {
	db *sqlx.DB
}

func NewDayPlanRepository(db *sqlx.DB) DayPlanRepository {
	return &dayPlanRepo{db: db}
}

func (r *dayPlanRepo) FindByID(ctx context.Context, id string) (*model.DayPlan, error) {
	var plan model.DayPlan
	err := r.db.GetContext(ctx, &plan, `
		SELECT id, organisation_id, title, date FROM day_plans WHERE id = $1
	`, id)
	if found, err := HandleNotFound(&plan, err); found == nil || err != nil {
		return nil, err
	}

	err = r.db.SelectContext(ctx, &plan.Items, `
		SELECT id, day_plan_id, title, start_time, delay_min, duration_min, position
		FROM schedule_items
		WHERE day_plan_id = $1
		ORDER BY position ASC, start_time ASC
	`, id)
	if err != nil {
		return nil, err
	}
	if plan.Items == nil {
		plan.Items = []model.ScheduleItem{}
	}

	return &plan, nil
}
