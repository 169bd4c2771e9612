package repository

import (
	"database/sql"
	"errors"
)

// HandleNotFound converts sql.ErrNoRows into a nil result without error.
// Find* operations treat a missing row as an ordinary outcome, not a
// failure; callers decide whether nil means 404.
//
// Usage:
//
//	var device model.Device
//	err := r.db.GetContext(ctx, &device, query, args...)
//	return HandleNotFound(&device, err)
func HandleNotFound[T any](result *T, err error) (*T, error) {
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return result, nil
}
