package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/smukkama/weather-alarms/internal/alarm"
)

var _ alarm.Store = (*DB)(nil)

const alarmColumns = `id, city, lat, lon, fire_time, kind, active, condition_kind, threshold`

// Insert stores a new alarm and returns its generated id
func (db *DB) Insert(ctx context.Context, a *alarm.Alarm) (int64, error) {
	query := db.rebind(`
		INSERT INTO alarms (city, lat, lon, fire_time, kind, active, condition_kind, threshold)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id
	`)

	var id int64
	err := db.QueryRowContext(ctx, query,
		a.City,
		a.Lat,
		a.Lon,
		a.FireTime.UnixMilli(),
		string(a.Kind),
		a.Active,
		nullCondition(a.Condition),
		nullThreshold(a.Threshold),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to insert alarm: %w", err)
	}

	return id, nil
}

// GetAll returns every alarm ordered by fire time
func (db *DB) GetAll(ctx context.Context) ([]*alarm.Alarm, error) {
	query := `SELECT ` + alarmColumns + ` FROM alarms ORDER BY fire_time ASC, id ASC`

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query alarms: %w", err)
	}
	defer rows.Close()

	alarms := make([]*alarm.Alarm, 0)
	for rows.Next() {
		a, err := scanAlarm(rows)
		if err != nil {
			return nil, err
		}
		alarms = append(alarms, a)
	}

	return alarms, rows.Err()
}

// GetByID retrieves an alarm, or nil when it does not exist
func (db *DB) GetByID(ctx context.Context, id int64) (*alarm.Alarm, error) {
	query := db.rebind(`SELECT ` + alarmColumns + ` FROM alarms WHERE id = ?`)

	a, err := scanAlarm(db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return a, nil
}

// Update replaces every attribute of the alarm with the given id
func (db *DB) Update(ctx context.Context, a *alarm.Alarm) error {
	query := db.rebind(`
		UPDATE alarms
		SET city = ?, lat = ?, lon = ?, fire_time = ?, kind = ?, active = ?,
		    condition_kind = ?, threshold = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`)

	result, err := db.ExecContext(ctx, query,
		a.City,
		a.Lat,
		a.Lon,
		a.FireTime.UnixMilli(),
		string(a.Kind),
		a.Active,
		nullCondition(a.Condition),
		nullThreshold(a.Threshold),
		a.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update alarm %d: %w", a.ID, err)
	}

	return expectOneRow(result, a.ID)
}

// Delete removes an alarm. Deleting a missing alarm is not an error.
func (db *DB) Delete(ctx context.Context, id int64) error {
	query := db.rebind(`DELETE FROM alarms WHERE id = ?`)

	if _, err := db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("failed to delete alarm %d: %w", id, err)
	}

	return nil
}

// SetActive flips the active flag in place
func (db *DB) SetActive(ctx context.Context, id int64, active bool) error {
	query := db.rebind(`UPDATE alarms SET active = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`)

	result, err := db.ExecContext(ctx, query, active, id)
	if err != nil {
		return fmt.Errorf("failed to toggle alarm %d: %w", id, err)
	}

	return expectOneRow(result, id)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAlarm(row scanner) (*alarm.Alarm, error) {
	var (
		a         alarm.Alarm
		fireTime  int64
		kind      string
		condition sql.NullString
		threshold sql.NullFloat64
	)

	err := row.Scan(
		&a.ID,
		&a.City,
		&a.Lat,
		&a.Lon,
		&fireTime,
		&kind,
		&a.Active,
		&condition,
		&threshold,
	)
	if err != nil {
		return nil, err
	}

	a.FireTime = time.UnixMilli(fireTime)
	a.Kind = alarm.DeliveryKind(kind)
	if condition.Valid {
		a.Condition = alarm.ConditionKind(condition.String)
	}
	if threshold.Valid {
		t := threshold.Float64
		a.Threshold = &t
	}

	return &a, nil
}

func expectOneRow(result sql.Result, id int64) error {
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("alarm %d: %w", id, alarm.ErrNotFound)
	}
	return nil
}

func nullCondition(c alarm.ConditionKind) sql.NullString {
	return sql.NullString{String: string(c), Valid: c != alarm.ConditionNone}
}

func nullThreshold(t *float64) sql.NullFloat64 {
	if t == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *t, Valid: true}
}
