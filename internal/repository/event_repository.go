package repository

import (
	"database/sql"
	"fmt"
	"time"

	"planwise/tracking-engine/internal/models"
)

const eventColumns = `id, title, start_time, end_time, project_id, color, completed, duration_seconds, kind,
	recurrence_type, recurrence_interval, recurrence_monthly_mode, recurrence_nth_week, recurrence_weekday,
	recurrence_end_kind, recurrence_end_date, recurrence_count, recurrence_group_id,
	created_at, updated_at`

type EventRepository struct {
	db *sql.DB
}

func NewEventRepository(db *sql.DB) *EventRepository {
	return &EventRepository{db: db}
}

func (r *EventRepository) Create(event *models.Event) error {
	return r.insert(r.db, event)
}

// CreateBatch inserts events in one transaction so a generation batch is
// all-or-nothing at the store level.
func (r *EventRepository) CreateBatch(events []*models.Event) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, event := range events {
		if err := r.insert(tx, event); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

type execer interface {
	Exec(query string, args ...interface{}) (sql.Result, error)
}

func (r *EventRepository) insert(ex execer, event *models.Event) error {
	query := `
		INSERT INTO events (` + eventColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
	`

	args := []interface{}{
		event.ID,
		event.Title,
		event.StartTime,
		event.EndTime,
		event.ProjectID,
		event.Color,
		event.Completed,
		event.DurationSeconds,
		string(event.Kind),
	}
	args = append(args, recurrenceArgs(event.Recurrence)...)

	if _, err := ex.Exec(query, args...); err != nil {
		return fmt.Errorf("failed to create event: %w", err)
	}
	return nil
}

func recurrenceArgs(rec *models.Recurrence) []interface{} {
	if rec == nil {
		return []interface{}{nil, nil, nil, nil, nil, nil, nil, nil, nil}
	}
	var endDate interface{}
	if rec.End.EndDate != nil {
		endDate = *rec.End.EndDate
	}
	var count interface{}
	if rec.End.Count != nil {
		count = *rec.End.Count
	}
	return []interface{}{
		string(rec.Type),
		rec.Interval,
		nullableString(string(rec.MonthlyMode)),
		nullableString(string(rec.NthWeek)),
		int(rec.Weekday),
		string(rec.End.Kind),
		endDate,
		count,
		rec.GroupID,
	}
}

func nullableString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func (r *EventRepository) GetByID(id string) (*models.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE id = ?`

	event, err := scanEvent(r.db.QueryRow(query, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("event not found: %w", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get event: %w", err)
	}
	return event, nil
}

// Exists is the cheap existence probe the sync layer runs before every
// write-through.
func (r *EventRepository) Exists(id string) (bool, error) {
	var count int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM events WHERE id = ?`, id).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check event existence: %w", err)
	}
	return count > 0, nil
}

// QueryRange returns events intersecting [from, to) ordered by start time.
func (r *EventRepository) QueryRange(from, to time.Time) ([]*models.Event, error) {
	query := `
		SELECT ` + eventColumns + `
		FROM events
		WHERE start_time < ? AND end_time > ?
		ORDER BY start_time ASC
	`
	return r.queryEvents(query, to, from)
}

// QueryPlannedOverlapping returns planned (not tracked, not completed)
// events intersecting [from, to), the reconciler's candidate set.
func (r *EventRepository) QueryPlannedOverlapping(from, to time.Time) ([]*models.Event, error) {
	query := `
		SELECT ` + eventColumns + `
		FROM events
		WHERE start_time < ? AND end_time > ?
		  AND kind = ? AND completed = 0
		ORDER BY start_time ASC
	`
	return r.queryEvents(query, to, from, string(models.KindPlanned))
}

// QueryByGroup returns all members of a recurring group ordered by start time.
func (r *EventRepository) QueryByGroup(groupID string) ([]*models.Event, error) {
	query := `
		SELECT ` + eventColumns + `
		FROM events
		WHERE recurrence_group_id = ?
		ORDER BY start_time ASC
	`
	return r.queryEvents(query, groupID)
}

// LastInstance returns the latest-starting member of a group, or nil if the
// group is empty.
func (r *EventRepository) LastInstance(groupID string) (*models.Event, error) {
	query := `
		SELECT ` + eventColumns + `
		FROM events
		WHERE recurrence_group_id = ?
		ORDER BY start_time DESC
		LIMIT 1
	`
	event, err := scanEvent(r.db.QueryRow(query, groupID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get last instance: %w", err)
	}
	return event, nil
}

// OpenEndedGroups returns the distinct group ids of recurrences with no end
// condition, for horizon maintenance.
func (r *EventRepository) OpenEndedGroups() ([]string, error) {
	rows, err := r.db.Query(`
		SELECT DISTINCT recurrence_group_id
		FROM events
		WHERE recurrence_group_id IS NOT NULL AND recurrence_end_kind = ?
	`, string(models.EndNever))
	if err != nil {
		return nil, fmt.Errorf("failed to query open-ended groups: %w", err)
	}
	defer rows.Close()

	var groups []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan group id: %w", err)
		}
		groups = append(groups, id)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return groups, nil
}

func (r *EventRepository) Update(id string, update *models.UpdateEventRequest) (*models.Event, error) {
	current, err := r.GetByID(id)
	if err != nil {
		return nil, err
	}

	setParts := []string{"updated_at = CURRENT_TIMESTAMP"}
	args := []interface{}{}

	startTime := current.StartTime
	endTime := current.EndTime

	if update.Title != nil {
		setParts = append(setParts, "title = ?")
		args = append(args, *update.Title)
	}
	if update.Kind != nil {
		setParts = append(setParts, "kind = ?")
		args = append(args, string(*update.Kind))
	}
	if update.ProjectID != nil {
		setParts = append(setParts, "project_id = ?")
		args = append(args, *update.ProjectID)
	}
	if update.Color != nil {
		setParts = append(setParts, "color = ?")
		args = append(args, *update.Color)
	}
	if update.Completed != nil {
		setParts = append(setParts, "completed = ?")
		args = append(args, *update.Completed)
	}
	if update.StartTime != nil {
		setParts = append(setParts, "start_time = ?")
		args = append(args, *update.StartTime)
		startTime = *update.StartTime
	}
	if update.EndTime != nil {
		setParts = append(setParts, "end_time = ?")
		args = append(args, *update.EndTime)
		endTime = *update.EndTime
	}

	// Recalculate duration whenever the interval moved.
	if update.StartTime != nil || update.EndTime != nil {
		duration := int64(endTime.Sub(startTime).Seconds())
		setParts = append(setParts, "duration_seconds = ?")
		args = append(args, duration)
	} else if update.DurationSeconds != nil {
		setParts = append(setParts, "duration_seconds = ?")
		args = append(args, *update.DurationSeconds)
	}

	if len(setParts) == 1 {
		return current, nil
	}

	setClause := setParts[0]
	for i := 1; i < len(setParts); i++ {
		setClause += ", " + setParts[i]
	}

	query := fmt.Sprintf(`UPDATE events SET %s WHERE id = ?`, setClause)
	args = append(args, id)

	result, err := r.db.Exec(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to update event: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return nil, fmt.Errorf("event not found")
	}

	return r.GetByID(id)
}

// UpdateMany applies one patch to every id in a single transaction.
func (r *EventRepository) UpdateMany(ids []string, update *models.UpdateEventRequest) error {
	for _, id := range ids {
		if _, err := r.Update(id, update); err != nil {
			return err
		}
	}
	return nil
}

func (r *EventRepository) Delete(id string) error {
	result, err := r.db.Exec("DELETE FROM events WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete event: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("event not found")
	}
	return nil
}

func (r *EventRepository) DeleteByIDs(ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	query := "DELETE FROM events WHERE id IN ("
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		if i > 0 {
			query += ","
		}
		query += "?"
		args[i] = id
	}
	query += ")"

	if _, err := r.db.Exec(query, args...); err != nil {
		return fmt.Errorf("failed to delete events: %w", err)
	}
	return nil
}

// ReplaceWithRemainders deletes an event and inserts its split remainders in
// one transaction, so a reconciler split either fully commits or leaves the
// original untouched.
func (r *EventRepository) ReplaceWithRemainders(id string, remainders []*models.Event) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM events WHERE id = ?", id); err != nil {
		return fmt.Errorf("failed to delete original event: %w", err)
	}
	for _, remainder := range remainders {
		if err := r.insert(tx, remainder); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (r *EventRepository) queryEvents(query string, args ...interface{}) ([]*models.Event, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var events []*models.Event
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, event)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return events, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanEvent(row rowScanner) (*models.Event, error) {
	var event models.Event
	var kind string
	var recType, recMode, recNthWeek, recEndKind, recGroupID sql.NullString
	var recInterval, recWeekday, recCount sql.NullInt64
	var recEndDate sql.NullTime

	err := row.Scan(
		&event.ID,
		&event.Title,
		&event.StartTime,
		&event.EndTime,
		&event.ProjectID,
		&event.Color,
		&event.Completed,
		&event.DurationSeconds,
		&kind,
		&recType,
		&recInterval,
		&recMode,
		&recNthWeek,
		&recWeekday,
		&recEndKind,
		&recEndDate,
		&recCount,
		&recGroupID,
		&event.CreatedAt,
		&event.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	event.Kind = models.EventKind(kind)

	if recType.Valid {
		rec := &models.Recurrence{
			Type:     models.RecurrenceType(recType.String),
			Interval: int(recInterval.Int64),
			Weekday:  time.Weekday(recWeekday.Int64),
			GroupID:  recGroupID.String,
		}
		if recMode.Valid {
			rec.MonthlyMode = models.MonthlyMode(recMode.String)
		}
		if recNthWeek.Valid {
			rec.NthWeek = models.NthWeek(recNthWeek.String)
		}
		rec.End.Kind = models.EndConditionKind(recEndKind.String)
		if recEndDate.Valid {
			endDate := recEndDate.Time
			rec.End.EndDate = &endDate
		}
		if recCount.Valid {
			count := int(recCount.Int64)
			rec.End.Count = &count
		}
		event.Recurrence = rec
	}

	return &event, nil
}
