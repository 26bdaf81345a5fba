package attendance

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"faceattend/internal/domain"
	"faceattend/internal/store"
)

// Record is one stored attendance row. StudentRef is the internal student
// id; the institution-assigned id appears on Log rows via the join.
type Record struct {
	ID          string    `json:"id"`
	StudentRef  string    `json:"-"`
	ClassName   string    `json:"className"`
	CheckInTime time.Time `json:"checkInTime"`
	Confidence  float64   `json:"confidenceScore"`
}

// Log is a reporting row joined with the student.
type Log struct {
	ID          string    `json:"id"`
	StudentID   string    `json:"studentId"`
	StudentName string    `json:"studentName"`
	ClassName   string    `json:"className"`
	CheckInTime time.Time `json:"checkInTime"`
	Confidence  float64   `json:"confidenceScore"`
}

// LogFilter narrows ListLogs. Date filters to the UTC calendar day.
type LogFilter struct {
	Date      *time.Time
	ClassName string
	Limit     int
}

// Repository persists attendance records in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Insert writes a new record. The UNIQUE(student_id, day) index is the
// single point of truth for "already checked in today": a concurrent
// second writer loses here, not in an application-level check.
func (r *Repository) Insert(ctx context.Context, rec Record) error {
	day := rec.CheckInTime.UTC().Format("2006-01-02")
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO attendance_records (id, student_id, class_name, check_in_time, day, confidence_score)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, rec.ID, rec.StudentRef, rec.ClassName, rec.CheckInTime, day, rec.Confidence)
	if store.IsUniqueViolation(err) {
		return domain.E(domain.KindDuplicate, "attendance already recorded today")
	}
	if err != nil {
		return domain.Wrap(domain.KindInternal, "insert attendance record", err)
	}
	return nil
}

// ListLogs returns records ordered by check-in time descending, with the
// total count matching the filter.
func (r *Repository) ListLogs(ctx context.Context, f LogFilter) ([]Log, int, error) {
	where := ""
	args := []any{}
	if f.Date != nil {
		dayStart := time.Date(f.Date.Year(), f.Date.Month(), f.Date.Day(), 0, 0, 0, 0, time.UTC)
		args = append(args, dayStart, dayStart.Add(24*time.Hour))
		where = fmt.Sprintf(" WHERE a.check_in_time >= $%d AND a.check_in_time < $%d", len(args)-1, len(args))
	}
	if f.ClassName != "" {
		args = append(args, f.ClassName)
		if where == "" {
			where = fmt.Sprintf(" WHERE a.class_name = $%d", len(args))
		} else {
			where += fmt.Sprintf(" AND a.class_name = $%d", len(args))
		}
	}

	var total int
	countQuery := `SELECT COUNT(*) FROM attendance_records a` + where
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, domain.Wrap(domain.KindInternal, "count attendance records", err)
	}

	args = append(args, f.Limit)
	query := `
		SELECT a.id, s.student_id, s.full_name, a.class_name, a.check_in_time, a.confidence_score
		FROM attendance_records a
		JOIN students s ON s.id = a.student_id` + where +
		fmt.Sprintf(" ORDER BY a.check_in_time DESC LIMIT $%d", len(args))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, domain.Wrap(domain.KindInternal, "query attendance records", err)
	}
	defer rows.Close()

	var logs []Log
	for rows.Next() {
		var l Log
		if err := rows.Scan(&l.ID, &l.StudentID, &l.StudentName, &l.ClassName, &l.CheckInTime, &l.Confidence); err != nil {
			return nil, 0, domain.Wrap(domain.KindInternal, "scan attendance record", err)
		}
		logs = append(logs, l)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, domain.Wrap(domain.KindInternal, "scan attendance records", err)
	}
	return logs, total, nil
}

// CountForDay returns how many records exist for the UTC day.
func (r *Repository) CountForDay(ctx context.Context, day time.Time) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM attendance_records WHERE day = $1`,
		day.UTC().Format("2006-01-02")).Scan(&n)
	if err != nil {
		return 0, domain.Wrap(domain.KindInternal, "count attendance records", err)
	}
	return n, nil
}
