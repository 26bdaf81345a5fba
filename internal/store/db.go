package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// DB wraps sql.DB for Postgres using pgx.
type DB struct {
	Client *sql.DB
}

// NewDB creates a Postgres connection with sane defaults and ensures the
// schema exists.
func NewDB(connString string) (*DB, error) {
	db, err := sql.Open("pgx", connString)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)
	if err := db.PingContext(context.Background()); err != nil {
		return nil, err
	}
	if err := Migrate(db); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &DB{Client: db}, nil
}

// Migrate creates the schema. The invariants the services rely on live
// here: unique emails and student ids, descriptor cascade on student
// delete, and at most one attendance row per student per UTC day.
func Migrate(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id            TEXT PRIMARY KEY,
		email         TEXT UNIQUE NOT NULL,
		full_name     TEXT NOT NULL,
		password_hash TEXT NOT NULL,
		role          TEXT NOT NULL,
		created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS students (
		id          TEXT PRIMARY KEY,
		student_id  TEXT UNIQUE NOT NULL,
		full_name   TEXT NOT NULL,
		email       TEXT,
		class_name  TEXT NOT NULL,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS face_descriptors (
		id          BIGSERIAL PRIMARY KEY,
		student_id  TEXT NOT NULL REFERENCES students(id) ON DELETE CASCADE,
		vector      JSONB NOT NULL,
		captured_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);
	CREATE INDEX IF NOT EXISTS idx_descriptors_student ON face_descriptors(student_id);

	CREATE TABLE IF NOT EXISTS attendance_records (
		id               TEXT PRIMARY KEY,
		student_id       TEXT NOT NULL REFERENCES students(id),
		class_name       TEXT NOT NULL,
		check_in_time    TIMESTAMPTZ NOT NULL,
		day              DATE NOT NULL,
		confidence_score DOUBLE PRECISION NOT NULL,
		UNIQUE (student_id, day)
	);
	CREATE INDEX IF NOT EXISTS idx_attendance_checkin ON attendance_records(check_in_time);
	`
	_, err := db.Exec(schema)
	return err
}

// Close closes the underlying connection.
func (d *DB) Close() error {
	if d == nil || d.Client == nil {
		return nil
	}
	return d.Client.Close()
}
