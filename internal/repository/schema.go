package repository

import (
	"context"
	"database/sql"
	"fmt"

	"edupro/internal/config"
)

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS courses (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		title TEXT NOT NULL,
		description TEXT,
		instructor_email TEXT NOT NULL,
		instructor_name TEXT NOT NULL,
		deletion_pin TEXT NOT NULL,
		donation_qr BLOB,
		created_at TIMESTAMP NOT NULL,
		CONSTRAINT uq_courses_title_email UNIQUE (title, instructor_email)
	)`,
	`CREATE TABLE IF NOT EXISTS course_content (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		course_id INTEGER NOT NULL UNIQUE REFERENCES courses(id),
		video_path TEXT NOT NULL,
		material_path TEXT,
		title TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_courses_created_at ON courses(created_at DESC)`,
}

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS courses (
		id BIGSERIAL PRIMARY KEY,
		title TEXT NOT NULL,
		description TEXT,
		instructor_email TEXT NOT NULL,
		instructor_name TEXT NOT NULL,
		deletion_pin TEXT NOT NULL,
		donation_qr BYTEA,
		created_at TIMESTAMPTZ NOT NULL,
		CONSTRAINT uq_courses_title_email UNIQUE (title, instructor_email)
	)`,
	`CREATE TABLE IF NOT EXISTS course_content (
		id BIGSERIAL PRIMARY KEY,
		course_id BIGINT NOT NULL UNIQUE REFERENCES courses(id),
		video_path TEXT NOT NULL,
		material_path TEXT,
		title TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_courses_created_at ON courses(created_at DESC)`,
}

// EnsureSchema creates the tables if they are absent. It is safe to call on
// every start.
func EnsureSchema(ctx context.Context, db *sql.DB, driver string) error {
	stmts := sqliteSchema
	if driver == config.DriverPostgres {
		stmts = postgresSchema
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}
	return nil
}
