package repository

import (
	"context"
	"fmt"

	"classqa/internal/common/db"
)

var mysqlSchema = []string{
	`CREATE TABLE IF NOT EXISTS questions (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		title TEXT NOT NULL,
		text TEXT NOT NULL,
		access_code VARCHAR(128) NOT NULL,
		is_closed TINYINT(1) NOT NULL DEFAULT 0,
		created_at BIGINT NOT NULL,
		close_date BIGINT NULL,
		UNIQUE KEY uk_questions_access_code (access_code)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS answers (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		question_id BIGINT NOT NULL,
		student_id VARCHAR(128) NOT NULL,
		text VARCHAR(200) NOT NULL,
		submitted_at BIGINT NOT NULL,
		UNIQUE KEY uk_answers_question_student (question_id, student_id),
		KEY idx_answers_question_time (question_id, submitted_at)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS questions (
		id BIGSERIAL PRIMARY KEY,
		title TEXT NOT NULL,
		text TEXT NOT NULL,
		access_code VARCHAR(128) NOT NULL,
		is_closed BOOLEAN NOT NULL DEFAULT FALSE,
		created_at BIGINT NOT NULL,
		close_date BIGINT NULL,
		CONSTRAINT uk_questions_access_code UNIQUE (access_code)
	)`,
	`CREATE TABLE IF NOT EXISTS answers (
		id BIGSERIAL PRIMARY KEY,
		question_id BIGINT NOT NULL,
		student_id VARCHAR(128) NOT NULL,
		text VARCHAR(200) NOT NULL,
		submitted_at BIGINT NOT NULL,
		CONSTRAINT uk_answers_question_student UNIQUE (question_id, student_id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_answers_question_time ON answers (question_id, submitted_at)`,
}

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS questions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		title TEXT NOT NULL,
		text TEXT NOT NULL,
		access_code TEXT NOT NULL UNIQUE,
		is_closed BOOLEAN NOT NULL DEFAULT FALSE,
		created_at INTEGER NOT NULL,
		close_date INTEGER NULL
	)`,
	`CREATE TABLE IF NOT EXISTS answers (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		question_id INTEGER NOT NULL,
		student_id TEXT NOT NULL,
		text TEXT NOT NULL,
		submitted_at INTEGER NOT NULL,
		UNIQUE (question_id, student_id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_answers_question_time ON answers (question_id, submitted_at)`,
}

// EnsureSchema creates the questions and answers tables when they are missing.
func EnsureSchema(ctx context.Context, database db.Database) error {
	var stmts []string
	switch database.Dialect() {
	case db.DialectMySQL:
		stmts = mysqlSchema
	case db.DialectPostgres:
		stmts = postgresSchema
	case db.DialectSQLite:
		stmts = sqliteSchema
	default:
		return fmt.Errorf("no schema for dialect %q", database.Dialect())
	}
	for _, stmt := range stmts {
		if _, err := database.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema failed: %w", err)
		}
	}
	return nil
}
