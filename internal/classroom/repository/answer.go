package repository

import (
	"context"
	"fmt"
	"strings"

	"classqa/internal/classroom/model"
	"classqa/internal/common/db"
)

const answerSelectColumns = "id, question_id, student_id, text, submitted_at"

// AnswerRepository stores at most one answer per (question, student).
// It applies no business rules; callers validate before writing.
type AnswerRepository interface {
	// Find returns (nil, nil) when the student has not answered.
	Find(ctx context.Context, tx db.Transaction, questionID int64, studentID string) (*model.Answer, error)
	// Upsert inserts or overwrites the (questionID, studentID) answer in one statement.
	Upsert(ctx context.Context, tx db.Transaction, questionID int64, studentID, text string) (*model.Answer, error)
	// ListByQuestion returns answers newest first.
	ListByQuestion(ctx context.Context, tx db.Transaction, questionID int64) ([]*model.Answer, error)
	CountByQuestion(ctx context.Context, tx db.Transaction, questionID int64) (int64, error)
	CountByQuestions(ctx context.Context, tx db.Transaction, questionIDs []int64) (map[int64]int64, error)
	DeleteByQuestion(ctx context.Context, tx db.Transaction, questionID int64) (int64, error)
}

// SQLAnswerRepository implements AnswerRepository. Uniqueness is held by the
// (question_id, student_id) unique key, and Upsert relies on the dialect's native
// conflict clause so concurrent first submissions cannot produce two rows.
type SQLAnswerRepository struct {
	db  db.Database
	now Clock
}

// NewAnswerRepository creates an answer repository.
func NewAnswerRepository(database db.Database, clock Clock) *SQLAnswerRepository {
	if clock == nil {
		clock = systemClock
	}
	return &SQLAnswerRepository{db: database, now: clock}
}

func (r *SQLAnswerRepository) Find(ctx context.Context, tx db.Transaction, questionID int64, studentID string) (*model.Answer, error) {
	query := "SELECT " + answerSelectColumns + " FROM answers WHERE question_id = ? AND student_id = ?"
	answer, err := scanAnswer(db.GetQuerier(r.db, tx).QueryRow(ctx, query, questionID, studentID))
	if err != nil {
		if db.IsNoRows(err) {
			return nil, nil
		}
		return nil, err
	}
	return answer, nil
}

func (r *SQLAnswerRepository) Upsert(ctx context.Context, tx db.Transaction, questionID int64, studentID, text string) (*model.Answer, error) {
	querier := db.GetQuerier(r.db, tx)
	query, err := upsertAnswerQuery(querier.Dialect())
	if err != nil {
		return nil, err
	}
	submittedAt := toMillis(r.now())
	if _, err := querier.Exec(ctx, query, questionID, studentID, text, submittedAt); err != nil {
		return nil, err
	}
	answer, err := r.Find(ctx, tx, questionID, studentID)
	if err != nil {
		return nil, err
	}
	if answer == nil {
		return nil, fmt.Errorf("answer for question %d student %s vanished after upsert", questionID, studentID)
	}
	return answer, nil
}

// upsertAnswerQuery keeps the row id, replaces the text, and moves the timestamp
// strictly forward even when two writes land in the same millisecond.
func upsertAnswerQuery(dialect db.Dialect) (string, error) {
	const insert = "INSERT INTO answers (question_id, student_id, text, submitted_at) VALUES (?, ?, ?, ?)"
	switch dialect {
	case db.DialectMySQL:
		return insert + " ON DUPLICATE KEY UPDATE text = VALUES(text), " +
			"submitted_at = GREATEST(VALUES(submitted_at), submitted_at + 1)", nil
	case db.DialectPostgres:
		return insert + " ON CONFLICT (question_id, student_id) DO UPDATE SET text = EXCLUDED.text, " +
			"submitted_at = GREATEST(EXCLUDED.submitted_at, answers.submitted_at + 1)", nil
	case db.DialectSQLite:
		return insert + " ON CONFLICT (question_id, student_id) DO UPDATE SET text = excluded.text, " +
			"submitted_at = MAX(excluded.submitted_at, answers.submitted_at + 1)", nil
	}
	return "", fmt.Errorf("upsert not supported for dialect %q", dialect)
}

func (r *SQLAnswerRepository) ListByQuestion(ctx context.Context, tx db.Transaction, questionID int64) ([]*model.Answer, error) {
	query := "SELECT " + answerSelectColumns + " FROM answers WHERE question_id = ? ORDER BY submitted_at DESC, id DESC"
	rows, err := db.GetQuerier(r.db, tx).Query(ctx, query, questionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	answers := make([]*model.Answer, 0)
	for rows.Next() {
		answer, err := scanAnswer(rows)
		if err != nil {
			return nil, err
		}
		answers = append(answers, answer)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return answers, nil
}

func (r *SQLAnswerRepository) CountByQuestion(ctx context.Context, tx db.Transaction, questionID int64) (int64, error) {
	var count int64
	query := "SELECT COUNT(*) FROM answers WHERE question_id = ?"
	if err := db.GetQuerier(r.db, tx).QueryRow(ctx, query, questionID).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (r *SQLAnswerRepository) CountByQuestions(ctx context.Context, tx db.Transaction, questionIDs []int64) (map[int64]int64, error) {
	counts := make(map[int64]int64, len(questionIDs))
	if len(questionIDs) == 0 {
		return counts, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(questionIDs)), ",")
	args := make([]interface{}, 0, len(questionIDs))
	for _, id := range questionIDs {
		args = append(args, id)
	}
	query := "SELECT question_id, COUNT(*) FROM answers WHERE question_id IN (" + placeholders + ") GROUP BY question_id"

	rows, err := db.GetQuerier(r.db, tx).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var id, count int64
		if err := rows.Scan(&id, &count); err != nil {
			return nil, err
		}
		counts[id] = count
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return counts, nil
}

func (r *SQLAnswerRepository) DeleteByQuestion(ctx context.Context, tx db.Transaction, questionID int64) (int64, error) {
	result, err := db.GetQuerier(r.db, tx).Exec(ctx, "DELETE FROM answers WHERE question_id = ?", questionID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func scanAnswer(row rowScanner) (*model.Answer, error) {
	var (
		answer      model.Answer
		submittedAt int64
	)
	if err := row.Scan(&answer.ID, &answer.QuestionID, &answer.StudentID, &answer.Text, &submittedAt); err != nil {
		return nil, err
	}
	answer.Timestamp = fromMillis(submittedAt)
	return &answer, nil
}
