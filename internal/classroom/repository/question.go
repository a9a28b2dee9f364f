package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"classqa/internal/classroom/model"
	"classqa/internal/common/cache"
	"classqa/internal/common/db"
)

const (
	defaultAccessCodeTTL  = 30 * time.Minute
	accessCodeKeyPrefix   = "classqa:question:code:"
	questionSelectColumns = "id, title, text, access_code, is_closed, created_at, close_date"
)

var (
	ErrQuestionNotFound = errors.New("question not found")
	ErrAccessCodeExists = errors.New("access code already exists")
)

// QuestionRepository stores questions and their open/closed state.
type QuestionRepository interface {
	Create(ctx context.Context, tx db.Transaction, title, text, accessCode string) (*model.Question, error)
	GetByID(ctx context.Context, tx db.Transaction, id int64) (*model.Question, error)
	// GetByIDForUpdate reads the question and holds its row lock until tx ends.
	GetByIDForUpdate(ctx context.Context, tx db.Transaction, id int64) (*model.Question, error)
	// GetByAccessCode returns (nil, nil) when no question has the code.
	GetByAccessCode(ctx context.Context, tx db.Transaction, accessCode string) (*model.Question, error)
	List(ctx context.Context, tx db.Transaction, filter model.StatusFilter) ([]*model.Question, error)
	// SetClosed marks the question closed at closedAt, even if it already is.
	SetClosed(ctx context.Context, tx db.Transaction, id int64, closedAt time.Time) (*model.Question, error)
	// CloseIfOpen closes the question only while it is open. closed is false when
	// it was already closed, and the stored close date is left alone.
	CloseIfOpen(ctx context.Context, tx db.Transaction, id int64, closedAt time.Time) (question *model.Question, closed bool, err error)
	Delete(ctx context.Context, tx db.Transaction, id int64) error
	InvalidateAccessCode(ctx context.Context, accessCode string) error
}

// SQLQuestionRepository implements QuestionRepository over a SQL database.
// Access codes are immutable, so the code -> id mapping is cached; rows are always
// read from the database so the closed flag is never stale.
type SQLQuestionRepository struct {
	db    db.Database
	cache cache.BasicOps
	ttl   time.Duration
	now   Clock
}

// QuestionOption customizes a SQLQuestionRepository.
type QuestionOption func(*SQLQuestionRepository)

// WithQuestionClock overrides the creation clock.
func WithQuestionClock(clock Clock) QuestionOption {
	return func(r *SQLQuestionRepository) {
		if clock != nil {
			r.now = clock
		}
	}
}

// WithAccessCodeTTL overrides how long code lookups stay cached.
func WithAccessCodeTTL(ttl time.Duration) QuestionOption {
	return func(r *SQLQuestionRepository) {
		if ttl > 0 {
			r.ttl = ttl
		}
	}
}

// NewQuestionRepository creates a question repository; cacheClient may be nil.
func NewQuestionRepository(database db.Database, cacheClient cache.BasicOps, opts ...QuestionOption) *SQLQuestionRepository {
	r := &SQLQuestionRepository{
		db:    database,
		cache: cacheClient,
		ttl:   defaultAccessCodeTTL,
		now:   systemClock,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *SQLQuestionRepository) Create(ctx context.Context, tx db.Transaction, title, text, accessCode string) (*model.Question, error) {
	createdAt := r.now().UTC().Truncate(time.Millisecond)
	query := "INSERT INTO questions (title, text, access_code, is_closed, created_at) VALUES (?, ?, ?, FALSE, ?)"
	id, err := db.InsertReturningID(ctx, db.GetQuerier(r.db, tx), query, title, text, accessCode, toMillis(createdAt))
	if err != nil {
		if _, ok := db.UniqueViolation(err); ok {
			return nil, ErrAccessCodeExists
		}
		return nil, err
	}
	return &model.Question{
		ID:         id,
		Title:      title,
		Text:       text,
		AccessCode: accessCode,
		IsClosed:   false,
		CreatedAt:  createdAt,
	}, nil
}

func (r *SQLQuestionRepository) GetByID(ctx context.Context, tx db.Transaction, id int64) (*model.Question, error) {
	query := "SELECT " + questionSelectColumns + " FROM questions WHERE id = ?"
	question, err := scanQuestion(db.GetQuerier(r.db, tx).QueryRow(ctx, query, id))
	if err != nil {
		if db.IsNoRows(err) {
			return nil, ErrQuestionNotFound
		}
		return nil, err
	}
	return question, nil
}

func (r *SQLQuestionRepository) GetByIDForUpdate(ctx context.Context, tx db.Transaction, id int64) (*model.Question, error) {
	querier := db.GetQuerier(r.db, tx)
	query := "SELECT " + questionSelectColumns + " FROM questions WHERE id = ?"
	// SQLite has no row locks; its write transactions are already serialized.
	if tx != nil && querier.Dialect() != db.DialectSQLite {
		query += " FOR UPDATE"
	}
	question, err := scanQuestion(querier.QueryRow(ctx, query, id))
	if err != nil {
		if db.IsNoRows(err) {
			return nil, ErrQuestionNotFound
		}
		return nil, err
	}
	return question, nil
}

func (r *SQLQuestionRepository) GetByAccessCode(ctx context.Context, tx db.Transaction, accessCode string) (*model.Question, error) {
	if r.cache == nil || tx != nil {
		return r.getByAccessCodeFromDB(ctx, tx, accessCode)
	}

	var found *model.Question
	id, err := cache.GetWithCached[int64](
		ctx,
		r.cache,
		accessCodeKey(accessCode),
		cache.JitterTTL(r.ttl),
		0,
		func(id int64) bool { return id == 0 },
		func(id int64) string { return strconv.FormatInt(id, 10) },
		func(raw string) (int64, error) { return strconv.ParseInt(raw, 10, 64) },
		func(ctx context.Context) (int64, error) {
			question, err := r.getByAccessCodeFromDB(ctx, nil, accessCode)
			if err != nil || question == nil {
				return 0, err
			}
			found = question
			return question.ID, nil
		},
	)
	if err != nil {
		return nil, err
	}
	if id == 0 {
		return nil, nil
	}
	if found != nil {
		return found, nil
	}

	question, err := r.GetByID(ctx, nil, id)
	if err != nil && !errors.Is(err, ErrQuestionNotFound) {
		return nil, err
	}
	if question == nil || question.AccessCode != accessCode {
		// Stale mapping (question deleted): drop it and ask the database directly.
		_ = r.cache.Del(ctx, accessCodeKey(accessCode))
		return r.getByAccessCodeFromDB(ctx, nil, accessCode)
	}
	return question, nil
}

func (r *SQLQuestionRepository) getByAccessCodeFromDB(ctx context.Context, tx db.Transaction, accessCode string) (*model.Question, error) {
	query := "SELECT " + questionSelectColumns + " FROM questions WHERE access_code = ?"
	question, err := scanQuestion(db.GetQuerier(r.db, tx).QueryRow(ctx, query, accessCode))
	if err != nil {
		if db.IsNoRows(err) {
			return nil, nil
		}
		return nil, err
	}
	return question, nil
}

func (r *SQLQuestionRepository) List(ctx context.Context, tx db.Transaction, filter model.StatusFilter) ([]*model.Question, error) {
	query := "SELECT " + questionSelectColumns + " FROM questions"
	switch filter {
	case model.FilterOpen:
		query += " WHERE is_closed = FALSE"
	case model.FilterClosed:
		query += " WHERE is_closed = TRUE"
	case model.FilterAll, "":
	default:
		return nil, fmt.Errorf("unknown status filter %q", filter)
	}
	query += " ORDER BY id ASC"

	rows, err := db.GetQuerier(r.db, tx).Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	questions := make([]*model.Question, 0)
	for rows.Next() {
		question, err := scanQuestion(rows)
		if err != nil {
			return nil, err
		}
		questions = append(questions, question)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return questions, nil
}

func (r *SQLQuestionRepository) SetClosed(ctx context.Context, tx db.Transaction, id int64, closedAt time.Time) (*model.Question, error) {
	query := "UPDATE questions SET is_closed = TRUE, close_date = ? WHERE id = ?"
	// RowsAffected is not used: MySQL reports 0 for a matched but unchanged row.
	if _, err := db.GetQuerier(r.db, tx).Exec(ctx, query, toMillis(closedAt), id); err != nil {
		return nil, err
	}
	return r.GetByID(ctx, tx, id)
}

func (r *SQLQuestionRepository) CloseIfOpen(ctx context.Context, tx db.Transaction, id int64, closedAt time.Time) (*model.Question, bool, error) {
	query := "UPDATE questions SET is_closed = TRUE, close_date = ? WHERE id = ? AND is_closed = FALSE"
	result, err := db.GetQuerier(r.db, tx).Exec(ctx, query, toMillis(closedAt), id)
	if err != nil {
		return nil, false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, false, err
	}
	question, err := r.GetByID(ctx, tx, id)
	if err != nil {
		return nil, false, err
	}
	return question, affected > 0, nil
}

func (r *SQLQuestionRepository) Delete(ctx context.Context, tx db.Transaction, id int64) error {
	result, err := db.GetQuerier(r.db, tx).Exec(ctx, "DELETE FROM questions WHERE id = ?", id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrQuestionNotFound
	}
	return nil
}

// InvalidateAccessCode drops the cached lookup for accessCode.
func (r *SQLQuestionRepository) InvalidateAccessCode(ctx context.Context, accessCode string) error {
	if r.cache == nil || accessCode == "" {
		return nil
	}
	return r.cache.Del(ctx, accessCodeKey(accessCode))
}

func accessCodeKey(accessCode string) string {
	return accessCodeKeyPrefix + accessCode
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanQuestion(row rowScanner) (*model.Question, error) {
	var (
		question  model.Question
		createdAt int64
		closeDate sql.NullInt64
	)
	if err := row.Scan(
		&question.ID,
		&question.Title,
		&question.Text,
		&question.AccessCode,
		&question.IsClosed,
		&createdAt,
		&closeDate,
	); err != nil {
		return nil, err
	}
	question.CreatedAt = fromMillis(createdAt)
	question.CloseDate = fromNullMillis(closeDate)
	return &question, nil
}
