package service

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"classqa/internal/classroom/model"
	"classqa/internal/classroom/repository"
	"classqa/internal/common/db"
	"classqa/internal/student"
	pkgerrors "classqa/pkg/errors"
	"classqa/pkg/utils/logger"

	"go.uber.org/zap"
)

// LifecycleConfig holds configuration for LifecycleService.
type LifecycleConfig struct {
	// Clock overrides time.Now for close dates.
	Clock func() time.Time
}

// LifecycleService owns the question open/close lifecycle and answer submission rules.
type LifecycleService struct {
	dbProvider db.Provider
	questions  repository.QuestionRepository
	answers    repository.AnswerRepository
	students   student.Directory
	events     EventPublisher
	now        func() time.Time
}

// NewLifecycleService creates a new LifecycleService. events may be nil.
func NewLifecycleService(
	provider db.Provider,
	questions repository.QuestionRepository,
	answers repository.AnswerRepository,
	students student.Directory,
	events EventPublisher,
	cfg LifecycleConfig,
) *LifecycleService {
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	return &LifecycleService{
		dbProvider: provider,
		questions:  questions,
		answers:    answers,
		students:   students,
		events:     events,
		now:        cfg.Clock,
	}
}

// CreateQuestionInput represents input for question creation.
type CreateQuestionInput struct {
	Title      string
	Text       string
	AccessCode string
}

// QuestionWithCount is a question plus the number of answers it holds.
type QuestionWithCount struct {
	*model.Question
	AnswerCount int64
}

// StudentQuestionView is what a student sees when opening a question by code.
type StudentQuestionView struct {
	ID             int64
	Title          string
	Text           string
	IsClosed       bool
	PreviousAnswer *string
}

// SubmitAnswerInput represents a student's answer submission.
type SubmitAnswerInput struct {
	AccessCode string
	StudentID  string
	Text       string
}

// CreateQuestion stores a new open question under a unique access code.
func (s *LifecycleService) CreateQuestion(ctx context.Context, input CreateQuestionInput) (*model.Question, error) {
	question, err := s.questions.Create(ctx, nil, input.Title, input.Text, input.AccessCode)
	if err != nil {
		if errors.Is(err, repository.ErrAccessCodeExists) {
			return nil, pkgerrors.New(pkgerrors.AccessCodeExists).WithDetail("access_code", input.AccessCode)
		}
		return nil, pkgerrors.Wrap(fmt.Errorf("create question failed: %w", err), pkgerrors.DatabaseError)
	}
	s.publish(ctx, model.QuestionEventOpened, question)
	return question, nil
}

// GetQuestion returns one question with its answer count.
func (s *LifecycleService) GetQuestion(ctx context.Context, questionID int64) (*QuestionWithCount, error) {
	question, err := s.getQuestion(ctx, nil, questionID)
	if err != nil {
		return nil, err
	}
	count, err := s.answers.CountByQuestion(ctx, nil, questionID)
	if err != nil {
		return nil, pkgerrors.Wrap(fmt.Errorf("count answers failed: %w", err), pkgerrors.DatabaseError)
	}
	return &QuestionWithCount{Question: question, AnswerCount: count}, nil
}

// ListQuestions returns questions matching filter, oldest first, with answer counts.
func (s *LifecycleService) ListQuestions(ctx context.Context, filter model.StatusFilter) ([]QuestionWithCount, error) {
	questions, err := s.questions.List(ctx, nil, filter)
	if err != nil {
		return nil, pkgerrors.Wrap(fmt.Errorf("list questions failed: %w", err), pkgerrors.DatabaseError)
	}
	ids := make([]int64, 0, len(questions))
	for _, q := range questions {
		ids = append(ids, q.ID)
	}
	counts, err := s.answers.CountByQuestions(ctx, nil, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(fmt.Errorf("count answers failed: %w", err), pkgerrors.DatabaseError)
	}
	result := make([]QuestionWithCount, 0, len(questions))
	for _, q := range questions {
		result = append(result, QuestionWithCount{Question: q, AnswerCount: counts[q.ID]})
	}
	return result, nil
}

// CloseQuestion moves an open question to closed. Closing twice is a conflict.
func (s *LifecycleService) CloseQuestion(ctx context.Context, questionID int64) (*model.Question, error) {
	var closed *model.Question
	err := s.withTransaction(ctx, func(tx db.Transaction) error {
		question, err := s.lockQuestion(ctx, tx, questionID)
		if err != nil {
			return err
		}
		if question.IsClosed {
			return pkgerrors.New(pkgerrors.QuestionAlreadyClosed).WithDetail("question_id", questionID)
		}
		var changed bool
		closed, changed, err = s.questions.CloseIfOpen(ctx, tx, questionID, s.now().UTC())
		if err != nil {
			if errors.Is(err, repository.ErrQuestionNotFound) {
				return pkgerrors.New(pkgerrors.QuestionNotFound)
			}
			return pkgerrors.Wrap(fmt.Errorf("close question failed: %w", err), pkgerrors.DatabaseError)
		}
		if !changed {
			return pkgerrors.New(pkgerrors.QuestionAlreadyClosed).WithDetail("question_id", questionID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, model.QuestionEventClosed, closed)
	return closed, nil
}

// DeleteQuestion removes a question and all of its answers.
func (s *LifecycleService) DeleteQuestion(ctx context.Context, questionID int64) error {
	var deleted *model.Question
	err := s.withTransaction(ctx, func(tx db.Transaction) error {
		question, err := s.lockQuestion(ctx, tx, questionID)
		if err != nil {
			return err
		}
		if _, err := s.answers.DeleteByQuestion(ctx, tx, questionID); err != nil {
			return pkgerrors.Wrap(fmt.Errorf("delete answers failed: %w", err), pkgerrors.DatabaseError)
		}
		if err := s.questions.Delete(ctx, tx, questionID); err != nil {
			if errors.Is(err, repository.ErrQuestionNotFound) {
				return pkgerrors.New(pkgerrors.QuestionNotFound)
			}
			return pkgerrors.Wrap(fmt.Errorf("delete question failed: %w", err), pkgerrors.DatabaseError)
		}
		deleted = question
		return nil
	})
	if err != nil {
		return err
	}
	if err := s.questions.InvalidateAccessCode(ctx, deleted.AccessCode); err != nil {
		logger.Warn(ctx, "invalidate access code cache failed", zap.String("access_code", deleted.AccessCode), zap.Error(err))
	}
	s.publish(ctx, model.QuestionEventDeleted, deleted)
	return nil
}

// SubmitAnswer records or overwrites a student's answer. Checks run in a fixed
// order: length, question existence, closed state, then student identity.
func (s *LifecycleService) SubmitAnswer(ctx context.Context, input SubmitAnswerInput) (*model.NamedAnswer, error) {
	if utf8.RuneCountInString(input.Text) > model.MaxAnswerLength {
		return nil, pkgerrors.New(pkgerrors.AnswerTooLong).WithDetail("max_length", model.MaxAnswerLength)
	}
	question, err := s.questionByCode(ctx, input.AccessCode)
	if err != nil {
		return nil, err
	}
	if question.IsClosed {
		return nil, pkgerrors.New(pkgerrors.QuestionClosed)
	}
	if err := s.requireStudent(ctx, input.StudentID); err != nil {
		return nil, err
	}

	// The closed flag is checked again under the row lock, so a concurrent
	// close either lands first or waits for this answer.
	var answer *model.Answer
	err = s.withTransaction(ctx, func(tx db.Transaction) error {
		current, err := s.lockQuestion(ctx, tx, question.ID)
		if err != nil {
			return err
		}
		if current.IsClosed {
			return pkgerrors.New(pkgerrors.QuestionClosed)
		}
		answer, err = s.answers.Upsert(ctx, tx, question.ID, input.StudentID, input.Text)
		if err != nil {
			return pkgerrors.Wrap(fmt.Errorf("upsert answer failed: %w", err), pkgerrors.DatabaseError)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	logger.Info(ctx, "answer submitted",
		zap.Int64("question_id", question.ID),
		zap.String("student_id", input.StudentID),
	)
	return &model.NamedAnswer{Answer: *answer, StudentName: s.displayName(ctx, input.StudentID)}, nil
}

// GetQuestionForStudent returns the question behind accessCode with the
// student's previous answer, if any.
func (s *LifecycleService) GetQuestionForStudent(ctx context.Context, accessCode, studentID string) (*StudentQuestionView, error) {
	question, err := s.questionByCode(ctx, accessCode)
	if err != nil {
		return nil, err
	}
	if err := s.requireStudent(ctx, studentID); err != nil {
		return nil, err
	}
	view := &StudentQuestionView{
		ID:       question.ID,
		Title:    question.Title,
		Text:     question.Text,
		IsClosed: question.IsClosed,
	}
	previous, err := s.answers.Find(ctx, nil, question.ID, studentID)
	if err != nil {
		return nil, pkgerrors.Wrap(fmt.Errorf("find answer failed: %w", err), pkgerrors.DatabaseError)
	}
	if previous != nil {
		text := previous.Text
		view.PreviousAnswer = &text
	}
	return view, nil
}

// ListAnswers returns a question's answers newest first with display names.
func (s *LifecycleService) ListAnswers(ctx context.Context, questionID int64) ([]*model.NamedAnswer, error) {
	if _, err := s.getQuestion(ctx, nil, questionID); err != nil {
		return nil, err
	}
	answers, err := s.answers.ListByQuestion(ctx, nil, questionID)
	if err != nil {
		return nil, pkgerrors.Wrap(fmt.Errorf("list answers failed: %w", err), pkgerrors.DatabaseError)
	}
	return enrichAnswers(ctx, s.students, answers), nil
}

func (s *LifecycleService) getQuestion(ctx context.Context, tx db.Transaction, questionID int64) (*model.Question, error) {
	question, err := s.questions.GetByID(ctx, tx, questionID)
	if err != nil {
		if errors.Is(err, repository.ErrQuestionNotFound) {
			return nil, pkgerrors.New(pkgerrors.QuestionNotFound).WithDetail("question_id", questionID)
		}
		return nil, pkgerrors.Wrap(fmt.Errorf("get question failed: %w", err), pkgerrors.DatabaseError)
	}
	return question, nil
}

func (s *LifecycleService) lockQuestion(ctx context.Context, tx db.Transaction, questionID int64) (*model.Question, error) {
	question, err := s.questions.GetByIDForUpdate(ctx, tx, questionID)
	if err != nil {
		if errors.Is(err, repository.ErrQuestionNotFound) {
			return nil, pkgerrors.New(pkgerrors.QuestionNotFound).WithDetail("question_id", questionID)
		}
		return nil, pkgerrors.Wrap(fmt.Errorf("lock question failed: %w", err), pkgerrors.DatabaseError)
	}
	return question, nil
}

func (s *LifecycleService) questionByCode(ctx context.Context, accessCode string) (*model.Question, error) {
	question, err := s.questions.GetByAccessCode(ctx, nil, accessCode)
	if err != nil {
		return nil, pkgerrors.Wrap(fmt.Errorf("get question by code failed: %w", err), pkgerrors.DatabaseError)
	}
	if question == nil {
		return nil, pkgerrors.New(pkgerrors.QuestionNotFound)
	}
	return question, nil
}

func (s *LifecycleService) requireStudent(ctx context.Context, studentID string) error {
	_, ok, err := s.students.Lookup(ctx, studentID)
	if err != nil {
		return pkgerrors.Wrap(fmt.Errorf("lookup student failed: %w", err), pkgerrors.RosterUnavailable)
	}
	if !ok {
		return pkgerrors.New(pkgerrors.StudentNotFound).WithDetail("student_id", studentID)
	}
	return nil
}

func (s *LifecycleService) displayName(ctx context.Context, studentID string) string {
	return lookupName(ctx, s.students, studentID)
}

func (s *LifecycleService) publish(ctx context.Context, eventType model.QuestionEventType, question *model.Question) {
	if s.events == nil || question == nil {
		return
	}
	event := model.QuestionEvent{
		EventType:  eventType,
		QuestionID: question.ID,
		AccessCode: question.AccessCode,
		OccurredAt: s.now().UTC(),
	}
	if err := s.events.Publish(ctx, event); err != nil {
		logger.Warn(ctx, "publish question event failed",
			zap.String("event_type", string(eventType)),
			zap.Int64("question_id", question.ID),
			zap.Error(err),
		)
	}
}

func (s *LifecycleService) withTransaction(ctx context.Context, fn func(tx db.Transaction) error) error {
	database, err := db.CurrentDatabase(s.dbProvider)
	if err != nil {
		return fn(nil)
	}
	if err := database.Transaction(ctx, fn); err != nil {
		var coded *pkgerrors.Error
		if errors.As(err, &coded) {
			return err
		}
		return pkgerrors.Wrap(fmt.Errorf("transaction failed: %w", err), pkgerrors.TransactionFailed)
	}
	return nil
}
