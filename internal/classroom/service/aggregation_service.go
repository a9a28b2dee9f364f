package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"classqa/internal/classroom/model"
	"classqa/internal/classroom/repository"
	"classqa/internal/student"
	pkgerrors "classqa/pkg/errors"
	"classqa/pkg/utils/logger"

	"go.uber.org/zap"
)

const defaultCollaboratorTimeout = 30 * time.Second

// Summarizer turns a question's answers into prose.
type Summarizer interface {
	Summarize(ctx context.Context, req model.SummaryRequest) (string, error)
}

// Searcher picks matching questions. The reply is a raw, untrusted JSON array.
type Searcher interface {
	Search(ctx context.Context, query string, candidates []model.SearchCandidate) (string, error)
}

// AggregationConfig holds configuration for AggregationService.
type AggregationConfig struct {
	CollaboratorTimeout time.Duration
}

// AggregationService wraps the summarization and smart search collaborators.
// Every input check runs before the collaborator is called.
type AggregationService struct {
	questions  repository.QuestionRepository
	answers    repository.AnswerRepository
	students   student.Directory
	summarizer Summarizer
	searcher   Searcher
	config     AggregationConfig
}

// NewAggregationService creates a new AggregationService.
func NewAggregationService(
	questions repository.QuestionRepository,
	answers repository.AnswerRepository,
	students student.Directory,
	summarizer Summarizer,
	searcher Searcher,
	cfg AggregationConfig,
) *AggregationService {
	if cfg.CollaboratorTimeout <= 0 {
		cfg.CollaboratorTimeout = defaultCollaboratorTimeout
	}
	return &AggregationService{
		questions:  questions,
		answers:    answers,
		students:   students,
		summarizer: summarizer,
		searcher:   searcher,
		config:     cfg,
	}
}

// Summarize asks the summarizer to condense a question's answers following instructions.
func (s *AggregationService) Summarize(ctx context.Context, questionID int64, instructions string) (string, error) {
	if strings.TrimSpace(instructions) == "" {
		return "", pkgerrors.New(pkgerrors.EmptyInstructions)
	}
	question, err := s.questions.GetByID(ctx, nil, questionID)
	if err != nil {
		if errors.Is(err, repository.ErrQuestionNotFound) {
			return "", pkgerrors.New(pkgerrors.QuestionNotFound).WithDetail("question_id", questionID)
		}
		return "", pkgerrors.Wrap(fmt.Errorf("get question failed: %w", err), pkgerrors.DatabaseError)
	}
	answers, err := s.answers.ListByQuestion(ctx, nil, questionID)
	if err != nil {
		return "", pkgerrors.Wrap(fmt.Errorf("list answers failed: %w", err), pkgerrors.DatabaseError)
	}
	if len(answers) == 0 {
		return "", pkgerrors.New(pkgerrors.EmptyAnswerSet)
	}

	req := model.SummaryRequest{
		Context: model.SummaryContext{
			QuestionID:          question.ID,
			QuestionText:        question.Text,
			SummaryInstructions: instructions,
		},
		StudentAnswers: make([]model.SummaryAnswer, 0, len(answers)),
	}
	for _, a := range enrichAnswers(ctx, s.students, answers) {
		req.StudentAnswers = append(req.StudentAnswers, model.SummaryAnswer{
			StudentID:   a.StudentID,
			StudentName: a.StudentName,
			AnswerText:  a.Text,
			SubmittedAt: a.Timestamp.UTC().Format(time.RFC3339),
		})
	}

	if s.summarizer == nil {
		return "", pkgerrors.New(pkgerrors.SummarizationFailed)
	}
	callCtx, cancel := context.WithTimeout(ctx, s.config.CollaboratorTimeout)
	defer cancel()
	summary, err := s.summarizer.Summarize(callCtx, req)
	if err != nil {
		logger.Warn(ctx, "summarizer call failed", zap.Int64("question_id", questionID), zap.Error(err))
		return "", pkgerrors.Wrap(err, pkgerrors.SummarizationFailed)
	}
	summary = strings.TrimSpace(summary)
	if summary == "" {
		return "", pkgerrors.New(pkgerrors.SummarizationFailed).WithMessage("Summarizer returned an empty summary")
	}
	return summary, nil
}

// SmartSearch returns the ids of candidates matching query. A nil candidate list
// searches every stored question; an empty one matches nothing.
func (s *AggregationService) SmartSearch(ctx context.Context, query string, candidates []model.SearchCandidate) ([]int64, error) {
	if strings.TrimSpace(query) == "" {
		return nil, pkgerrors.New(pkgerrors.EmptyQuery)
	}
	if candidates == nil {
		all, err := s.questions.List(ctx, nil, model.FilterAll)
		if err != nil {
			return nil, pkgerrors.Wrap(fmt.Errorf("list questions failed: %w", err), pkgerrors.DatabaseError)
		}
		candidates = make([]model.SearchCandidate, 0, len(all))
		for _, q := range all {
			candidates = append(candidates, model.SearchCandidate{ID: q.ID, Title: q.Title, Text: q.Text})
		}
	}
	if len(candidates) == 0 {
		return []int64{}, nil
	}

	if s.searcher == nil {
		return nil, pkgerrors.New(pkgerrors.SearchFailed)
	}
	callCtx, cancel := context.WithTimeout(ctx, s.config.CollaboratorTimeout)
	defer cancel()
	raw, err := s.searcher.Search(callCtx, query, candidates)
	if err != nil {
		logger.Warn(ctx, "searcher call failed", zap.Error(err))
		return nil, pkgerrors.Wrap(err, pkgerrors.SearchFailed)
	}

	allowed := make(map[int64]struct{}, len(candidates))
	for _, c := range candidates {
		allowed[c.ID] = struct{}{}
	}
	ids, err := parseMatchingIDs(raw, allowed)
	if err != nil {
		logger.Warn(ctx, "searcher reply rejected", zap.String("reply", raw), zap.Error(err))
		return nil, pkgerrors.Wrap(err, pkgerrors.SearchFailed)
	}
	return ids, nil
}

// parseMatchingIDs reads the first JSON array out of reply and keeps the
// integral members of allowed, in reply order, without duplicates. Text around
// the array is ignored. A reply with no JSON array is an error; bad elements
// are skipped.
func parseMatchingIDs(reply string, allowed map[int64]struct{}) ([]int64, error) {
	elems, err := firstJSONArray(stripCodeFence(strings.TrimSpace(reply)))
	if err != nil {
		return nil, err
	}

	ids := make([]int64, 0, len(elems))
	seen := make(map[int64]struct{}, len(elems))
	for _, elem := range elems {
		id, ok := integralNumber(elem)
		if !ok {
			continue
		}
		if _, known := allowed[id]; !known {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids, nil
}

// firstJSONArray decodes the first '[' in body that starts a valid JSON array.
// Decoding stops at the end of that array, so trailing prose is never parsed.
func firstJSONArray(body string) ([]json.RawMessage, error) {
	var lastErr error
	for offset := 0; offset < len(body); {
		start := strings.IndexByte(body[offset:], '[')
		if start == -1 {
			break
		}
		start += offset
		var elems []json.RawMessage
		err := json.NewDecoder(strings.NewReader(body[start:])).Decode(&elems)
		if err == nil {
			return elems, nil
		}
		lastErr = err
		offset = start + 1
	}
	if lastErr != nil {
		return nil, fmt.Errorf("decode reply failed: %w", lastErr)
	}
	return nil, fmt.Errorf("reply is not a JSON array")
}

func integralNumber(elem json.RawMessage) (int64, bool) {
	decoder := json.NewDecoder(bytes.NewReader(elem))
	decoder.UseNumber()
	var value interface{}
	if err := decoder.Decode(&value); err != nil {
		return 0, false
	}
	number, ok := value.(json.Number)
	if !ok {
		return 0, false
	}
	if id, err := number.Int64(); err == nil {
		return id, true
	}
	f, err := number.Float64()
	if err != nil || f != math.Trunc(f) || math.Abs(f) > math.MaxInt64/2 {
		return 0, false
	}
	return int64(f), true
}

func stripCodeFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl != -1 {
		s = s[nl+1:]
	}
	return strings.TrimSuffix(strings.TrimSpace(s), "```")
}
