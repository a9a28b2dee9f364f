package controller

import (
	"strconv"
	"time"

	"classqa/internal/classroom/model"
	"classqa/internal/classroom/service"
	"classqa/pkg/utils/response"

	"github.com/gin-gonic/gin"
)

// QuestionController handles teacher question endpoints.
type QuestionController struct {
	lifecycle *service.LifecycleService
}

// NewQuestionController creates a new QuestionController.
func NewQuestionController(lifecycle *service.LifecycleService) *QuestionController {
	return &QuestionController{lifecycle: lifecycle}
}

// Create handles question creation.
func (h *QuestionController) Create(c *gin.Context) {
	var req CreateQuestionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request parameters")
		return
	}

	question, err := h.lifecycle.CreateQuestion(c.Request.Context(), service.CreateQuestionInput{
		Title:      req.Title,
		Text:       req.Text,
		AccessCode: req.AccessCode,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, "Question created", newQuestionResponse(question, nil))
}

// List handles question listing with an optional ?status=open|closed|all filter.
func (h *QuestionController) List(c *gin.Context) {
	filter, ok := model.ParseStatusFilter(c.Query("status"))
	if !ok {
		response.BadRequest(c, "Invalid status filter")
		return
	}
	questions, err := h.lifecycle.ListQuestions(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	items := make([]QuestionResponse, 0, len(questions))
	for _, q := range questions {
		count := q.AnswerCount
		items = append(items, newQuestionResponse(q.Question, &count))
	}
	response.Success(c, items)
}

// Get handles question detail.
func (h *QuestionController) Get(c *gin.Context) {
	questionID, ok := parseQuestionID(c)
	if !ok {
		return
	}
	question, err := h.lifecycle.GetQuestion(c.Request.Context(), questionID)
	if err != nil {
		response.Error(c, err)
		return
	}
	count := question.AnswerCount
	response.Success(c, newQuestionResponse(question.Question, &count))
}

// Close handles closing a question.
func (h *QuestionController) Close(c *gin.Context) {
	questionID, ok := parseQuestionID(c)
	if !ok {
		return
	}
	question, err := h.lifecycle.CloseQuestion(c.Request.Context(), questionID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.SuccessWithMessage(c, "Question closed", newQuestionResponse(question, nil))
}

// Delete handles administrative question removal.
func (h *QuestionController) Delete(c *gin.Context) {
	questionID, ok := parseQuestionID(c)
	if !ok {
		return
	}
	if err := h.lifecycle.DeleteQuestion(c.Request.Context(), questionID); err != nil {
		response.Error(c, err)
		return
	}
	response.SuccessWithMessage(c, "Delete success", nil)
}

// Answers handles listing a question's answers, newest first.
func (h *QuestionController) Answers(c *gin.Context) {
	questionID, ok := parseQuestionID(c)
	if !ok {
		return
	}
	answers, err := h.lifecycle.ListAnswers(c.Request.Context(), questionID)
	if err != nil {
		response.Error(c, err)
		return
	}
	items := make([]AnswerResponse, 0, len(answers))
	for _, a := range answers {
		items = append(items, newAnswerResponse(a))
	}
	response.Success(c, items)
}

func parseQuestionID(c *gin.Context) (int64, bool) {
	questionID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || questionID <= 0 {
		response.BadRequest(c, "Invalid question id")
		return 0, false
	}
	return questionID, true
}

// CreateQuestionRequest defines question creation payload.
type CreateQuestionRequest struct {
	Title      string `json:"title" binding:"required"`
	Text       string `json:"text" binding:"required"`
	AccessCode string `json:"access_code" binding:"required"`
}

// QuestionResponse defines the teacher view of a question.
type QuestionResponse struct {
	ID          int64   `json:"id"`
	Title       string  `json:"title"`
	Text        string  `json:"text"`
	AccessCode  string  `json:"access_code"`
	IsClosed    bool    `json:"is_closed"`
	Status      string  `json:"status"`
	CreatedAt   string  `json:"created_at"`
	CloseDate   *string `json:"close_date"`
	AnswerCount *int64  `json:"answer_count,omitempty"`
}

func newQuestionResponse(q *model.Question, answerCount *int64) QuestionResponse {
	resp := QuestionResponse{
		ID:          q.ID,
		Title:       q.Title,
		Text:        q.Text,
		AccessCode:  q.AccessCode,
		IsClosed:    q.IsClosed,
		Status:      string(q.Status()),
		CreatedAt:   formatTime(q.CreatedAt),
		AnswerCount: answerCount,
	}
	if q.CloseDate != nil {
		closeDate := formatTime(*q.CloseDate)
		resp.CloseDate = &closeDate
	}
	return resp
}

// AnswerResponse defines an answer with the student's display name.
type AnswerResponse struct {
	ID          int64  `json:"id"`
	QuestionID  int64  `json:"question_id"`
	StudentID   string `json:"student_id"`
	StudentName string `json:"student_name"`
	Text        string `json:"text"`
	Timestamp   string `json:"timestamp"`
}

func newAnswerResponse(a *model.NamedAnswer) AnswerResponse {
	return AnswerResponse{
		ID:          a.ID,
		QuestionID:  a.QuestionID,
		StudentID:   a.StudentID,
		StudentName: a.StudentName,
		Text:        a.Text,
		Timestamp:   formatTime(a.Timestamp),
	}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
