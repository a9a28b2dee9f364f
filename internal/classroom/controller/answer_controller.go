package controller

import (
	"classqa/internal/classroom/service"
	pkgerrors "classqa/pkg/errors"
	"classqa/pkg/utils/response"

	"github.com/gin-gonic/gin"
)

// AnswerController handles student answer endpoints.
type AnswerController struct {
	lifecycle *service.LifecycleService
}

// NewAnswerController creates a new AnswerController.
func NewAnswerController(lifecycle *service.LifecycleService) *AnswerController {
	return &AnswerController{lifecycle: lifecycle}
}

// OpenQuestion returns the question behind an access code with the student's previous answer.
func (h *AnswerController) OpenQuestion(c *gin.Context) {
	var req OpenQuestionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request parameters")
		return
	}
	view, err := h.lifecycle.GetQuestionForStudent(c.Request.Context(), c.Param("access_code"), req.StudentID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, StudentQuestionResponse{
		ID:        view.ID,
		Title:     view.Title,
		Text:      view.Text,
		IsClosed:  view.IsClosed,
		StudentID: req.StudentID,
		Answer:    view.PreviousAnswer,
	})
}

// Submit records or overwrites a student's answer.
func (h *AnswerController) Submit(c *gin.Context) {
	var req SubmitAnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request parameters")
		return
	}
	text := req.Text
	if text == nil {
		text = req.AnswerText
	}
	if text == nil {
		response.ErrorWithCode(c, pkgerrors.RequiredFieldEmpty, "Answer text is required")
		return
	}

	answer, err := h.lifecycle.SubmitAnswer(c.Request.Context(), service.SubmitAnswerInput{
		AccessCode: req.AccessCode,
		StudentID:  req.StudentID,
		Text:       *text,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.SuccessWithMessage(c, "Answer submitted successfully", newAnswerResponse(answer))
}

// OpenQuestionRequest identifies the student opening a question.
type OpenQuestionRequest struct {
	StudentID string `json:"student_id" binding:"required"`
}

// StudentQuestionResponse is the student view of a question.
type StudentQuestionResponse struct {
	ID        int64   `json:"id"`
	Title     string  `json:"title"`
	Text      string  `json:"text"`
	IsClosed  bool    `json:"is_closed"`
	StudentID string  `json:"student_id"`
	Answer    *string `json:"answer"`
}

// SubmitAnswerRequest defines the answer submission payload. The answer may be
// sent as text or answer_text; an empty answer is allowed.
type SubmitAnswerRequest struct {
	AccessCode string  `json:"access_code" binding:"required"`
	StudentID  string  `json:"student_id" binding:"required"`
	Text       *string `json:"text"`
	AnswerText *string `json:"answer_text"`
}
