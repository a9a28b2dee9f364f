package controller

import (
	"classqa/internal/classroom/model"
	"classqa/internal/classroom/service"
	"classqa/pkg/utils/response"

	"github.com/gin-gonic/gin"
)

// AggregationController handles summary and smart search endpoints.
type AggregationController struct {
	aggregation *service.AggregationService
}

// NewAggregationController creates a new AggregationController.
func NewAggregationController(aggregation *service.AggregationService) *AggregationController {
	return &AggregationController{aggregation: aggregation}
}

// Summarize produces a summary of a question's answers.
func (h *AggregationController) Summarize(c *gin.Context) {
	questionID, ok := parseQuestionID(c)
	if !ok {
		return
	}
	var req SummaryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request parameters")
		return
	}
	summary, err := h.aggregation.Summarize(c.Request.Context(), questionID, req.Instructions)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, SummaryResponse{Summary: summary})
}

// Search selects questions matching a free text query.
func (h *AggregationController) Search(c *gin.Context) {
	var req SmartSearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request parameters")
		return
	}
	var candidates []model.SearchCandidate
	if req.AvailableQuestions != nil {
		candidates = make([]model.SearchCandidate, 0, len(req.AvailableQuestions))
		for _, q := range req.AvailableQuestions {
			candidates = append(candidates, model.SearchCandidate{ID: q.ID, Title: q.Title, Text: q.Text})
		}
	}
	ids, err := h.aggregation.SmartSearch(c.Request.Context(), req.Query, candidates)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, SmartSearchResponse{MatchingQuestionIDs: ids})
}

// SummaryRequest defines the summary payload.
type SummaryRequest struct {
	Instructions string `json:"summary_instructions"`
}

// SummaryResponse defines the summary result.
type SummaryResponse struct {
	Summary string `json:"summary"`
}

// SearchQuestion is one candidate sent by the client.
type SearchQuestion struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
	Text  string `json:"text"`
}

// SmartSearchRequest defines the smart search payload. Omitting
// available_questions searches every stored question.
type SmartSearchRequest struct {
	Query              string           `json:"query"`
	AvailableQuestions []SearchQuestion `json:"available_questions"`
}

// SmartSearchResponse defines the smart search result.
type SmartSearchResponse struct {
	MatchingQuestionIDs []int64 `json:"matching_question_ids"`
}
