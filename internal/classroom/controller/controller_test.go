package controller_test

import (
	"net/http"
	"strings"
	"testing"

	"classqa/internal/classroom/controller"
	pkgerrors "classqa/pkg/errors"
)

func createQuestion(t *testing.T, srv *testServer, title, text, code string) controller.QuestionResponse {
	t.Helper()
	rec, resp := srv.do(t, http.MethodPost, "/api/v1/questions", map[string]string{
		"title": title, "text": text, "access_code": code,
	}, true)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create question failed: %d %s", rec.Code, rec.Body.String())
	}
	var q controller.QuestionResponse
	decodeData(t, resp, &q)
	return q
}

func TestCapitalsFlowOverHTTP(t *testing.T) {
	srv := newTestServer(t)
	q := createQuestion(t, srv, "Capitals", "Capital of France?", "Q1")
	if q.Status != "open" || q.CloseDate != nil {
		t.Fatalf("unexpected new question: %+v", q)
	}

	rec, resp := srv.do(t, http.MethodPost, "/api/v1/answers/question/Q1", map[string]string{"student_id": "s1"}, false)
	if rec.Code != http.StatusOK {
		t.Fatalf("open question failed: %d %s", rec.Code, rec.Body.String())
	}
	var view controller.StudentQuestionResponse
	decodeData(t, resp, &view)
	if view.Answer != nil || view.Title != "Capitals" {
		t.Fatalf("unexpected student view: %+v", view)
	}

	for _, text := range []string{"Paris", "Berlin"} {
		rec, resp = srv.do(t, http.MethodPost, "/api/v1/answers/submit", map[string]string{
			"access_code": "Q1", "student_id": "s1", "text": text,
		}, false)
		if rec.Code != http.StatusOK {
			t.Fatalf("submit %s failed: %d %s", text, rec.Code, rec.Body.String())
		}
		if resp.Message != "Answer submitted successfully" {
			t.Fatalf("unexpected message: %q", resp.Message)
		}
	}

	rec, resp = srv.do(t, http.MethodGet, "/api/v1/questions/1/answers", nil, true)
	if rec.Code != http.StatusOK {
		t.Fatalf("list answers failed: %d", rec.Code)
	}
	var answers []controller.AnswerResponse
	decodeData(t, resp, &answers)
	if len(answers) != 1 || answers[0].Text != "Berlin" || answers[0].StudentName != "Ada" {
		t.Fatalf("unexpected answers: %+v", answers)
	}

	rec, _ = srv.do(t, http.MethodPatch, "/api/v1/questions/1/close", nil, true)
	if rec.Code != http.StatusOK {
		t.Fatalf("close failed: %d", rec.Code)
	}
	rec, resp = srv.do(t, http.MethodPatch, "/api/v1/questions/1/close", nil, true)
	if rec.Code != http.StatusConflict || resp.Kind != string(pkgerrors.KindConflict) {
		t.Fatalf("expected conflict on second close, got %d %+v", rec.Code, resp)
	}

	rec, resp = srv.do(t, http.MethodPost, "/api/v1/answers/submit", map[string]string{
		"access_code": "Q1", "student_id": "s2", "text": "Paris",
	}, false)
	if rec.Code != http.StatusForbidden || resp.Code != int(pkgerrors.QuestionClosed) {
		t.Fatalf("expected closed rejection, got %d %+v", rec.Code, resp)
	}
}

func TestSubmitErrorStatuses(t *testing.T) {
	srv := newTestServer(t)
	createQuestion(t, srv, "T", "t", "OPEN")

	tests := []struct {
		name string
		body map[string]string
		want int
		kind pkgerrors.Kind
	}{
		{"too long", map[string]string{"access_code": "OPEN", "student_id": "s1", "text": strings.Repeat("x", 201)}, http.StatusBadRequest, pkgerrors.KindValidation},
		{"unknown code", map[string]string{"access_code": "NOPE", "student_id": "s1", "text": "x"}, http.StatusNotFound, pkgerrors.KindNotFound},
		{"unknown student", map[string]string{"access_code": "OPEN", "student_id": "ghost", "text": "x"}, http.StatusNotFound, pkgerrors.KindNotFound},
		{"legacy answer_text field", map[string]string{"access_code": "OPEN", "student_id": "s2", "answer_text": "x"}, http.StatusOK, pkgerrors.KindNone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, resp := srv.do(t, http.MethodPost, "/api/v1/answers/submit", tt.body, false)
			if rec.Code != tt.want || resp.Kind != string(tt.kind) {
				t.Fatalf("expected %d/%s, got %d/%s", tt.want, tt.kind, rec.Code, resp.Kind)
			}
		})
	}

	rec, resp := srv.do(t, http.MethodPost, "/api/v1/answers/submit", map[string]string{"access_code": "OPEN", "student_id": "s1"}, false)
	if rec.Code != http.StatusBadRequest || resp.Code != int(pkgerrors.RequiredFieldEmpty) {
		t.Fatalf("missing text must be rejected as an empty field, got %d %+v", rec.Code, resp)
	}
}

func TestTeacherRoutesRequireToken(t *testing.T) {
	srv := newTestServer(t)
	rec, _ := srv.do(t, http.MethodGet, "/api/v1/questions", nil, false)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}
}

func TestLoginWrongPasscode(t *testing.T) {
	srv := newTestServer(t)
	rec, resp := srv.do(t, http.MethodPost, "/api/v1/auth/login", map[string]string{"passcode": "nope"}, false)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	var login controller.LoginResponse
	decodeData(t, resp, &login)
	if login.Success || login.Token != "" {
		t.Fatalf("unexpected login response: %+v", login)
	}
}

func TestQuestionListingAndFilters(t *testing.T) {
	srv := newTestServer(t)
	createQuestion(t, srv, "A", "a", "A")
	createQuestion(t, srv, "B", "b", "B")
	srv.do(t, http.MethodPost, "/api/v1/answers/submit", map[string]string{"access_code": "A", "student_id": "s1", "text": "x"}, false)
	srv.do(t, http.MethodPatch, "/api/v1/questions/2/close", nil, true)

	rec, resp := srv.do(t, http.MethodGet, "/api/v1/questions?status=open", nil, true)
	if rec.Code != http.StatusOK {
		t.Fatalf("list failed: %d", rec.Code)
	}
	var open []controller.QuestionResponse
	decodeData(t, resp, &open)
	if len(open) != 1 || open[0].AccessCode != "A" || open[0].AnswerCount == nil || *open[0].AnswerCount != 1 {
		t.Fatalf("unexpected open listing: %+v", open)
	}

	rec, _ = srv.do(t, http.MethodGet, "/api/v1/questions?status=bogus", nil, true)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad filter, got %d", rec.Code)
	}

	rec, _ = srv.do(t, http.MethodPost, "/api/v1/questions", map[string]string{"title": "dup", "text": "t", "access_code": "A"}, true)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 for duplicate code, got %d", rec.Code)
	}
}

func TestSummaryAndSearchOverHTTP(t *testing.T) {
	srv := newTestServer(t)
	createQuestion(t, srv, "Capitals", "Capital of France?", "Q1")

	rec, resp := srv.do(t, http.MethodPost, "/api/v1/questions/1/summary", map[string]string{"summary_instructions": "brief"}, true)
	if rec.Code != http.StatusBadRequest || resp.Code != int(pkgerrors.EmptyAnswerSet) {
		t.Fatalf("expected empty answer set, got %d %+v", rec.Code, resp)
	}

	srv.do(t, http.MethodPost, "/api/v1/answers/submit", map[string]string{"access_code": "Q1", "student_id": "s1", "text": "Paris"}, false)
	rec, resp = srv.do(t, http.MethodPost, "/api/v1/questions/1/summary", map[string]string{"summary_instructions": "brief"}, true)
	if rec.Code != http.StatusOK {
		t.Fatalf("summary failed: %d %s", rec.Code, rec.Body.String())
	}
	var summary controller.SummaryResponse
	decodeData(t, resp, &summary)
	if summary.Summary != "Mostly Paris." {
		t.Fatalf("unexpected summary: %+v", summary)
	}

	srv.ai.search = "[1, 99]"
	rec, resp = srv.do(t, http.MethodPost, "/api/v1/questions/search", map[string]interface{}{"query": "geography"}, true)
	if rec.Code != http.StatusOK {
		t.Fatalf("search failed: %d %s", rec.Code, rec.Body.String())
	}
	var found controller.SmartSearchResponse
	decodeData(t, resp, &found)
	if len(found.MatchingQuestionIDs) != 1 || found.MatchingQuestionIDs[0] != 1 {
		t.Fatalf("unexpected search result: %+v", found)
	}

	rec, resp = srv.do(t, http.MethodPost, "/api/v1/questions/search", map[string]interface{}{"query": "x", "available_questions": []interface{}{}}, true)
	decodeData(t, resp, &found)
	if rec.Code != http.StatusOK || found.MatchingQuestionIDs == nil || len(found.MatchingQuestionIDs) != 0 {
		t.Fatalf("expected empty result for empty candidates, got %d %+v", rec.Code, found)
	}
}

func TestStudentsEndpoints(t *testing.T) {
	srv := newTestServer(t)
	rec, _ := srv.do(t, http.MethodGet, "/api/v1/students/s1", nil, false)
	if rec.Code != http.StatusOK {
		t.Fatalf("get student failed: %d", rec.Code)
	}
	rec, _ = srv.do(t, http.MethodGet, "/api/v1/students/ghost", nil, false)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	rec, _ = srv.do(t, http.MethodGet, "/health", nil, false)
	if rec.Code != http.StatusOK {
		t.Fatalf("health failed: %d", rec.Code)
	}
}
