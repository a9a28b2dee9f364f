package controller_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"classqa/internal/auth"
	"classqa/internal/classroom/controller"
	"classqa/internal/classroom/model"
	"classqa/internal/classroom/repository"
	"classqa/internal/classroom/service"
	"classqa/internal/common/db"

	"github.com/gin-gonic/gin"
)

var dbSeq atomic.Int64

type apiResponse struct {
	Code    int             `json:"code"`
	Kind    string          `json:"kind"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	TraceID string          `json:"trace_id"`
}

type staticDirectory map[string]string

func (d staticDirectory) Lookup(ctx context.Context, id string) (model.Student, bool, error) {
	name, ok := d[id]
	return model.Student{ID: id, Name: name}, ok, nil
}

func (d staticDirectory) List(ctx context.Context) ([]model.Student, error) {
	out := make([]model.Student, 0, len(d))
	for _, id := range []string{"s1", "s2"} {
		if name, ok := d[id]; ok {
			out = append(out, model.Student{ID: id, Name: name})
		}
	}
	return out, nil
}

type fakeAI struct {
	summary string
	search  string
}

func (f *fakeAI) Summarize(ctx context.Context, req model.SummaryRequest) (string, error) {
	return f.summary, nil
}

func (f *fakeAI) Search(ctx context.Context, query string, candidates []model.SearchCandidate) (string, error) {
	return f.search, nil
}

type testServer struct {
	router *gin.Engine
	token  string
	ai     *fakeAI
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:classqa_ctl_%d?mode=memory&cache=shared", dbSeq.Add(1))
	database, err := db.Open(&db.Config{Driver: "sqlite", DSN: dsn})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	t.Cleanup(func() { _ = database.Close() })
	if err := repository.EnsureSchema(t.Context(), database); err != nil {
		t.Fatalf("ensure schema failed: %v", err)
	}

	questions := repository.NewQuestionRepository(database, nil)
	answers := repository.NewAnswerRepository(database, nil)
	directory := staticDirectory{"s1": "Ada", "s2": "Grace"}
	ai := &fakeAI{summary: "Mostly Paris."}

	authService, err := auth.NewAuthService(auth.Config{Passcode: "letmein", JWTSecret: []byte("secret")}, nil)
	if err != nil {
		t.Fatalf("create auth service failed: %v", err)
	}
	router := controller.NewRouter(controller.RouterConfig{
		Lifecycle:   service.NewLifecycleService(db.NewStaticProvider(database), questions, answers, directory, nil, service.LifecycleConfig{}),
		Aggregation: service.NewAggregationService(questions, answers, directory, ai, ai, service.AggregationConfig{}),
		Students:    service.NewStudentService(directory),
		Auth:        authService,
	})

	srv := &testServer{router: router, ai: ai}
	rec, resp := srv.do(t, http.MethodPost, "/api/v1/auth/login", map[string]string{"passcode": "letmein"}, false)
	if rec.Code != http.StatusOK {
		t.Fatalf("login failed: %d %s", rec.Code, rec.Body.String())
	}
	var login controller.LoginResponse
	if err := json.Unmarshal(resp.Data, &login); err != nil {
		t.Fatalf("decode login failed: %v", err)
	}
	srv.token = login.Token
	return srv
}

func (s *testServer) do(t *testing.T, method, path string, body interface{}, teacher bool) (*httptest.ResponseRecorder, apiResponse) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("encode body failed: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if teacher {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	var resp apiResponse
	if rec.Body.Len() > 0 {
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode response failed: %v (%s)", err, rec.Body.String())
		}
	}
	return rec, resp
}

func decodeData(t *testing.T, resp apiResponse, out interface{}) {
	t.Helper()
	if err := json.Unmarshal(resp.Data, out); err != nil {
		t.Fatalf("decode data failed: %v (%s)", err, string(resp.Data))
	}
}
