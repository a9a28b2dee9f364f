package httpclient_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	httpclient "classqa/internal/cli/http"
	pkgerrors "classqa/pkg/errors"
)

func TestDoSendsBearerToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("unexpected authorization %q", got)
		}
		body, _ := io.ReadAll(r.Body)
		if string(body) != `{"a":1}` {
			t.Errorf("unexpected body %q", body)
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"code":0}`))
	}))
	defer server.Close()

	client := httpclient.New(server.URL, time.Second, func() string { return "tok" })
	resp, err := client.Do(t.Context(), http.MethodPost, "/api/v1/questions", nil, []byte(`{"a":1}`))
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	if resp.StatusCode != http.StatusCreated || string(resp.Body) != `{"code":0}` {
		t.Fatalf("unexpected response %d %s", resp.StatusCode, resp.Body)
	}
}

func TestDoWithoutToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "" {
			t.Errorf("unexpected authorization %q", got)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := httpclient.New(server.URL, time.Second, func() string { return "" })
	if _, err := client.Do(t.Context(), http.MethodGet, "/api/v1/students", nil, nil); err != nil {
		t.Fatalf("do: %v", err)
	}
}

func TestDoDecodesErrorEnvelope(t *testing.T) {
	var sentTrace string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sentTrace = r.Header.Get("X-Trace-Id")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"code":12002,"kind":"conflict","message":"Question is already closed","trace_id":"` + sentTrace + `"}`))
	}))
	defer server.Close()

	client := httpclient.New(server.URL, time.Second, nil)
	resp, err := client.Do(t.Context(), http.MethodPatch, "/api/v1/questions/1/close", nil, nil)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	if sentTrace == "" {
		t.Fatalf("expected a generated trace id on the request")
	}
	if !resp.Failed() {
		t.Fatalf("expected a failed response")
	}
	if resp.Code != pkgerrors.QuestionAlreadyClosed || resp.Kind != pkgerrors.KindConflict {
		t.Fatalf("unexpected envelope %d/%s", resp.Code, resp.Kind)
	}
	if resp.Message != "Question is already closed" || resp.TraceID != sentTrace {
		t.Fatalf("unexpected message %q or trace %q", resp.Message, resp.TraceID)
	}
}

func TestDoDecodesSuccessData(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("X-Trace-Id"); got != "cli-trace" {
			t.Errorf("caller trace id must win, got %q", got)
		}
		w.Header().Set("X-Trace-Id", "cli-trace")
		_, _ = w.Write([]byte(`{"code":10000,"message":"Success","data":{"token":"abc"}}`))
	}))
	defer server.Close()

	client := httpclient.New(server.URL+"/", time.Second, nil)
	resp, err := client.Do(t.Context(), http.MethodPost, "/api/v1/auth/login", map[string]string{"X-Trace-Id": "cli-trace"}, []byte(`{}`))
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	if resp.Failed() || resp.Code != pkgerrors.Success {
		t.Fatalf("expected success, got %d %+v", resp.StatusCode, resp)
	}
	if string(resp.Data) != `{"token":"abc"}` {
		t.Fatalf("unexpected data %s", resp.Data)
	}
	if resp.TraceID != "cli-trace" {
		t.Fatalf("expected trace id from the response header, got %q", resp.TraceID)
	}
}

func TestDoNonEnvelopeBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream down"))
	}))
	defer server.Close()

	resp, err := httpclient.New(server.URL, time.Second, nil).Do(t.Context(), http.MethodGet, "/health", nil, nil)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	if !resp.Failed() || resp.Code != 0 || string(resp.Body) != "upstream down" {
		t.Fatalf("unexpected response %+v", resp)
	}
}
