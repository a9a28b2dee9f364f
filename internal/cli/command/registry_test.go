package command_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"classqa/internal/cli/command"
)

func mustCommand(t *testing.T, key string) command.Command {
	t.Helper()
	cmd, ok := command.Registry()[key]
	if !ok {
		t.Fatalf("command %q not registered", key)
	}
	return cmd
}

func decodeBody(t *testing.T, body []byte) map[string]string {
	t.Helper()
	var payload map[string]string
	if err := json.Unmarshal(body, &payload); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	return payload
}

func TestBuildRequestSubmitUsesAliases(t *testing.T) {
	cmd := mustCommand(t, "answer submit")
	params := command.Params{}
	params.Set("code", "GEO1")
	params.Set("student", "s001")
	params.Set("answer", "Paris")

	req, err := command.BuildRequest(cmd, params)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	if req.Method != "POST" || req.Path != "/api/v1/answers/submit" {
		t.Fatalf("unexpected request line %s %s", req.Method, req.Path)
	}
	payload := decodeBody(t, req.Body)
	if payload["access_code"] != "GEO1" || payload["student_id"] != "s001" || payload["text"] != "Paris" {
		t.Fatalf("unexpected payload %v", payload)
	}
}

func TestBuildRequestEscapesAccessCode(t *testing.T) {
	cmd := mustCommand(t, "answer open")
	params := command.Params{}
	params.Set("access_code", "a b/c")
	params.Set("student_id", "s001")

	req, err := command.BuildRequest(cmd, params)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	if req.Path != "/api/v1/answers/question/a%20b%2Fc" {
		t.Fatalf("unexpected path %s", req.Path)
	}
}

func TestBuildRequestListStatusQuery(t *testing.T) {
	cmd := mustCommand(t, "question list")
	params := command.Params{}
	params.Set("status", "closed")

	req, err := command.BuildRequest(cmd, params)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	if req.Path != "/api/v1/questions?status=closed" {
		t.Fatalf("unexpected path %s", req.Path)
	}
	if req.Body != nil {
		t.Fatalf("GET must not carry a body")
	}

	req, err = command.BuildRequest(cmd, command.Params{})
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	if req.Path != "/api/v1/questions" {
		t.Fatalf("unexpected path without filter %s", req.Path)
	}
}

func TestBuildRequestMissingPathParam(t *testing.T) {
	cmd := mustCommand(t, "question close")
	if _, err := command.BuildRequest(cmd, command.Params{}); err == nil {
		t.Fatalf("expected missing id error")
	}
}

func TestBuildRequestSummaryRejectsBadID(t *testing.T) {
	cmd := mustCommand(t, "question summary")
	params := command.Params{}
	params.Set("id", "abc")
	params.Set("instructions", "short")
	if _, err := command.BuildRequest(cmd, params); err == nil {
		t.Fatalf("expected invalid id error")
	}
}

func TestBuildRequestReadsTextFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "question.txt")
	if err := os.WriteFile(path, []byte("What is the capital of France?"), 0o600); err != nil {
		t.Fatalf("write file: %v", err)
	}
	cmd := mustCommand(t, "question create")
	params := command.Params{}
	params.Set("title", "Capitals")
	params.Set("code", "GEO1")
	params.Set("text", command.FileMarker)
	params.Set("text_file", path)

	req, err := command.BuildRequest(cmd, params)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	payload := decodeBody(t, req.Body)
	if payload["text"] != "What is the capital of France?" {
		t.Fatalf("unexpected text %q", payload["text"])
	}
}
