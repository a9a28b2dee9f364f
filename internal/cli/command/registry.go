package command

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
)

// Registry returns all CLI commands keyed by "service action".
func Registry() map[string]Command {
	commands := []Command{
		{
			Service:      "auth",
			Action:       "login",
			Method:       "POST",
			PathTemplate: "/api/v1/auth/login",
			Fields: []Field{
				{Name: "passcode", Prompt: "passcode", Type: FieldString, Required: true},
			},
		},
		{
			Service:      "question",
			Action:       "create",
			Method:       "POST",
			PathTemplate: "/api/v1/questions",
			RequiresAuth: true,
			Fields: []Field{
				{Name: "title", Prompt: "title", Type: FieldString, Required: true},
				{Name: "text", Prompt: "text", Type: FieldString, Required: true},
				{Name: "access_code", Aliases: []string{"code"}, Prompt: "access_code", Type: FieldString, Required: true},
				{Name: "text_file", Prompt: "text_file", Type: FieldFile},
			},
		},
		{
			Service:      "question",
			Action:       "list",
			Method:       "GET",
			PathTemplate: "/api/v1/questions",
			RequiresAuth: true,
			Fields: []Field{
				{Name: "status", Prompt: "status (all|open|closed)", Type: FieldString, Query: true},
			},
		},
		{
			Service:      "question",
			Action:       "get",
			Method:       "GET",
			PathTemplate: "/api/v1/questions/:id",
			RequiresAuth: true,
			Fields: []Field{
				{Name: "id", Prompt: "question_id", Type: FieldInt64, Required: true},
			},
		},
		{
			Service:      "question",
			Action:       "close",
			Method:       "PATCH",
			PathTemplate: "/api/v1/questions/:id/close",
			RequiresAuth: true,
			Fields: []Field{
				{Name: "id", Prompt: "question_id", Type: FieldInt64, Required: true},
			},
		},
		{
			Service:      "question",
			Action:       "delete",
			Method:       "DELETE",
			PathTemplate: "/api/v1/questions/:id",
			RequiresAuth: true,
			Fields: []Field{
				{Name: "id", Prompt: "question_id", Type: FieldInt64, Required: true},
			},
		},
		{
			Service:      "question",
			Action:       "answers",
			Method:       "GET",
			PathTemplate: "/api/v1/questions/:id/answers",
			RequiresAuth: true,
			Fields: []Field{
				{Name: "id", Prompt: "question_id", Type: FieldInt64, Required: true},
			},
		},
		{
			Service:      "question",
			Action:       "summary",
			Method:       "POST",
			PathTemplate: "/api/v1/questions/:id/summary",
			RequiresAuth: true,
			Fields: []Field{
				{Name: "id", Prompt: "question_id", Type: FieldInt64, Required: true},
				{Name: "summary_instructions", Aliases: []string{"instructions"}, Prompt: "summary_instructions", Type: FieldString, Required: true},
			},
		},
		{
			Service:      "question",
			Action:       "search",
			Method:       "POST",
			PathTemplate: "/api/v1/questions/search",
			RequiresAuth: true,
			Fields: []Field{
				{Name: "query", Prompt: "query", Type: FieldString, Required: true},
			},
		},
		{
			Service:      "answer",
			Action:       "open",
			Method:       "POST",
			PathTemplate: "/api/v1/answers/question/:access_code",
			Fields: []Field{
				{Name: "access_code", Aliases: []string{"code"}, Prompt: "access_code", Type: FieldString, Required: true},
				{Name: "student_id", Aliases: []string{"student"}, Prompt: "student_id", Type: FieldString, Required: true},
			},
		},
		{
			Service:      "answer",
			Action:       "submit",
			Method:       "POST",
			PathTemplate: "/api/v1/answers/submit",
			Fields: []Field{
				{Name: "access_code", Aliases: []string{"code"}, Prompt: "access_code", Type: FieldString, Required: true},
				{Name: "student_id", Aliases: []string{"student"}, Prompt: "student_id", Type: FieldString, Required: true},
				{Name: "text", Aliases: []string{"answer"}, Prompt: "text", Type: FieldString, Required: true},
				{Name: "text_file", Prompt: "text_file", Type: FieldFile},
			},
		},
		{
			Service:      "student",
			Action:       "list",
			Method:       "GET",
			PathTemplate: "/api/v1/students",
		},
		{
			Service:      "student",
			Action:       "get",
			Method:       "GET",
			PathTemplate: "/api/v1/students/:id",
			Fields: []Field{
				{Name: "id", Prompt: "student_id", Type: FieldString, Required: true},
			},
		},
	}

	result := make(map[string]Command, len(commands))
	for _, cmd := range commands {
		key := fmt.Sprintf("%s %s", cmd.Service, cmd.Action)
		result[key] = cmd
	}
	return result
}

// BuildRequest creates HTTP request spec based on command.
func BuildRequest(cmd Command, params Params) (RequestSpec, error) {
	params.Canonicalize(cmd.Fields)
	path, err := buildPath(cmd, params)
	if err != nil {
		return RequestSpec{}, err
	}

	var body []byte
	if cmd.Method != "GET" && cmd.Method != "DELETE" {
		payload, err := buildPayload(cmd, params)
		if err != nil {
			return RequestSpec{}, err
		}
		if payload != nil {
			body, err = json.Marshal(payload)
			if err != nil {
				return RequestSpec{}, fmt.Errorf("marshal request body failed: %w", err)
			}
		}
	}

	return RequestSpec{
		Method:  cmd.Method,
		Path:    path,
		Headers: map[string]string{},
		Body:    body,
	}, nil
}

func buildPath(cmd Command, params Params) (string, error) {
	path := cmd.PathTemplate
	for _, key := range []string{"access_code", "id"} {
		placeholder := ":" + key
		if strings.Contains(path, placeholder) {
			value := params.Get(key)
			if value == "" {
				return "", fmt.Errorf("missing path parameter: %s", key)
			}
			path = strings.ReplaceAll(path, placeholder, url.PathEscape(value))
		}
	}

	query := url.Values{}
	for _, field := range cmd.Fields {
		if field.Query && params.Get(field.Name) != "" {
			query.Set(field.Name, params.Get(field.Name))
		}
	}
	if len(query) > 0 {
		path += "?" + query.Encode()
	}
	return path, nil
}

func buildPayload(cmd Command, params Params) (interface{}, error) {
	switch cmd.Service {
	case "auth":
		return map[string]string{
			"passcode": params.Get("passcode"),
		}, nil
	case "question":
		switch cmd.Action {
		case "create":
			text, err := valueOrFile(params, "text", "text_file")
			if err != nil {
				return nil, err
			}
			return map[string]string{
				"title":       params.Get("title"),
				"text":        text,
				"access_code": params.Get("access_code"),
			}, nil
		case "summary":
			if _, err := ParseInt64(params.Get("id")); err != nil {
				return nil, fmt.Errorf("invalid id: %w", err)
			}
			return map[string]string{
				"summary_instructions": params.Get("summary_instructions"),
			}, nil
		case "search":
			return map[string]string{
				"query": params.Get("query"),
			}, nil
		}
	case "answer":
		switch cmd.Action {
		case "open":
			return map[string]string{
				"student_id": params.Get("student_id"),
			}, nil
		case "submit":
			text, err := valueOrFile(params, "text", "text_file")
			if err != nil {
				return nil, err
			}
			return map[string]string{
				"access_code": params.Get("access_code"),
				"student_id":  params.Get("student_id"),
				"text":        text,
			}, nil
		}
	}
	return nil, nil
}

// valueOrFile reads fileKey when key is empty or the "_file_" marker.
func valueOrFile(params Params, key, fileKey string) (string, error) {
	value := params.Get(key)
	if (value == "" || value == FileMarker) && params.Get(fileKey) != "" {
		return ReadFile(params.Get(fileKey))
	}
	if value == FileMarker {
		return "", fmt.Errorf("%s is required", key)
	}
	return value, nil
}

// FileMarker stands in for a value that will be read from a file field.
const FileMarker = "_file_"
