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
			Action:       "register",
			Method:       "POST",
			PathTemplate: "/api/v1/auth/register",
			Fields: []Field{
				{Name: "name", Prompt: "name", Type: FieldString, Required: true},
				{Name: "email", Prompt: "email", Type: FieldString, Required: true},
				{Name: "password", Prompt: "password", Type: FieldString, Required: true},
			},
		},
		{
			Service:      "auth",
			Action:       "login",
			Method:       "POST",
			PathTemplate: "/api/v1/auth/login",
			Fields: []Field{
				{Name: "email", Prompt: "email", Type: FieldString, Required: true},
				{Name: "password", Prompt: "password", Type: FieldString, Required: true},
			},
		},
		{
			Service:      "user",
			Action:       "me",
			Method:       "GET",
			PathTemplate: "/api/v1/users/me",
			RequiresAuth: true,
		},
		{
			Service:      "key",
			Action:       "create",
			Method:       "POST",
			PathTemplate: "/api/v1/users/me/api_keys",
			RequiresAuth: true,
			Fields: []Field{
				{Name: "name", Prompt: "key name", Type: FieldString, Required: true},
			},
		},
		{
			Service:      "key",
			Action:       "list",
			Method:       "GET",
			PathTemplate: "/api/v1/users/me/api_keys",
			RequiresAuth: true,
		},
		{
			Service:      "key",
			Action:       "delete",
			Method:       "DELETE",
			PathTemplate: "/api/v1/users/me/api_keys/:id",
			RequiresAuth: true,
			Fields: []Field{
				{Name: "id", Prompt: "key id", Type: FieldInt64, Required: true, Path: true},
			},
		},
		{
			Service:      "benchmark",
			Action:       "list",
			Method:       "GET",
			PathTemplate: "/api/v1/benchmarks",
			Fields: []Field{
				{Name: "industry", Prompt: "industry", Type: FieldString, Query: true},
				{Name: "subdomain", Prompt: "subdomain", Type: FieldString, Query: true},
			},
		},
		{
			Service:      "benchmark",
			Action:       "get",
			Method:       "GET",
			PathTemplate: "/api/v1/benchmarks/:id",
			Fields: []Field{
				{Name: "id", Prompt: "benchmark id", Type: FieldInt64, Required: true, Path: true},
			},
		},
		{
			Service:      "benchmark",
			Action:       "propose",
			Method:       "POST",
			PathTemplate: "/api/v1/benchmarks",
			RequiresAuth: true,
			Fields: []Field{
				{Name: "industry", Prompt: "industry", Type: FieldString, Required: true},
				{Name: "subdomain", Prompt: "subdomain", Type: FieldString, Required: true},
				{Name: "name", Prompt: "name", Type: FieldString, Required: true},
				{Name: "description", Prompt: "description", Type: FieldString},
			},
		},
		{
			Service:      "submit",
			Action:       "create",
			Method:       "POST",
			PathTemplate: "/api/v1/submissions",
			RequiresAuth: true,
			Fields: []Field{
				{Name: "benchmark_id", Prompt: "benchmark_id", Type: FieldInt64, Required: true},
				{Name: "agent_name", Prompt: "agent_name", Type: FieldString, Required: true},
				{Name: "submission_type", Prompt: "submission_type (docker|github|archive)", Type: FieldString, Required: true},
				{Name: "source_url", Prompt: "source_url", Type: FieldString, Required: true},
			},
		},
		{
			Service:      "submit",
			Action:       "list",
			Method:       "GET",
			PathTemplate: "/api/v1/submissions",
			RequiresAuth: true,
			Fields: []Field{
				{Name: "limit", Prompt: "limit", Type: FieldInt64, Query: true},
				{Name: "offset", Prompt: "offset", Type: FieldInt64, Query: true},
			},
		},
		{
			Service:      "submit",
			Action:       "status",
			Method:       "GET",
			PathTemplate: "/api/v1/submissions/:id",
			RequiresAuth: true,
			Fields: []Field{
				{Name: "id", Prompt: "submission id", Type: FieldInt64, Required: true, Path: true},
			},
		},
		{
			Service:      "leaderboard",
			Action:       "show",
			Method:       "GET",
			PathTemplate: "/api/v1/leaderboard",
			Fields: []Field{
				{Name: "industry", Prompt: "industry", Type: FieldString, Query: true},
				{Name: "subdomain", Prompt: "subdomain", Type: FieldString, Query: true},
				{Name: "limit", Prompt: "limit", Type: FieldInt64, Query: true},
			},
		},
		{
			Service:      "challenge",
			Action:       "active",
			Method:       "GET",
			PathTemplate: "/api/v1/challenges/active",
		},
		{
			Service:      "admin",
			Action:       "stats",
			Method:       "GET",
			PathTemplate: "/api/v1/admin/stats",
			RequiresAuth: true,
		},
		{
			Service:      "admin",
			Action:       "jobs",
			Method:       "GET",
			PathTemplate: "/api/v1/admin/jobs",
			RequiresAuth: true,
			Fields: []Field{
				{Name: "limit", Prompt: "limit", Type: FieldInt64, Query: true},
			},
		},
		{
			Service:      "admin",
			Action:       "flag",
			Method:       "POST",
			PathTemplate: "/api/v1/admin/submissions/:id/flag",
			RequiresAuth: true,
			Fields: []Field{
				{Name: "id", Prompt: "submission id", Type: FieldInt64, Required: true, Path: true},
			},
		},
		{
			Service:      "admin",
			Action:       "approve",
			Method:       "POST",
			PathTemplate: "/api/v1/admin/benchmarks/:id/approve",
			RequiresAuth: true,
			Fields: []Field{
				{Name: "id", Prompt: "benchmark id", Type: FieldInt64, Required: true, Path: true},
			},
		},
		{
			Service:      "admin",
			Action:       "reject",
			Method:       "POST",
			PathTemplate: "/api/v1/admin/benchmarks/:id/reject",
			RequiresAuth: true,
			Fields: []Field{
				{Name: "id", Prompt: "benchmark id", Type: FieldInt64, Required: true, Path: true},
			},
		},
		{
			Service:      "admin",
			Action:       "reset-challenge",
			Method:       "POST",
			PathTemplate: "/api/v1/admin/challenges/reset",
			RequiresAuth: true,
			Fields: []Field{
				{Name: "season_name", Prompt: "season_name", Type: FieldString, Required: true},
				{Name: "description", Prompt: "description", Type: FieldString},
				{Name: "badge_name", Prompt: "badge_name", Type: FieldString, Required: true},
				{Name: "target_score", Prompt: "target_score", Type: FieldFloat64, Required: true},
				{Name: "target_cost", Prompt: "target_cost", Type: FieldFloat64, Required: true},
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

// BuildRequest creates an HTTP request spec based on the command's field
// declarations: path fields fill the template, query fields go on the URL,
// everything else becomes the JSON body.
func BuildRequest(cmd Command, params Params) (RequestSpec, error) {
	path := cmd.PathTemplate
	query := url.Values{}
	body := map[string]interface{}{}

	for _, field := range cmd.Fields {
		value := params.Get(field.Name)
		if value == "" {
			if field.Required {
				return RequestSpec{}, fmt.Errorf("missing parameter: %s", field.Name)
			}
			continue
		}

		switch {
		case field.Path:
			path = strings.ReplaceAll(path, ":"+field.Name, value)
		case field.Query:
			query.Set(field.Name, value)
		default:
			typed, err := convertField(field, value)
			if err != nil {
				return RequestSpec{}, err
			}
			body[field.Name] = typed
		}
	}
	if strings.Contains(path, ":") {
		return RequestSpec{}, fmt.Errorf("unresolved path parameter in %s", path)
	}
	if encoded := query.Encode(); encoded != "" {
		path += "?" + encoded
	}

	var payload []byte
	if len(body) > 0 && cmd.Method != "GET" && cmd.Method != "DELETE" {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return RequestSpec{}, fmt.Errorf("marshal request body failed: %w", err)
		}
	}

	return RequestSpec{
		Method: cmd.Method,
		Path:   path,
		Body:   payload,
	}, nil
}

func convertField(field Field, value string) (interface{}, error) {
	switch field.Type {
	case FieldInt64:
		n, err := ParseInt64(value)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", field.Name, err)
		}
		return n, nil
	case FieldFloat64:
		f, err := ParseFloat64(value)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", field.Name, err)
		}
		return f, nil
	default:
		return value, nil
	}
}
