package core

import (
	"maps"
	"net/http"
)

// Problem captures the information returned in an RFC 7807 error response.
type Problem struct {
	Type     string
	Title    string
	Status   int
	Detail   string
	Code     string
	Instance string
	Extras   map[string]any
}

// NormalizeProblem ensures the provided problem includes canonical defaults.
func NormalizeProblem(problem *Problem) *Problem {
	if problem == nil {
		problem = &Problem{}
	}
	if problem.Status == 0 {
		problem.Status = http.StatusInternalServerError
	}
	if problem.Title == "" {
		problem.Title = http.StatusText(problem.Status)
	}
	if problem.Type == "" {
		problem.Type = "about:blank"
	}
	return problem
}

// BuildProblemBody assembles the serialized representation of the problem.
// Extras never override the reserved keys.
func BuildProblemBody(problem *Problem) map[string]any {
	problem = NormalizeProblem(problem)
	body := map[string]any{
		"status": problem.Status,
		"error":  problem.Title,
		"type":   problem.Type,
	}
	if problem.Detail != "" {
		body["details"] = problem.Detail
	}
	if problem.Code != "" {
		body["code"] = problem.Code
	}
	if problem.Instance != "" {
		body["instance"] = problem.Instance
	}
	for key, value := range problem.Extras {
		if _, reserved := body[key]; reserved || isReservedProblemKey(key) {
			continue
		}
		body[key] = value
	}
	return body
}

func isReservedProblemKey(key string) bool {
	switch key {
	case "status", "error", "details", "code", "type", "instance":
		return true
	default:
		return false
	}
}

// CloneMap returns a shallow copy of m; nil stays nil.
func CloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	maps.Copy(out, m)
	return out
}

// MergeMaps copies every map into a new one, later maps winning.
func MergeMaps(ms ...map[string]any) map[string]any {
	size := 0
	for _, m := range ms {
		size += len(m)
	}
	out := make(map[string]any, size)
	for _, m := range ms {
		maps.Copy(out, m)
	}
	return out
}
