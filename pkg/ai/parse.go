package ai

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

var errNoJSON = errors.New("ai: response is not usable json")

var domainAliases = map[string]string{
	"ia":           "AI",
	"data":         "Data Science",
	"datascience":  "Data Science",
	"sécurité":     "Security",
	"securite":     "Security",
	"autre":        "Other",
	"web":          "Web",
	"ai":           "AI",
	"iot":          "IoT",
	"mobile":       "Mobile",
	"security":     "Security",
	"data science": "Data Science",
	"other":        "Other",
}

// StripCodeFence removes a markdown code fence around a model answer.
func StripCodeFence(text string) string {
	text = strings.TrimSpace(text)
	if !strings.Contains(text, "```") {
		return text
	}
	parts := strings.Split(text, "```")
	if len(parts) < 2 {
		return text
	}
	inner := strings.TrimSpace(parts[1])
	inner = strings.TrimPrefix(inner, "json")
	inner = strings.TrimPrefix(inner, "JSON")
	return strings.TrimSpace(inner)
}

// CanonicalDomain maps a label onto one of Domains; unknown labels become Other.
func CanonicalDomain(label string) string {
	clean := strings.ToLower(strings.TrimSpace(label))
	if d, ok := domainAliases[clean]; ok {
		return d
	}
	return "Other"
}

// ParseDomainScores reads a {"domain": confidence} object, keeps the three
// strongest domains and normalizes them to sum to 1.0 (two decimals).
func ParseDomainScores(text string) (map[string]float64, error) {
	var raw map[string]float64
	if err := json.Unmarshal([]byte(StripCodeFence(text)), &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", errNoJSON, err)
	}
	merged := make(map[string]float64, len(raw))
	for label, v := range raw {
		if strings.TrimSpace(label) == "" || v <= 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		merged[CanonicalDomain(label)] += v
	}
	keys := domainKeys(merged)
	if len(keys) > 3 {
		keys = keys[:3]
	}
	total := 0.0
	for _, k := range keys {
		total += merged[k]
	}
	if total <= 0 {
		return nil, fmt.Errorf("%w: no positive confidences", errNoJSON)
	}
	out := make(map[string]float64, len(keys))
	for _, k := range keys {
		out[k] = round2(merged[k] / total)
	}
	return out, nil
}

// ParseScore reads a single similarity number clamped to [0,1].
func ParseScore(text string) (float64, error) {
	fields := strings.Fields(StripCodeFence(text))
	if len(fields) == 0 {
		return 0, errNoJSON
	}
	v, err := strconv.ParseFloat(strings.TrimRight(fields[0], ".,;"), 64)
	if err != nil || math.IsNaN(v) {
		return 0, fmt.Errorf("parse similarity %q: %w", fields[0], errNoJSON)
	}
	return math.Max(0, math.Min(1, v)), nil
}

type rawSuggestion struct {
	ProfessorID json.RawMessage `json:"professor_id"`
	Name        string          `json:"name"`
	Reason      string          `json:"reason"`
}

// ParseJurySuggestions reads a JSON array of suggestions (or an object
// wrapping one), drops ids missing from the roster and duplicates, and
// keeps at most n entries. Names come from the roster.
func ParseJurySuggestions(text string, roster []Professor, n int) ([]JurySuggestion, error) {
	items, err := decodeSuggestionList([]byte(StripCodeFence(text)))
	if err != nil {
		return nil, err
	}
	byID := make(map[string]Professor, len(roster))
	for _, p := range roster {
		byID[p.ID] = p
	}
	seen := make(map[string]bool, len(items))
	out := make([]JurySuggestion, 0, n)
	for _, item := range items {
		if len(out) == n {
			break
		}
		id := rawID(item.ProfessorID)
		p, ok := byID[id]
		if !ok || seen[id] {
			continue
		}
		seen[id] = true
		reason := strings.TrimSpace(item.Reason)
		if reason == "" {
			reason = "Specialty match: " + specialtyOrGeneral(p.Specialty)
		}
		out = append(out, JurySuggestion{ProfessorID: p.ID, Name: p.Name, Reason: reason})
	}
	return out, nil
}

func decodeSuggestionList(data []byte) ([]rawSuggestion, error) {
	var items []rawSuggestion
	if err := json.Unmarshal(data, &items); err == nil {
		return items, nil
	}
	var wrapper map[string]json.RawMessage
	if err := json.Unmarshal(data, &wrapper); err != nil {
		return nil, fmt.Errorf("%w: %v", errNoJSON, err)
	}
	keys := make([]string, 0, len(wrapper))
	for k := range wrapper {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := json.Unmarshal(wrapper[k], &items); err == nil {
			return items, nil
		}
	}
	return nil, errNoJSON
}

func rawID(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var num json.Number
	if err := json.Unmarshal(raw, &num); err == nil {
		return num.String()
	}
	return ""
}
