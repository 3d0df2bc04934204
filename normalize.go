package main

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode"
)

// responseParser is one attempt at reading the model reply. Attempts run in
// order; the first one that matches wins. A parser that does not match
// returns ok=false, which is not an error, just a weaker fallback next.
type responseParser func(text string) (entries []any, ok bool)

var responseParsers = []responseParser{
	parseStrictJSONArray,
	parseEmbeddedJSONArray,
	parseLineList,
}

// NormalizeResponse converts the raw extraction reply into candidate items.
// The reply format is not contractually guaranteed: valid JSON, JSON wrapped
// in prose or code fences, a bare line list, and garbage are all routine
// input. Normalization never fails; total inability to extract anything is
// the empty list.
func NormalizeResponse(raw string, policy NormalizePolicy) []CandidateItem {
	text := strings.TrimSpace(raw)
	if text == "" {
		return nil
	}

	var entries []any
	for _, parse := range responseParsers {
		if parsed, ok := parse(text); ok {
			entries = parsed
			break
		}
	}

	var items []CandidateItem
	for _, entry := range entries {
		item, ok := coerceCandidate(entry, policy)
		if !ok {
			continue
		}
		item.LocalID = int64(len(items) + 1)
		item.Selected = true
		items = append(items, item)
	}
	return items
}

func parseStrictJSONArray(text string) ([]any, bool) {
	if !strings.HasPrefix(text, "[") {
		return nil, false
	}
	var entries []any
	if err := json.Unmarshal([]byte(text), &entries); err != nil {
		return nil, false
	}
	return entries, true
}

// parseEmbeddedJSONArray strips code fences and surrounding prose, then
// retries the array parse on the bracketed substring.
func parseEmbeddedJSONArray(text string) ([]any, bool) {
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	start := strings.Index(text, "[")
	end := strings.LastIndex(text, "]")
	if start == -1 || end <= start {
		return nil, false
	}
	var entries []any
	if err := json.Unmarshal([]byte(text[start:end+1]), &entries); err != nil {
		return nil, false
	}
	return entries, true
}

// parseLineList treats the reply as newline-delimited bare item names, the
// shape the earliest vision prompt produced. Blank lines, fence/bracket
// lines, and prose sentences are skipped; list bullets are shaved off.
func parseLineList(text string) ([]any, bool) {
	var entries []any
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimPrefix(line, "- ")
		line = strings.TrimPrefix(line, "* ")
		line = strings.TrimSpace(strings.TrimPrefix(line, "•"))
		if !isItemLikeLine(line) {
			continue
		}
		entries = append(entries, line)
	}
	return entries, len(entries) > 0
}

// isItemLikeLine separates bare item names from prose. A sentence about not
// recognizing any food must yield zero candidates, not one candidate named
// after the sentence.
func isItemLikeLine(line string) bool {
	if line == "" || line == "```" || line == "[" || line == "]" {
		return false
	}
	if len(line) > 64 || len(strings.Fields(line)) > 6 {
		return false
	}
	if strings.ContainsAny(line, ".!?,:;{}`\"") {
		return false
	}
	for _, r := range line {
		if unicode.IsLetter(r) {
			return true
		}
	}
	return false
}

// coerceCandidate maps one parsed entry onto the candidate shape, applying
// the policy defaults. Entries that are neither an object nor a usable
// string are dropped, not defaulted.
func coerceCandidate(entry any, policy NormalizePolicy) (CandidateItem, bool) {
	switch v := entry.(type) {
	case map[string]any:
		item := CandidateItem{
			Name:           stringField(v, "name"),
			Category:       stringField(v, "category"),
			Quantity:       coerceQuantity(v["quantity"]),
			Unit:           stringField(v, "unit"),
			ExpirationDate: validISODate(firstStringField(v, "expirationDate", "expiration_date")),
		}
		applyDefaults(&item, policy)
		return item, true
	case string:
		name := strings.TrimSpace(v)
		if name == "" {
			return CandidateItem{}, false
		}
		item := CandidateItem{Name: name, Quantity: 1}
		applyDefaults(&item, policy)
		return item, true
	default:
		return CandidateItem{}, false
	}
}

func applyDefaults(item *CandidateItem, policy NormalizePolicy) {
	if item.Name == "" {
		item.Name = policy.PlaceholderName
	}
	if item.Category == "" {
		item.Category = policy.DefaultCategory
	}
	if item.Unit == "" {
		item.Unit = policy.DefaultUnit
	}
	if item.Quantity <= 0 || math.IsNaN(item.Quantity) || math.IsInf(item.Quantity, 0) {
		item.Quantity = 1
	}
	if item.ExpirationDate == "" && policy.DefaultExpiryDays > 0 {
		item.ExpirationDate = time.Now().AddDate(0, 0, policy.DefaultExpiryDays).Format("2006-01-02")
	}
}

func stringField(obj map[string]any, key string) string {
	s, _ := obj[key].(string)
	return strings.TrimSpace(s)
}

func firstStringField(obj map[string]any, keys ...string) string {
	for _, key := range keys {
		if s := stringField(obj, key); s != "" {
			return s
		}
	}
	return ""
}

// coerceQuantity accepts the model's various quantity spellings: a JSON
// number, a numeric string, or nothing usable at all, which becomes 1.
func coerceQuantity(v any) float64 {
	switch q := v.(type) {
	case float64:
		return q
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(q), 64)
		if err != nil {
			return 0
		}
		return parsed
	default:
		return 0
	}
}

func validISODate(s string) string {
	if s == "" {
		return ""
	}
	if _, err := time.Parse("2006-01-02", s); err != nil {
		return ""
	}
	return s
}
