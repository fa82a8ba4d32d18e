package utils

import (
	"regexp"
	"strings"
)

var (
	fencePattern  = regexp.MustCompile("```(?:json)?")
	arrayPattern  = regexp.MustCompile(`(?s)\[.*\]`)
	objectPattern = regexp.MustCompile(`(?s)\{.*\}`)
)

// StripFences removes markdown code fences from model output.
func StripFences(text string) string {
	return strings.TrimSpace(fencePattern.ReplaceAllString(text, ""))
}

// ExtractJSONArray returns the outermost [...] span of text after removing
// fences, or the cleaned text itself when no array is present.
func ExtractJSONArray(text string) string {
	cleaned := StripFences(text)
	if match := arrayPattern.FindString(cleaned); match != "" {
		return match
	}
	return cleaned
}

// ExtractJSONObject is ExtractJSONArray for {...} spans.
func ExtractJSONObject(text string) string {
	cleaned := StripFences(text)
	if match := objectPattern.FindString(cleaned); match != "" {
		return match
	}
	return cleaned
}

func NormalizeRole(role string) string {
	return strings.Join(strings.Fields(role), " ")
}
