package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrNoJSON is returned when a model response contains no JSON value.
var ErrNoJSON = errors.New("no JSON value in response")

var fenceRe = regexp.MustCompile("```(?:json)?")

// ExtractJSON pulls the first JSON object or array out of a model
// response, tolerating markdown code fences and surrounding prose.
func ExtractJSON(text string) (string, error) {
	cleaned := strings.TrimSpace(fenceRe.ReplaceAllString(text, ""))

	objStart := strings.IndexByte(cleaned, '{')
	arrStart := strings.IndexByte(cleaned, '[')

	// Whichever bracket opens first is the top-level value.
	if arrStart != -1 && (objStart == -1 || arrStart < objStart) {
		if end := strings.LastIndexByte(cleaned, ']'); end > arrStart {
			return cleaned[arrStart : end+1], nil
		}
	}
	if objStart != -1 {
		if end := strings.LastIndexByte(cleaned, '}'); end > objStart {
			return cleaned[objStart : end+1], nil
		}
	}
	return "", ErrNoJSON
}

// UnmarshalResponse extracts JSON from a model response and unmarshals it.
func UnmarshalResponse(text string, out any) error {
	raw, err := ExtractJSON(text)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return fmt.Errorf("parsing model JSON: %w", err)
	}
	return nil
}
