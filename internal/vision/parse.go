package vision

import (
	"encoding/json"
	"fmt"
	"strings"

	"autotag/internal/tagging"
	"autotag/internal/textutil"
)

// Result is the parsed remote answer. Every field may be empty.
type Result struct {
	Title          string             `json:"title,omitempty"`
	Description    string             `json:"description,omitempty"`
	AdditionalTags []string           `json:"additional_tags,omitempty"`
	Attributes     tagging.Attributes `json:"attributes"`
}

// IsEmpty reports whether nothing usable was returned.
func (r Result) IsEmpty() bool {
	return r.Title == "" && r.Description == "" && len(r.AdditionalTags) == 0 && r.Attributes.IsZero()
}

type rawResult struct {
	Title          *string        `json:"title"`
	Description    *string        `json:"description"`
	AdditionalTags []any          `json:"additional_tags"`
	Attributes     map[string]any `json:"attributes"`
}

// ParseResponse extracts the first top-level JSON object from text and
// decodes it. Any failure yields an empty Result.
func ParseResponse(text string) Result {
	block, ok := firstObject(text)
	if !ok {
		return Result{}
	}
	var raw rawResult
	if err := json.Unmarshal([]byte(block), &raw); err != nil {
		return Result{}
	}

	var out Result
	if raw.Title != nil {
		out.Title = strings.TrimSpace(*raw.Title)
	}
	if raw.Description != nil {
		out.Description = strings.TrimSpace(*raw.Description)
	}
	seen := make(map[string]struct{}, len(raw.AdditionalTags))
	for _, v := range raw.AdditionalTags {
		s, ok := v.(string)
		if !ok {
			continue
		}
		tag := textutil.NormalizeLabel(s)
		if tag == "" {
			continue
		}
		if _, dup := seen[tag]; dup {
			continue
		}
		seen[tag] = struct{}{}
		out.AdditionalTags = append(out.AdditionalTags, tag)
	}
	out.Attributes = tagging.Attributes{
		Setting:      attrString(raw.Attributes["setting"]),
		Lighting:     attrString(raw.Attributes["lighting"]),
		Mood:         attrString(raw.Attributes["mood"]),
		ShotType:     attrString(raw.Attributes["shot_type"]),
		SubjectCount: attrString(raw.Attributes["subject_count"]),
		Quality:      attrString(raw.Attributes["quality"]),
	}
	return out
}

func attrString(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(val)
	case float64:
		return strings.TrimSpace(fmt.Sprintf("%g", val))
	case bool:
		return fmt.Sprintf("%t", val)
	default:
		return ""
	}
}

// firstObject returns the first brace-balanced {...} block in text,
// ignoring braces inside JSON strings.
func firstObject(text string) (string, bool) {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return "", false
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1], true
			}
		}
	}
	return "", false
}
