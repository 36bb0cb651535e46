package agent

import (
	"encoding/json"
	"fmt"
	"strings"
)

// extractJSONObject pulls the outermost JSON object out of model output,
// tolerating code fences and chatter around it.
func extractJSONObject(raw string) (string, bool) {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```JSON")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	s = strings.TrimSpace(s)

	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start == -1 || end <= start {
		return "", false
	}
	return s[start : end+1], true
}

// decodeObject extracts and decodes a JSON object into v.
func decodeObject(raw string, v any) error {
	obj, ok := extractJSONObject(raw)
	if !ok {
		return fmt.Errorf("no JSON object in model output")
	}
	if err := json.Unmarshal([]byte(obj), v); err != nil {
		return fmt.Errorf("decode model output: %w", err)
	}
	return nil
}

// flexBool accepts true, "true", "True", 1 and friends.
type flexBool struct {
	Set   bool
	Value bool
}

func (f *flexBool) UnmarshalJSON(data []byte) error {
	s := strings.ToLower(strings.Trim(strings.TrimSpace(string(data)), `"`))
	switch s {
	case "true", "yes", "1":
		*f = flexBool{Set: true, Value: true}
	case "false", "no", "0":
		*f = flexBool{Set: true, Value: false}
	default:
		*f = flexBool{}
	}
	return nil
}

// flexString accepts a string or a list of strings.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = flexString(strings.TrimSpace(s))
		return nil
	}
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*f = flexString(strings.Join(list, "; "))
		return nil
	}
	*f = ""
	return nil
}
