package fields

import (
	"fmt"
	"strconv"
	"strings"
)

// FormValue converts a stored column value into the representation a form edits:
// multi-select arrays become {id,label} pairs, single-select and text values become strings.
// Unknown multi-select ids keep the id as their label.
func FormValue(f Field, raw any) any {
	switch f.Kind() {
	case KindMultiSelect:
		return toOptions(f, raw)
	default:
		return toText(raw)
	}
}

// StoredValue converts a form value back into the column value sent to the backend:
// multi-select pairs collapse to their ids and blank dates become null.
func StoredValue(f Field, value any) any {
	switch f.Kind() {
	case KindMultiSelect:
		options := toOptions(f, value)
		ids := make([]string, 0, len(options))
		for _, option := range options {
			ids = append(ids, option.ID)
		}
		return ids
	default:
		text := toText(value)
		if f.IsDate() && strings.TrimSpace(text) == "" {
			return nil
		}
		return text
	}
}

// Normalize coerces a value received from a client into the form representation so it
// can be compared with values built by FormValue.
func Normalize(f Field, value any) any {
	return FormValue(f, value)
}

func toText(raw any) string {
	switch v := raw.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}

func toOptions(f Field, raw any) []Option {
	out := []Option{}
	appendID := func(id string) {
		id = strings.TrimSpace(id)
		if id == "" {
			return
		}
		if option, ok := f.Lookup(id); ok {
			out = append(out, option)
			return
		}
		out = append(out, Option{ID: id, Label: id})
	}

	switch v := raw.(type) {
	case nil:
	case []Option:
		for _, option := range v {
			if option.Label == "" {
				appendID(option.ID)
				continue
			}
			out = append(out, option)
		}
	case []string:
		for _, id := range v {
			appendID(id)
		}
	case []any:
		for _, item := range v {
			switch entry := item.(type) {
			case string:
				appendID(entry)
			case map[string]any:
				id, _ := entry["id"].(string)
				label, _ := entry["label"].(string)
				if label == "" {
					appendID(id)
					continue
				}
				out = append(out, Option{ID: id, Label: label})
			case Option:
				out = append(out, entry)
			}
		}
	case string:
		for _, id := range parseArrayLiteral(v) {
			appendID(id)
		}
	}
	return out
}

// parseArrayLiteral accepts comma separated ids and Postgres "{a,b}" array literals.
func parseArrayLiteral(value string) []string {
	value = strings.TrimSpace(value)
	value = strings.TrimPrefix(value, "{")
	value = strings.TrimSuffix(value, "}")
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		out = append(out, strings.Trim(strings.TrimSpace(part), `"`))
	}
	return out
}
