package botapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Params is the payload of one API call. Values come from JSON bodies (numbers as
// json.Number), form bodies (everything a string, objects JSON-encoded), multipart
// bodies (files as InputFile) or Go callers (native types), so every accessor
// coerces leniently.
type Params map[string]any

// InputFile stands in for an uploaded file. Multipart file fields are replaced
// with one; Go callers may pass it directly. Data is optional; images with data
// get real dimensions and thumbnails.
type InputFile struct {
	Name        string `json:"name"`
	Size        int64  `json:"size"`
	ContentType string `json:"content_type,omitempty"`
	Data        []byte `json:"-"`
}

// File returns the upload at key, if the value is one.
func (p Params) File(key string) (InputFile, bool) {
	switch v := p[key].(type) {
	case InputFile:
		return v, true
	case *InputFile:
		if v != nil {
			return *v, true
		}
	}
	return InputFile{}, false
}

// DecodeParams parses a JSON object body.
func DecodeParams(data []byte) (Params, error) {
	p := Params{}
	if len(bytes.TrimSpace(data)) == 0 {
		return p, nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&p); err != nil {
		return nil, fmt.Errorf("decode params: %w", err)
	}
	return p, nil
}

// ParamsOf converts a struct with json tags (or a map) into Params.
func ParamsOf(v any) (Params, error) {
	if p, ok := v.(Params); ok {
		return p, nil
	}
	if v == nil {
		return Params{}, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode params: %w", err)
	}
	return DecodeParams(data)
}

// Has reports whether key is present with a non-empty value.
func (p Params) Has(key string) bool {
	v, ok := p[key]
	if !ok || v == nil {
		return false
	}
	if s, ok := v.(string); ok {
		return s != ""
	}
	return true
}

// String returns the value of key as a string. Numbers and booleans are formatted.
func (p Params) String(key string) string {
	switch v := p[key].(type) {
	case nil:
		return ""
	case string:
		return v
	case json.Number:
		return v.String()
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	default:
		return fmt.Sprint(v)
	}
}

// Int64 returns the value of key as an integer.
func (p Params) Int64(key string) (int64, bool) {
	return toInt64(p[key])
}

// Int is Int64 narrowed to int.
func (p Params) Int(key string) (int, bool) {
	n, ok := p.Int64(key)
	return int(n), ok
}

// IntOr returns the integer at key or def when absent.
func (p Params) IntOr(key string, def int) int {
	if n, ok := p.Int(key); ok {
		return n
	}
	return def
}

// Float returns the value of key as a float.
func (p Params) Float(key string) (float64, bool) {
	switch v := p[key].(type) {
	case float64:
		return v, true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return f, err == nil
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	}
	return 0, false
}

// Bool returns the value of key as a boolean; absent or unparsable is false.
func (p Params) Bool(key string) bool {
	switch v := p[key].(type) {
	case bool:
		return v
	case string:
		b, _ := strconv.ParseBool(strings.TrimSpace(v))
		return b
	case json.Number:
		return v.String() != "0"
	case float64:
		return v != 0
	}
	return false
}

// BoolOr returns the boolean at key or def when absent.
func (p Params) BoolOr(key string, def bool) bool {
	if _, ok := p[key]; !ok {
		return def
	}
	return p.Bool(key)
}

// Decode unmarshals the value at key into dst. Strings holding JSON (form and
// multipart bodies) are decoded as JSON. It reports false when key is absent.
func (p Params) Decode(key string, dst any) (bool, error) {
	v, ok := p[key]
	if !ok || v == nil {
		return false, nil
	}
	var data []byte
	if s, isStr := v.(string); isStr {
		trimmed := strings.TrimSpace(s)
		if trimmed == "" {
			return false, nil
		}
		if strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[") {
			data = []byte(trimmed)
		} else {
			raw, err := json.Marshal(s)
			if err != nil {
				return true, err
			}
			data = raw
		}
	} else {
		raw, err := json.Marshal(v)
		if err != nil {
			return true, fmt.Errorf("%s: %w", key, err)
		}
		data = raw
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return true, fmt.Errorf("%s: %w", key, err)
	}
	return true, nil
}

// ChatRef identifies a chat by numeric id or by @username.
type ChatRef struct {
	ID       int64
	Username string
}

func (r ChatRef) String() string {
	if r.Username != "" {
		return "@" + r.Username
	}
	return strconv.FormatInt(r.ID, 10)
}

// ChatRef reads a chat_id style parameter.
func (p Params) ChatRef(key string) (ChatRef, bool) {
	if s, ok := p[key].(string); ok {
		s = strings.TrimSpace(s)
		if strings.HasPrefix(s, "@") && len(s) > 1 {
			return ChatRef{Username: s[1:]}, true
		}
	}
	id, ok := p.Int64(key)
	if !ok {
		return ChatRef{}, false
	}
	return ChatRef{ID: id}, true
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return i, true
		}
		f, err := n.Float64()
		return int64(f), err == nil
	case float64:
		return int64(n), true
	case float32:
		return int64(n), true
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case string:
		i, err := strconv.ParseInt(strings.TrimSpace(n), 10, 64)
		return i, err == nil
	}
	return 0, false
}
