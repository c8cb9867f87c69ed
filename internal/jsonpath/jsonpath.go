package jsonpath

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

// DefaultTextPath is where transcription backends put the result.
const DefaultTextPath = "text"

// ExtractText returns the string at textPath in a JSON body, falling back to
// the top-level "text" field. ok is false when the body is not valid JSON or
// neither location holds a scalar.
func ExtractText(body []byte, textPath string) (string, bool) {
	if !gjson.ValidBytes(body) {
		return "", false
	}
	if textPath != "" {
		if v, ok := ExtractByPath(body, textPath); ok {
			return v, true
		}
	}
	if textPath != DefaultTextPath {
		return ExtractByPath(body, DefaultTextPath)
	}
	return "", false
}

// ExtractByPath extracts a scalar using a dot-separated path with optional
// indexes, e.g. "results[0].alternatives[0].transcript".
func ExtractByPath(body []byte, path string) (string, bool) {
	gpath, err := ToGJSON(path)
	if err != nil {
		return "", false
	}
	res := gjson.GetBytes(body, gpath)
	switch res.Type {
	case gjson.String:
		return res.Str, true
	case gjson.Number:
		if res.Num == float64(int64(res.Num)) {
			return fmt.Sprintf("%d", int64(res.Num)), true
		}
		return fmt.Sprintf("%v", res.Num), true
	case gjson.True, gjson.False:
		return fmt.Sprintf("%v", res.Bool()), true
	default:
		return "", false
	}
}

// ToGJSON converts "a.b[1].c" into the equivalent gjson path "a.b.1.c".
func ToGJSON(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("empty path")
	}
	var out []string
	for _, part := range strings.Split(path, ".") {
		key, idxs, err := ParseKeyAndIndexes(part)
		if err != nil {
			return "", err
		}
		if key != "" {
			out = append(out, escapeKey(key))
		}
		for _, idx := range idxs {
			if idx < 0 {
				return "", fmt.Errorf("negative index in %s", part)
			}
			out = append(out, strconv.Itoa(idx))
		}
	}
	return strings.Join(out, "."), nil
}

func escapeKey(key string) string {
	var b strings.Builder
	for _, r := range key {
		switch r {
		case '\\', '.', '*', '?', '|', '#', '@', '!', '=', '<', '>', '%':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// ParseKeyAndIndexes parses a token like "foo[0][1]" or "[0]" or "bar" into base key and indexes.
func ParseKeyAndIndexes(token string) (string, []int, error) {
	if token == "" {
		return "", nil, fmt.Errorf("empty token")
	}
	idxs := []int{}
	br := strings.Index(token, "[")
	if br == -1 {
		return token, idxs, nil
	}
	key := token[:br]
	rest := token[br:]
	for len(rest) > 0 {
		if !strings.HasPrefix(rest, "[") {
			return "", nil, fmt.Errorf("invalid index syntax in %s", token)
		}
		closePos := strings.Index(rest, "]")
		if closePos == -1 {
			return "", nil, fmt.Errorf("missing closing ] in %s", token)
		}
		numStr := rest[1:closePos]
		if numStr == "" {
			return "", nil, fmt.Errorf("empty index in %s", token)
		}
		n, err := strconv.Atoi(numStr)
		if err != nil {
			return "", nil, fmt.Errorf("invalid index '%s' in %s", numStr, token)
		}
		idxs = append(idxs, n)
		rest = rest[closePos+1:]
	}
	return key, idxs, nil
}
