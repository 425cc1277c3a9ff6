package audit

import (
	"bytes"
	"encoding/json"
	"unicode/utf8"
)

// StrippedValue replaces string parameters longer than the limit.
const StrippedValue = "LONG_STRING_STRIPPED"

var strippedJSON = json.RawMessage(`"` + StrippedValue + `"`)

// strip returns raw with every string longer than limit characters replaced by
// StrippedValue. Strings nested more than depth containers deep are kept.
// Object key order and duplicates are preserved.
func strip(raw json.RawMessage, limit, depth int) (json.RawMessage, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || limit <= 0 {
		return raw, nil
	}

	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, err
		}
		if utf8.RuneCountInString(s) > limit {
			return strippedJSON, nil
		}
		return raw, nil
	case '{', '[':
		if depth == 0 {
			return raw, nil
		}
		return stripContainer(raw, limit, depth-1)
	}
	return raw, nil
}

func stripContainer(raw json.RawMessage, limit, depth int) (json.RawMessage, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	open, err := dec.Token()
	if err != nil {
		return nil, err
	}
	isObject := open == json.Delim('{')

	var buf bytes.Buffer
	if isObject {
		buf.WriteByte('{')
	} else {
		buf.WriteByte('[')
	}
	for i := 0; dec.More(); i++ {
		if i > 0 {
			buf.WriteByte(',')
		}
		if isObject {
			key, err := dec.Token()
			if err != nil {
				return nil, err
			}
			k, err := json.Marshal(key)
			if err != nil {
				return nil, err
			}
			buf.Write(k)
			buf.WriteByte(':')
		}

		var v json.RawMessage
		if err := dec.Decode(&v); err != nil {
			return nil, err
		}
		v, err = strip(v, limit, depth)
		if err != nil {
			return nil, err
		}
		buf.Write(v)
	}
	if isObject {
		buf.WriteByte('}')
	} else {
		buf.WriteByte(']')
	}
	return buf.Bytes(), nil
}
