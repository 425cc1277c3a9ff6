package endpoint

import (
	"encoding"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strconv"
	"strings"
)

// defaultFieldLimit is the byte limit for a field without a maxLength tag.
var defaultFieldLimit = 16 * 1024

// Unmarshal populates dst, a pointer to a struct, from r.
//
// Fields are selected by struct tags naming the source:
//   - `path:"name"`   r.PathValue(name)
//   - `query:"name"`  the first value of the query parameter
//   - `header:"Name"` the first value of the header
//   - `body:""`       the whole request body
//
// A ",json" flag decodes the value as JSON; body fields of types other than
// string and []byte always decode as JSON. Other fields accept strings,
// []byte, integers, booleans and encoding.TextUnmarshaler implementations.
//
// `maxLength:"n"` caps the value at n bytes (0 means unlimited); without it
// the cap is 16KB. Exceeding the cap is a 413 for bodies and a 400 otherwise.
// Missing values leave the field unchanged.
func Unmarshal(r *http.Request, dst any) error {
	if r == nil {
		return Error(http.StatusInternalServerError, "", errors.New("endpoint: decode: nil request"))
	}
	v := reflect.ValueOf(dst)
	if v.Kind() != reflect.Pointer || v.IsNil() || v.Elem().Kind() != reflect.Struct {
		return Error(http.StatusInternalServerError, "", errors.New("endpoint: decode: dst must be a non-nil pointer to a struct"))
	}
	root := v.Elem()
	t := root.Type()

	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if !sf.IsExported() {
			continue
		}
		src, name, flags, ok := fieldSource(sf)
		if !ok || name == "-" {
			continue
		}
		limit, err := fieldLimit(sf)
		if err != nil {
			return Error(http.StatusInternalServerError, "", fmt.Errorf("endpoint: decode: field %s: %w", sf.Name, err))
		}

		raw, present, err := fetch(r, src, name, limit)
		if err != nil {
			return err
		}
		if !present {
			continue
		}
		asJSON := strings.Contains(flags, "json") || (src == "body" && !isStringOrBytes(sf.Type))
		if err := setField(root.Field(i), raw, asJSON); err != nil {
			return Error(http.StatusBadRequest, "", fmt.Errorf("endpoint: decode: %s %q -> %s: %w", src, name, sf.Name, err))
		}
	}
	return nil
}

var sources = []string{"path", "query", "header", "body"}

// fieldSource returns the first source tag on sf, in path, query, header,
// body order.
func fieldSource(sf reflect.StructField) (src, name, flags string, ok bool) {
	for _, s := range sources {
		tag, has := sf.Tag.Lookup(s)
		if !has {
			continue
		}
		name, flags, _ = strings.Cut(tag, ",")
		name = strings.TrimSpace(name)
		if name == "" {
			name = strings.ToLower(sf.Name)
		}
		return s, name, flags, true
	}
	return "", "", "", false
}

func fieldLimit(sf reflect.StructField) (int, error) {
	tag, ok := sf.Tag.Lookup("maxLength")
	if !ok {
		return defaultFieldLimit, nil
	}
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(tag)
	if err != nil {
		return 0, fmt.Errorf("maxLength: %w", err)
	}
	if n < 0 {
		return 0, errors.New("maxLength must be non-negative")
	}
	return n, nil
}

func fetch(r *http.Request, src, name string, limit int) ([]byte, bool, error) {
	var s string
	switch src {
	case "path":
		s = r.PathValue(name)
		if s == "" {
			return nil, false, nil
		}
	case "query":
		if r.URL == nil {
			return nil, false, nil
		}
		vs, ok := r.URL.Query()[name]
		if !ok || len(vs) == 0 {
			return nil, false, nil
		}
		s = vs[0]
	case "header":
		vs := r.Header.Values(name)
		if len(vs) == 0 {
			return nil, false, nil
		}
		s = vs[0]
	case "body":
		return readBody(r, limit)
	}
	if limit > 0 && len(s) > limit {
		return nil, false, Error(http.StatusBadRequest, "", fmt.Errorf("endpoint: decode: %s %q exceeds %d bytes", src, name, limit))
	}
	return []byte(s), true, nil
}

func readBody(r *http.Request, limit int) ([]byte, bool, error) {
	if r.Body == nil || r.Body == http.NoBody {
		return nil, false, nil
	}
	var body io.Reader = r.Body
	if limit > 0 {
		body = io.LimitReader(r.Body, int64(limit)+1)
	}
	b, err := io.ReadAll(body)
	if err != nil {
		return nil, false, Error(http.StatusBadRequest, "", fmt.Errorf("endpoint: decode: body: %w", err))
	}
	if limit > 0 && len(b) > limit {
		return nil, false, Error(http.StatusRequestEntityTooLarge, "", fmt.Errorf("endpoint: decode: body exceeds %d bytes", limit))
	}
	return b, true, nil
}

func isStringOrBytes(t reflect.Type) bool {
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t.Kind() == reflect.String || (t.Kind() == reflect.Slice && t.Elem().Kind() == reflect.Uint8)
}

func setField(fv reflect.Value, raw []byte, asJSON bool) error {
	if fv.Kind() == reflect.Pointer {
		if fv.IsNil() {
			fv.Set(reflect.New(fv.Type().Elem()))
		}
		fv = fv.Elem()
	}
	if asJSON {
		return json.Unmarshal(raw, fv.Addr().Interface())
	}
	if tu, ok := fv.Addr().Interface().(encoding.TextUnmarshaler); ok {
		return tu.UnmarshalText(raw)
	}

	switch fv.Kind() {
	case reflect.String:
		fv.SetString(string(raw))
	case reflect.Slice:
		if fv.Type().Elem().Kind() != reflect.Uint8 {
			return fmt.Errorf("unsupported slice type %s", fv.Type())
		}
		fv.SetBytes(append([]byte(nil), raw...))
	case reflect.Bool:
		b, err := strconv.ParseBool(string(raw))
		if err != nil {
			return err
		}
		fv.SetBool(b)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(string(raw), 10, fv.Type().Bits())
		if err != nil {
			return err
		}
		fv.SetInt(n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := strconv.ParseUint(string(raw), 10, fv.Type().Bits())
		if err != nil {
			return err
		}
		fv.SetUint(n)
	default:
		return fmt.Errorf("unsupported field type %s", fv.Type())
	}
	return nil
}
