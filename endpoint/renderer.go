package endpoint

import (
	"encoding/json"
	"net/http"
)

// JSONRenderer encodes Value as JSON, without HTML escaping.
// A zero Status means 200.
type JSONRenderer struct {
	Status int
	Value  any
}

func (jr *JSONRenderer) Render(w http.ResponseWriter, _ *http.Request) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusOr(jr.Status, http.StatusOK))
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return enc.Encode(jr.Value)
}

// BytesRenderer writes a pre-encoded body. Header entries are copied onto the
// response before the status is written.
type BytesRenderer struct {
	Status      int
	ContentType string
	Header      http.Header
	Body        []byte
}

func (br *BytesRenderer) Render(w http.ResponseWriter, _ *http.Request) error {
	for k, vs := range br.Header {
		for _, v := range vs {
			w.Header().Add(k, v)
		}
	}
	if br.ContentType != "" {
		w.Header().Set("Content-Type", br.ContentType)
	}
	w.WriteHeader(statusOr(br.Status, http.StatusOK))
	if len(br.Body) == 0 {
		return nil
	}
	_, err := w.Write(br.Body)
	return err
}

// StringRenderer writes Body as text/plain unless ContentType says otherwise.
type StringRenderer struct {
	Status      int
	Body        string
	ContentType string
}

func (sr *StringRenderer) Render(w http.ResponseWriter, _ *http.Request) error {
	ct := sr.ContentType
	if ct == "" {
		ct = "text/plain; charset=utf-8"
	}
	w.Header().Set("Content-Type", ct)
	w.WriteHeader(statusOr(sr.Status, http.StatusOK))
	_, err := w.Write([]byte(sr.Body))
	return err
}

// NoContentRenderer writes only a status, 204 by default.
type NoContentRenderer struct {
	Status int
}

func (ncr *NoContentRenderer) Render(w http.ResponseWriter, _ *http.Request) error {
	w.WriteHeader(statusOr(ncr.Status, http.StatusNoContent))
	return nil
}

func statusOr(status, def int) int {
	if status == 0 {
		return def
	}
	return status
}
