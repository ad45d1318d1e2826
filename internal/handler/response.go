package handler

// RESPONSE SHAPE:
// Every JSON endpoint answers 200 with one flat object. The browser scripts
// read "text" to decide success and follow "redirect" when it is present:
//
//	{"text": "success", "redirect": "/app"}
//	{"text": "fail", "redirect": "/app/nocredits.html"}
//	{"text": "success", "image": "https://...", "credits": 19}

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
)

const (
	textSuccess = "success"
	textFail    = "fail"

	// maxBodyBytes caps JSON request bodies.
	maxBodyBytes = 64 << 10
)

// Result is the body of every JSON response.
type Result struct {
	Text     string `json:"text"`
	Redirect string `json:"redirect,omitempty"`
	Image    string `json:"image,omitempty"`
	// Credits is a pointer so a zero balance is still sent.
	Credits *int64 `json:"credits,omitempty"`
}

func fail(redirect string) Result { return Result{Text: textFail, Redirect: redirect} }

func (r Result) withCredits(n int64) Result {
	r.Credits = &n
	return r
}

// writeJSON sends data with the given status. Headers go out before the body,
// so an encoding failure can only be logged.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// writeResult sends a Result with status 200.
func writeResult(w http.ResponseWriter, res Result) {
	writeJSON(w, http.StatusOK, res)
}

// decodeJSON reads one JSON object from the request body into dst.
// Bodies over maxBodyBytes and trailing data are rejected.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("decoding request body: %w", err)
	}
	if dec.More() {
		return errors.New("decoding request body: unexpected data after JSON object")
	}
	return nil
}
