// Package httputil holds the JSON plumbing shared by HTTP handlers.
package httputil

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	dErrors "regform/pkg/domain-errors"
)

// maxBodyBytes bounds request bodies; registration payloads are tiny.
const maxBodyBytes = 64 << 10

// Preparable requests normalize their fields and validate the shape of the
// payload before a handler uses them.
type Preparable interface {
	Normalize()
	Validate() error
}

// WriteJSON writes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError translates err into the JSON error envelope. Internal errors
// never leak their description.
func WriteError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	status := dErrors.ToHTTPStatus(code)

	body := map[string]string{"error": string(code)}
	var de *dErrors.Error
	if code != dErrors.CodeInternal && errors.As(err, &de) && de.Message != "" {
		body["error_description"] = de.Message
	}
	WriteJSON(w, status, body)
}

// DecodeJSON decodes the request body into dst, rejecting unknown trailing data.
func DecodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return dErrors.New(dErrors.CodeBadRequest, "request body is required")
		}
		return dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid JSON body")
	}
	if dec.More() {
		return dErrors.New(dErrors.CodeBadRequest, "request body must contain a single JSON value")
	}
	return nil
}

// DecodeAndPrepare decodes a request of type T, normalizes and validates it.
// On failure the error response is already written and ok is false.
func DecodeAndPrepare[T any, PT interface {
	*T
	Preparable
}](w http.ResponseWriter, r *http.Request, logger *slog.Logger, ctx context.Context, requestID string) (*T, bool) {
	req := PT(new(T))
	if err := DecodeJSON(r, req); err != nil {
		logger.WarnContext(ctx, "failed to decode request",
			"request_id", requestID,
			"error", err,
		)
		WriteError(w, err)
		return nil, false
	}
	req.Normalize()
	if err := req.Validate(); err != nil {
		logger.WarnContext(ctx, "invalid request",
			"request_id", requestID,
			"error", err,
		)
		WriteError(w, err)
		return nil, false
	}
	return (*T)(req), true
}
