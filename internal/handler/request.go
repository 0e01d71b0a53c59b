package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/DukeRupert/podforge/internal/domain"
)

// maxJSONBodySize bounds JSON request bodies.
const maxJSONBodySize = 64 << 10

// decodeJSON reads a single JSON object from the request body into v.
// Unknown fields and trailing data are rejected.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	const op = "handler.decodeJSON"

	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBodySize))
	dec.DisallowUnknownFields()

	if err := dec.Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			return domain.Invalid(op, "Request body is too large.")
		case errors.Is(err, io.EOF):
			return domain.Invalid(op, "Request body is required.")
		default:
			return domain.Invalid(op, "Request body must be valid JSON.")
		}
	}
	if dec.More() {
		return domain.Invalid(op, "Request body must contain a single JSON object.")
	}
	return nil
}
