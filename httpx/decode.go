package httpx

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/forgeline/keel/httperr"
)

// Validator is implemented by request DTOs that validate themselves at the
// boundary. Each invalid field yields one issue.
type Validator interface {
	Validate() []httperr.FieldIssue
}

// DecodeJSON decodes the request body into dst and, when dst implements
// Validator, validates it. Malformed payloads, oversized bodies, and
// validation failures all come back as classified operational errors
// suitable for the terminal responder.
func DecodeJSON(r *http.Request, dst any) error {
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return httperr.BadRequest("request body is required")
		}
		return httperr.Normalize(err)
	}

	if v, ok := dst.(Validator); ok {
		if issues := v.Validate(); len(issues) > 0 {
			return httperr.Validation("request validation failed", issues)
		}
	}
	return nil
}
