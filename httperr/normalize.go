package httperr

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/golang-jwt/jwt/v5"
	"github.com/lib/pq"
)

// Postgres error classes relevant to the taxonomy.
const (
	pqUniqueViolation     = "23505"
	pqForeignKeyViolation = "23503"
)

// Normalize turns any error into a classified *Error. Recognized
// operational errors pass through unchanged; known collaborator failure
// shapes are mapped onto the taxonomy; everything else becomes a generic
// internal error carrying the original cause.
func Normalize(err error) *Error {
	if err == nil {
		return nil
	}

	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}

	// Persistence failures
	if errors.Is(err, sql.ErrNoRows) {
		return NotFound("record")
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch string(pqErr.Code) {
		case pqUniqueViolation:
			return Conflict("resource already exists")
		case pqForeignKeyViolation:
			return BadRequest("referenced resource does not exist")
		default:
			return Database(err)
		}
	}

	// Request body failures
	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) {
		return PayloadTooLarge("")
	}
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) || errors.Is(err, io.ErrUnexpectedEOF) {
		return BadRequest("malformed JSON payload")
	}

	// Credential failures
	if errors.Is(err, jwt.ErrTokenExpired) {
		return Unauthorized("token expired")
	}
	if errors.Is(err, jwt.ErrTokenMalformed) || errors.Is(err, jwt.ErrSignatureInvalid) ||
		errors.Is(err, jwt.ErrTokenInvalidClaims) || errors.Is(err, jwt.ErrTokenNotValidYet) {
		return Unauthorized("invalid token")
	}

	// Cancellation
	if errors.Is(err, context.DeadlineExceeded) {
		return Timeout("")
	}

	return Internal(err)
}
