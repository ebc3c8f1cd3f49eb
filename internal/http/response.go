package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"

	"fintrack/internal/auth"
	"fintrack/internal/core"
	applog "fintrack/internal/log"
)

// ErrorResponse is the body of every non-2xx API response.
type ErrorResponse struct {
	Error   string            `json:"error"`
	Details map[string]string `json:"details,omitempty"`
}

// JSONResponseBuilder provides a fluent API for building JSON responses.
type JSONResponseBuilder struct {
	statusCode int
	body       any
	headers    map[string]string
}

// NewJSONResponse creates a new response builder with default 200 status.
func NewJSONResponse() *JSONResponseBuilder {
	return &JSONResponseBuilder{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

func (b *JSONResponseBuilder) Status(code int) *JSONResponseBuilder {
	b.statusCode = code
	return b
}

func (b *JSONResponseBuilder) Header(name, value string) *JSONResponseBuilder {
	b.headers[name] = value
	return b
}

func (b *JSONResponseBuilder) Body(v any) *JSONResponseBuilder {
	b.body = v
	return b
}

// Write sends the built response. A nil body writes headers only.
func (b *JSONResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	if b.body == nil {
		w.WriteHeader(b.statusCode)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(b.statusCode)
	_ = json.NewEncoder(w).Encode(b.body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	NewJSONResponse().Status(status).Body(v).Write(w)
}

// errorStatus maps the ledger error taxonomy onto HTTP status codes.
// Another owner's transaction answers exactly like a missing one, so ids
// of other owners stay hidden. ErrNotOwner is checked before
// ErrUnauthorized because it also matches it.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, core.ErrNotOwner), errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound, "transaction not found"
	case errors.Is(err, core.ErrUnauthorized):
		return http.StatusUnauthorized, "authentication required"
	case errors.Is(err, core.ErrValidation):
		return http.StatusUnprocessableEntity, err.Error()
	case errors.Is(err, core.ErrPersistence):
		return http.StatusServiceUnavailable, "storage unavailable, try again later"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

func errorType(status int) string {
	switch status {
	case http.StatusUnauthorized:
		return applog.ErrorTypeAuth
	case http.StatusNotFound:
		return applog.ErrorTypeNotFound
	case http.StatusUnprocessableEntity, http.StatusBadRequest:
		return applog.ErrorTypeValidation
	case http.StatusServiceUnavailable:
		return applog.ErrorTypeDatabase
	default:
		return applog.ErrorTypeInternal
	}
}

// writeError renders err as an ErrorResponse. Server-side failures are logged
// with the full chain; clients only see a generic message.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := errorStatus(err)
	if status >= 500 {
		fields := applog.NewFields().WithErrorType(errorType(status))
		if owner, ok := auth.OwnerFromContext(r.Context()); ok {
			fields = fields.WithOwner(owner.ID)
		}
		applog.NewStructuredLogger(applog.FromContext(r.Context())).LogError(r.Context(), "Request failed", err, r.Method+" "+r.URL.Path, fields)
	}
	writeJSON(w, status, ErrorResponse{Error: msg})
}

// writeValidationError reports struct validation failures field by field.
func writeValidationError(w http.ResponseWriter, err error) {
	resp := ErrorResponse{Error: "validation failed"}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		resp.Details = make(map[string]string, len(verrs))
		for _, fe := range verrs {
			resp.Details[fe.Field()] = validationMessage(fe)
		}
	} else {
		resp.Error = err.Error()
	}
	writeJSON(w, http.StatusUnprocessableEntity, resp)
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "max":
		return "must be at most " + fe.Param() + " characters"
	case "oneof":
		return "must be one of: " + fe.Param()
	case "datetime":
		return "must be a date in YYYY-MM-DD format"
	default:
		return "failed '" + fe.Tag() + "' validation"
	}
}
