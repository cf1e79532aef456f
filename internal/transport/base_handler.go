package transport

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-chi/chi"
	"github.com/go-playground/validator/v10"

	"github.com/frahmantamala/user-management/internal"
	"github.com/frahmantamala/user-management/pkg/logger"
)

// BaseHandler provides common functionality for HTTP handlers
type BaseHandler struct {
	Logger    *slog.Logger
	Validator *validator.Validate
}

// NewBaseHandler creates a base handler with logger
func NewBaseHandler(lg *slog.Logger) *BaseHandler {
	if lg == nil {
		lg = logger.LoggerWrapper()
		if lg == nil {
			lg = slog.Default()
		}
	}
	return &BaseHandler{Logger: lg, Validator: newValidator()}
}

// newValidator reports field names as they appear in JSON.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// LoggerFor returns the request scoped logger, falling back to the handler's.
func (h *BaseHandler) LoggerFor(r *http.Request) *slog.Logger {
	return logger.FromOr(r.Context(), h.Logger)
}

// WriteJSON writes a JSON response
func (h *BaseHandler) WriteJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.Logger.Error("failed to encode JSON response", "error", err)
	}
}

// WriteAppError writes the error envelope for an application error
func (h *BaseHandler) WriteAppError(w http.ResponseWriter, appErr *internal.AppError) {
	status, body := appErr.ToHTTPResponse()
	h.WriteJSON(w, status, body)
}

// WriteError writes an internal error envelope with a plain message
func (h *BaseHandler) WriteError(w http.ResponseWriter, status int, message string) {
	h.WriteJSON(w, status, internal.Response{Error: &internal.AppError{
		Type:       internal.ErrorTypeStorage,
		Code:       internal.ErrCodeStorageFailure,
		Message:    message,
		StatusCode: status,
	}})
}

// HandleServiceError maps service errors onto HTTP responses. Unknown errors
// become a generic 500 so driver messages never reach the client.
func (h *BaseHandler) HandleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	lg := h.LoggerFor(r)
	if appErr, ok := internal.IsAppError(err); ok {
		if appErr.StatusCode >= http.StatusInternalServerError {
			lg.Error("request failed", "type", appErr.Type, "code", appErr.Code, "error", err)
		} else {
			lg.Info("request rejected", "type", appErr.Type, "code", appErr.Code, "error", appErr.GetDetailedMessage())
		}
		h.WriteAppError(w, appErr)
		return
	}
	lg.Error("unhandled service error", "error", err)
	h.WriteError(w, http.StatusInternalServerError, "internal server error")
}

// DecodeJSON reads the request body into dst. An empty body leaves dst
// untouched when allowEmpty is set.
func (h *BaseHandler) DecodeJSON(r *http.Request, dst interface{}, allowEmpty bool) *internal.AppError {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) && allowEmpty {
			return nil
		}
		return internal.ErrInvalidRequest.WithCause(err)
	}
	return nil
}

// Validate runs struct tag validation and converts failures into a
// validation AppError with one entry per field.
func (h *BaseHandler) Validate(dst interface{}) *internal.AppError {
	err := h.Validator.Struct(dst)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return internal.ErrInvalidRequest.WithCause(err)
	}
	details := make([]internal.ValidationError, 0, len(verrs))
	for _, fe := range verrs {
		details = append(details, internal.ValidationError{
			Field:   fe.Field(),
			Message: fieldMessage(fe),
			Code:    fe.Tag(),
		})
	}
	return internal.NewValidationError("Validation failed", internal.ErrCodeValidationFailed).
		WithDetails(internal.ValidationErrors{Errors: details})
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "email":
		return fmt.Sprintf("%s must be a valid email address", fe.Field())
	case "max":
		return fmt.Sprintf("%s must not exceed %s characters", fe.Field(), fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", fe.Field(), strings.ReplaceAll(fe.Param(), " ", ", "))
	}
	return fmt.Sprintf("%s failed %s validation", fe.Field(), fe.Tag())
}

// PathID parses a positive integer id from the named URL parameter.
func (h *BaseHandler) PathID(r *http.Request, name string) (int64, *internal.AppError) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, internal.ErrInvalidUserID.WithDetails(map[string]string{"id": raw})
	}
	return id, nil
}
