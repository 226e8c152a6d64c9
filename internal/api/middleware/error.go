package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"runtime/debug"
	"time"

	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"
	"github.com/sumandas0/catalog/pkg/utils"
)

const CodeRateLimited = "RATE_LIMIT_EXCEEDED"

// ErrorResponse represents the standard error response format
// @Description Standard error response format for all API errors
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains detailed error information
// @Description Detailed error information including code, message, and optional details
type ErrorDetail struct {
	Code      string         `json:"code" example:"NOT_FOUND"`
	Message   string         `json:"message" example:"pipeline not found"`
	Details   map[string]any `json:"details,omitempty" swaggertype:"object"`
	Timestamp time.Time      `json:"timestamp" example:"2023-01-01T00:00:00Z"`
	RequestID string         `json:"request_id,omitempty" example:"host/abc-000001"`
}

// ErrorHandler turns a panic in a handler into a 500 with the error envelope.
func ErrorHandler() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					if rec == http.ErrAbortHandler {
						panic(rec)
					}
					handlePanic(w, r, rec)
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}

// SendError writes err with the status its code maps to. Errors without an
// AppError in their chain are reported as internal without leaking details.
func SendError(w http.ResponseWriter, r *http.Request, err error) {
	var appErr *utils.AppError
	if !errors.As(err, &appErr) {
		appErr = utils.NewAppError(utils.CodeInternal, "internal server error", err)
		appErr.Details = nil
	}
	writeError(w, r, HTTPStatus(err), ErrorDetail{
		Code:    appErr.Code,
		Message: appErr.Message,
		Details: appErr.Details,
	})
}

func SendInvalidRequest(w http.ResponseWriter, r *http.Request, message string, details map[string]any) {
	writeError(w, r, http.StatusBadRequest, ErrorDetail{
		Code:    utils.CodeInvalidInput,
		Message: message,
		Details: details,
	})
}

func SendInternalError(w http.ResponseWriter, r *http.Request, message string) {
	writeError(w, r, http.StatusInternalServerError, ErrorDetail{
		Code:    utils.CodeInternal,
		Message: message,
	})
}

func writeError(w http.ResponseWriter, r *http.Request, status int, detail ErrorDetail) {
	if len(detail.Details) == 0 {
		detail.Details = nil
	}
	detail.Timestamp = time.Now().UTC()
	detail.RequestID = chiMiddleware.GetReqID(r.Context())

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{Error: detail})
}

func handlePanic(w http.ResponseWriter, r *http.Request, rec any) {
	log.Error().
		Str("method", r.Method).
		Str("path", r.URL.Path).
		Str("request_id", chiMiddleware.GetReqID(r.Context())).
		Interface("panic", rec).
		Bytes("stack", debug.Stack()).
		Msg("panic while serving request")

	SendInternalError(w, r, "internal server error")
}

// HTTPStatus maps an error code to the status the API answers with.
func HTTPStatus(err error) int {
	switch utils.Code(err) {
	case utils.CodeNotFound, utils.CodeReferenceNotFound:
		return http.StatusNotFound
	case utils.CodeAlreadyExists, utils.CodeConflict, utils.CodeConcurrentModification:
		return http.StatusConflict
	case utils.CodeInvalidInput,
		utils.CodeValidation,
		utils.CodeInvalidLimit,
		utils.CodeInvalidCursorCombination,
		utils.CodeInvalidReferenceType:
		return http.StatusBadRequest
	case utils.CodeUnavailable:
		return http.StatusServiceUnavailable
	case utils.CodeTimeout:
		return http.StatusGatewayTimeout
	case CodeRateLimited:
		return http.StatusTooManyRequests
	case "":
		switch {
		case utils.IsNotFound(err):
			return http.StatusNotFound
		case utils.IsAlreadyExists(err), utils.IsConflict(err), utils.IsConcurrentModification(err):
			return http.StatusConflict
		case utils.IsValidation(err):
			return http.StatusBadRequest
		}
	}
	return http.StatusInternalServerError
}
