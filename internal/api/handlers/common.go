// Package handlers provides HTTP request handlers for the portsweep API.
// This file contains the response, request parsing and error mapping helpers
// shared by every handler.
package handlers

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/anstrom/portsweep/internal/api/middleware"
	"github.com/anstrom/portsweep/internal/errors"
	"github.com/anstrom/portsweep/internal/logging"
)

// maxRequestSize bounds JSON request bodies.
const maxRequestSize = 1 << 20

// PaginationParams holds pagination parameters.
type PaginationParams struct {
	Page     int `json:"page"`
	PageSize int `json:"page_size"`
	Offset   int `json:"offset"`
}

// PaginatedResponse represents a paginated API response.
type PaginatedResponse struct {
	Data       any `json:"data"`
	Pagination struct {
		Page       int `json:"page"`
		PageSize   int `json:"page_size"`
		TotalItems int `json:"total_items"`
		TotalPages int `json:"total_pages"`
	} `json:"pagination"`
}

// ErrorResponse represents an API error response.
type ErrorResponse struct {
	Error     string    `json:"error"`
	Code      string    `json:"code"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id,omitempty"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// extractUUIDFromPath extracts the {id} path parameter.
func extractUUIDFromPath(r *http.Request) (uuid.UUID, error) {
	idStr, exists := mux.Vars(r)["id"]
	if !exists {
		return uuid.Nil, errors.NewScanError(errors.CodeValidation, "id not provided")
	}

	id, err := uuid.Parse(idStr)
	if err != nil {
		return uuid.Nil, errors.NewScanError(errors.CodeValidation, fmt.Sprintf("invalid id: %s", idStr))
	}
	return id, nil
}

// getPaginationParams extracts pagination parameters from request.
func getPaginationParams(r *http.Request) (PaginationParams, error) {
	const (
		defaultPage     = 1
		defaultPageSize = 50
		maxPageSize     = 1000
	)

	page, err := getQueryParamInt(r, "page", defaultPage)
	if err != nil {
		return PaginationParams{}, errors.NewScanError(errors.CodeValidation, "invalid page parameter")
	}
	pageSize, err := getQueryParamInt(r, "page_size", defaultPageSize)
	if err != nil {
		return PaginationParams{}, errors.NewScanError(errors.CodeValidation, "invalid page_size parameter")
	}

	if page < 1 {
		page = defaultPage
	}
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}

	return PaginationParams{
		Page:     page,
		PageSize: pageSize,
		Offset:   (page - 1) * pageSize,
	}, nil
}

// paginate returns the page of items selected by params.
func paginate[T any](items []T, params PaginationParams) []T {
	if params.Offset >= len(items) {
		return []T{}
	}
	end := min(params.Offset+params.PageSize, len(items))
	return items[params.Offset:end]
}

// getQueryParamInt extracts integer query parameter with default value.
func getQueryParamInt(r *http.Request, key string, defaultValue int) (int, error) {
	if value := r.URL.Query().Get(key); value != "" {
		return strconv.Atoi(value)
	}
	return defaultValue, nil
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, r *http.Request, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		logging.Error("Failed to encode JSON response",
			"request_id", middleware.GetRequestID(r),
			"error", err)
	}
}

// writePaginatedResponse writes a paginated response.
func writePaginatedResponse(w http.ResponseWriter, r *http.Request, data any, params PaginationParams, totalItems int) {
	response := PaginatedResponse{Data: data}
	response.Pagination.Page = params.Page
	response.Pagination.PageSize = params.PageSize
	response.Pagination.TotalItems = totalItems
	response.Pagination.TotalPages = (totalItems + params.PageSize - 1) / params.PageSize

	writeJSON(w, r, http.StatusOK, response)
}

// writeError writes an error response with an explicit status.
func writeError(w http.ResponseWriter, r *http.Request, statusCode int, err error) {
	writeJSON(w, r, statusCode, ErrorResponse{
		Error:     http.StatusText(statusCode),
		Code:      string(errors.GetCode(err)),
		Message:   err.Error(),
		Timestamp: time.Now().UTC(),
		RequestID: middleware.GetRequestID(r),
	})
}

// writeAppError maps an application error to its HTTP status and writes it.
func writeAppError(w http.ResponseWriter, r *http.Request, err error) {
	writeError(w, r, statusForError(err), err)
}

// MethodNotAllowed answers requests whose path has a route but not for the
// request method.
func MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeError(w, r, http.StatusMethodNotAllowed,
		fmt.Errorf("method %s is not allowed on %s", r.Method, r.URL.Path))
}

// statusForError maps error codes to HTTP status codes.
func statusForError(err error) int {
	switch {
	case errors.IsRequestError(err):
		return http.StatusBadRequest
	case errors.IsCode(err, errors.CodeNotFound):
		return http.StatusNotFound
	case errors.IsCode(err, errors.CodeCanceled):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// parseJSON decodes a size-limited JSON body into dest and validates it.
func parseJSON(w http.ResponseWriter, r *http.Request, dest any) error {
	if r.Body == nil || r.Body == http.NoBody {
		return errors.NewScanError(errors.CodeValidation, "request body is empty")
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxRequestSize)
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(dest); err != nil {
		var tooLarge *http.MaxBytesError
		if stderrors.As(err, &tooLarge) {
			return errors.NewScanError(errors.CodeValidation, fmt.Sprintf("request body too large (max %d bytes)", maxRequestSize))
		}
		return errors.WrapScanError(errors.CodeValidation, "invalid JSON", err)
	}

	if err := validate.Struct(dest); err != nil {
		return validationError(err)
	}
	return nil
}

// validationError flattens validator errors into one request error.
func validationError(err error) error {
	var fieldErrs validator.ValidationErrors
	if !stderrors.As(err, &fieldErrs) {
		return errors.WrapScanError(errors.CodeValidation, "invalid request", err)
	}

	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s failed %s=%s", fe.Field(), fe.Tag(), fe.Param()))
		} else {
			msgs = append(msgs, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
		}
	}
	return errors.NewScanError(errors.CodeValidation, "invalid request: "+strings.Join(msgs, "; "))
}
