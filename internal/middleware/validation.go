package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"reflect"

	"aiproctor/interview/internal/models"
	"aiproctor/interview/internal/utils"
)

type contextKey string

const validatedRequestKey contextKey = "validated_request"

// request models implement this interface
type Validator interface {
	Validate() error
}

// ErrorRenderer writes a rejected request.
type ErrorRenderer func(w http.ResponseWriter, code string, err error)

// renderErrorResponse writes models.ErrorResponse bodies for the /api surface.
func renderErrorResponse(w http.ResponseWriter, code string, err error) {
	var errResp *models.ErrorResponse
	if errors.As(err, &errResp) {
		utils.JSON(w, http.StatusBadRequest, *errResp)
		return
	}
	utils.JSON(w, http.StatusBadRequest, models.ErrorResponse{
		Code:    code,
		Message: err.Error(),
	})
}

// RenderFunctionError writes the bare {"error": ...} bodies the AI function
// endpoints answer with.
func RenderFunctionError(w http.ResponseWriter, _ string, err error) {
	utils.JSONError(w, http.StatusBadRequest, err.Error())
}

var errInvalidJSON = errors.New("Invalid JSON in request body")

// ValidateRequest decodes the JSON body into T, runs T.Validate and stores
// the result in the request context for GetValidatedRequest.
func ValidateRequest[T Validator]() func(http.Handler) http.Handler {
	return ValidateRequestWith[T](renderErrorResponse)
}

func ValidateRequestWith[T Validator](render ErrorRenderer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var req T
			reqType := reflect.TypeOf(req)
			if reqType.Kind() == reflect.Ptr {
				req = reflect.New(reqType.Elem()).Interface().(T)
			} else {
				req = reflect.New(reqType).Interface().(T)
			}

			if err := json.NewDecoder(r.Body).Decode(req); err != nil {
				render(w, "invalid_json", errInvalidJSON)
				return
			}

			if err := req.Validate(); err != nil {
				render(w, "validation_error", err)
				return
			}

			ctx := context.WithValue(r.Context(), validatedRequestKey, req)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetValidatedRequest retrieves the validated request from context
func GetValidatedRequest[T any](r *http.Request) T {
	return r.Context().Value(validatedRequestKey).(T)
}
