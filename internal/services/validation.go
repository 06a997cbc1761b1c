package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/coinvault/backend/internal/models"
	"github.com/go-playground/validator/v10"
)

// ErrorResponse represents error response structure
type ErrorResponse struct {
	Error   string            `json:"error"`             // Error message
	Details map[string]string `json:"details,omitempty"` // Validation details
}

// ValidationHelper provides shared validation functionality
type ValidationHelper struct {
	validator *validator.Validate
}

// NewValidationHelper creates a new validation helper
func NewValidationHelper() *ValidationHelper {
	return &ValidationHelper{
		validator: validator.New(),
	}
}

// ValidateStruct validates a struct and returns validation errors
func (vh *ValidationHelper) ValidateStruct(s any) error {
	return vh.validator.Struct(s)
}

// SendErrorResponse sends a JSON error response
func SendErrorResponse(w http.ResponseWriter, message string, statusCode int, validationErr error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	errorResp := ErrorResponse{Error: message}
	if validationErr != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(validationErr, &fieldErrs) {
			errorResp.Details = make(map[string]string)
			for _, err := range fieldErrs {
				errorResp.Details[err.Field()] = fmt.Sprintf("Field Validation Failed on '%s' tag", err.Tag())
			}
		}
	}

	json.NewEncoder(w).Encode(errorResp)
}

// SendDomainError maps a domain error from the transaction core to a
// transport status code and writes the JSON error envelope.
func SendDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrUserNotFound), errors.Is(err, models.ErrTransactionNotFound):
		SendErrorResponse(w, err.Error(), http.StatusNotFound, nil)
	case errors.Is(err, models.ErrInvalidAmount),
		errors.Is(err, models.ErrInvalidTransactionType),
		errors.Is(err, models.ErrInvalidInput),
		errors.Is(err, models.ErrInvalidStatusTransition):
		SendErrorResponse(w, err.Error(), http.StatusBadRequest, nil)
	case errors.Is(err, models.ErrInsufficientFunds):
		SendErrorResponse(w, err.Error(), http.StatusUnprocessableEntity, nil)
	default:
		SendErrorResponse(w, "Internal server error", http.StatusInternalServerError, nil)
	}
}
