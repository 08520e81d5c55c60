// Package response defines the JSON envelope returned by every API
// endpoint, plus helpers for shaping validation failures.
package response

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

var EmptyRequestBodyResponse = Response{
	Status:  StatusError,
	Error:   "Empty Request Body",
	Message: "Request body is empty. Please provide necessary data.",
}

var BadRequestResponse = Response{
	Status:  StatusError,
	Error:   "Bad Request",
	Message: "The request could not be processed. Please check your input.",
}

var ResourceNotFoundResponse = Response{
	Status:  StatusError,
	Error:   "Resource Not Found",
	Message: "The requested resource was not found.",
}

var ShortCodeExistsResponse = Response{
	Status:  StatusError,
	Error:   "Short Code Exists",
	Message: "The requested short code is already taken. Please choose another one.",
}

var ServerErrorResponse = Response{
	Status:  StatusError,
	Error:   "Server Error",
	Message: "An internal server error occurred. Please try again later.",
}

type Response struct {
	Status  string `json:"status"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message"`
	Details []any  `json:"details,omitempty"`
	Data    any    `json:"data,omitempty"`
}

func SuccessResponse(msg string, data ...any) Response {
	resp := Response{
		Status:  StatusSuccess,
		Message: msg,
	}

	if len(data) > 0 {
		resp.Data = data[0]
	}

	return resp
}

type validationError struct {
	Field string `json:"field"`
	Value string `json:"value"`
	Issue string `json:"issue"`
}

func getValidationErrors(err error) []validationError {
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return nil
	}

	errs := make([]validationError, 0, len(validationErrs))
	for _, err := range validationErrs {
		issue := fmt.Sprintf("Invalid %s.", err.Tag())

		switch err.Tag() {
		case "required":
			issue = "This field is required."
		case "min":
			issue = fmt.Sprintf("Must be at least %s characters long.", err.Param())
		case "max":
			issue = fmt.Sprintf("Must be at most %s characters long.", err.Param())
		}

		errs = append(errs, validationError{
			Field: err.Field(),
			Value: fmt.Sprintf("%v", err.Value()),
			Issue: issue,
		})
	}

	return errs
}

// ValidationErrorResponse shapes a validator error into the standard envelope.
func ValidationErrorResponse(err error) Response {
	resp := Response{
		Status:  StatusError,
		Error:   "Validation Error",
		Message: "One or more fields failed validation.",
	}

	for _, e := range getValidationErrors(err) {
		resp.Details = append(resp.Details, e)
	}

	return resp
}
