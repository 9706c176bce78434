// Package web defines common components for a web application.
package web

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// Response holds the common response type for all APIs.
type Response struct {
	Data  any    `json:"data,omitempty"`
	Error string `json:"error,omitempty"`
}

// Error wraps a given err into json friendly struct.
func Error(err error) Response {
	return Response{Error: err.Error()}
}

// GetErrorMsg returns a human readable suffix for the failed validation tag.
func GetErrorMsg(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return " field is required"
	case "currency":
		return " is not supported"
	case "txtype":
		return " is not a transaction type"
	case "txstatus":
		return " is not a transaction status"
	case "min":
		return fmt.Sprintf(" must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf(" must be at most %s", fe.Param())
	case "gt":
		return fmt.Sprintf(" must be greater than %s", fe.Param())
	case "numeric":
		return " must be numeric"
	case "len":
		return fmt.Sprintf(" must be %s characters long", fe.Param())
	}

	return " is invalid"
}

// BindErrorMsg returns the message of the first failed field of a binding error.
//
// Malformed bodies that never reach validation yield an empty message.
func BindErrorMsg(err error) string {
	var ve validator.ValidationErrors
	if errors.As(err, &ve) && len(ve) > 0 {
		field := ve[0]
		return field.Field() + GetErrorMsg(field)
	}

	return ""
}
