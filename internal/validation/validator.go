// Latentspace - Embedding Reduction and Clustering Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/latentspace

// Package validation validates request bodies and algorithm parameters
// with go-playground/validator v10. Fields are reported by their JSON
// names, and one custom rule is registered:
//
//   - pathsegment: a single store path segment (no slashes, no "." or "..")
//
// Example usage:
//
//	type DBSCANParams struct {
//	    Eps        float64 `json:"eps" validate:"gte=0.01,lte=1"`
//	    MinSamples int     `json:"min_samples" validate:"gte=1,lte=300"`
//	}
//
//	if err := validation.ValidateStruct(&params); err != nil {
//	    return err // "eps must be greater than or equal to 0.01"
//	}
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// FieldError is one failed rule.
type FieldError struct {
	// Field is the JSON name of the field.
	Field string
	// Tag is the failed rule, or "custom" for checks outside struct tags.
	Tag     string
	Param   string
	Message string
}

// RequestValidationError collects the failed rules of one request. The API
// maps it to 422.
type RequestValidationError struct {
	FieldErrors []FieldError
}

// NewRequestValidationError builds a single-field error for checks that do
// not go through struct tags.
func NewRequestValidationError(field, message string) *RequestValidationError {
	return &RequestValidationError{
		FieldErrors: []FieldError{{Field: field, Tag: "custom", Message: message}},
	}
}

func (ve *RequestValidationError) Error() string {
	if len(ve.FieldErrors) == 0 {
		return "validation failed"
	}
	messages := make([]string, len(ve.FieldErrors))
	for i, fe := range ve.FieldErrors {
		messages[i] = fe.Message
	}
	return strings.Join(messages, "; ")
}

// Fields returns the failed field names in order.
func (ve *RequestValidationError) Fields() []string {
	fields := make([]string, len(ve.FieldErrors))
	for i, fe := range ve.FieldErrors {
		fields[i] = fe.Field
	}
	return fields
}

var getValidator = sync.OnceValue(func() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(jsonFieldName)
	if err := v.RegisterValidation("pathsegment", func(fl validator.FieldLevel) bool {
		return IsPathSegment(fl.Field().String())
	}); err != nil {
		panic(fmt.Sprintf("validation: register pathsegment: %v", err))
	}
	return v
})

// GetValidator returns the shared validator instance.
func GetValidator() *validator.Validate {
	return getValidator()
}

func jsonFieldName(f reflect.StructField) string {
	name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
	switch name {
	case "-":
		return ""
	case "":
		return f.Name
	}
	return name
}

// IsPathSegment reports whether s can be used as one store path segment.
func IsPathSegment(s string) bool {
	if s == "" || s == "." || s == ".." {
		return false
	}
	return !strings.ContainsAny(s, "/\\\x00")
}

// ValidateStruct validates s. It returns nil or a *RequestValidationError.
func ValidateStruct(s any) *RequestValidationError {
	err := GetValidator().Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return NewRequestValidationError("unknown", err.Error())
	}

	out := &RequestValidationError{FieldErrors: make([]FieldError, len(verrs))}
	for i, fe := range verrs {
		out.FieldErrors[i] = FieldError{
			Field:   fe.Field(),
			Tag:     fe.Tag(),
			Param:   fe.Param(),
			Message: message(fe),
		}
	}
	return out
}

// message renders fe the way API clients see it.
func message(fe validator.FieldError) string {
	field, param := fe.Field(), fe.Param()
	unit := ""
	if fe.Kind() == reflect.String {
		unit = " characters"
	}

	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "pathsegment":
		return field + " must be a single path segment"
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, param)
	case "gte":
		return fmt.Sprintf("%s must be greater than or equal to %s", field, param)
	case "lte":
		return fmt.Sprintf("%s must be less than or equal to %s", field, param)
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, param)
	case "lt":
		return fmt.Sprintf("%s must be less than %s", field, param)
	case "min":
		return fmt.Sprintf("%s must be at least %s%s", field, param, unit)
	case "max":
		return fmt.Sprintf("%s must be at most %s%s", field, param, unit)
	default:
		return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
	}
}
