// Switchboard - Multiplexed WebSocket and HTTP API Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/switchboard

// Package validation wraps go-playground/validator v10 for package payloads.
//
// Field names in messages use the struct's json tag, so a violation reads
// the way the client wrote the payload:
//
//	type CreateAuthor struct {
//	    Name string `json:"name" validate:"required,max=120"`
//	}
//
//	if verr := validation.ValidateStruct(&req); verr != nil {
//	    return verr.First().Error() // "name is required"
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

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// ValidationError is a single field violation.
type ValidationError struct {
	field   string
	tag     string
	param   string
	value   interface{}
	message string
}

func (e *ValidationError) Field() string      { return e.field }
func (e *ValidationError) Tag() string        { return e.tag }
func (e *ValidationError) Param() string      { return e.param }
func (e *ValidationError) Value() interface{} { return e.value }
func (e *ValidationError) Error() string      { return e.message }

// RequestValidationError collects every violation found in one struct,
// in field declaration order.
type RequestValidationError struct {
	errors []ValidationError
}

func (ve *RequestValidationError) Errors() []ValidationError {
	return ve.errors
}

// First returns the first violation. It never returns nil.
func (ve *RequestValidationError) First() *ValidationError {
	if len(ve.errors) == 0 {
		return &ValidationError{field: "unknown", tag: "unknown", message: "validation failed"}
	}
	return &ve.errors[0]
}

func (ve *RequestValidationError) Error() string {
	if len(ve.errors) == 0 {
		return "validation failed"
	}
	msgs := make([]string, 0, len(ve.errors))
	for i := range ve.errors {
		msgs = append(msgs, ve.errors[i].message)
	}
	return strings.Join(msgs, "; ")
}

// GetValidator returns the process-wide validator. It caches struct metadata,
// so sharing one instance matters.
func GetValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(jsonFieldName)
	})
	return validate
}

func jsonFieldName(fld reflect.StructField) string {
	name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
	switch name {
	case "-":
		return ""
	case "":
		return fld.Name
	}
	return name
}

// ValidateStruct validates s and returns nil or the collected violations.
func ValidateStruct(s interface{}) *RequestValidationError {
	err := GetValidator().Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return &RequestValidationError{errors: []ValidationError{{
			field:   "unknown",
			tag:     "unknown",
			message: err.Error(),
		}}}
	}

	out := make([]ValidationError, len(fieldErrs))
	for i, fe := range fieldErrs {
		out[i] = ValidationError{
			field:   fieldPath(fe),
			tag:     fe.Tag(),
			param:   fe.Param(),
			value:   fe.Value(),
			message: translateError(fe),
		}
	}
	return &RequestValidationError{errors: out}
}

// fieldPath drops the root struct name from the namespace so nested fields
// read as "author.name" rather than "CreateBook.author.name".
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}

var errorMessageTemplates = map[string]string{
	"required": "%s is required",
	"email":    "%s must be a valid email address",
	"uuid":     "%s must be a valid UUID",
	"uuid4":    "%s must be a valid UUID",
	"url":      "%s must be a valid URL",
	"datetime": "%s must be a valid date/time",
}

var errorMessageWithParam = map[string]string{
	"oneof": "%s must be one of: %s",
	"gte":   "%s must be greater than or equal to %s",
	"lte":   "%s must be less than or equal to %s",
	"gt":    "%s must be greater than %s",
	"lt":    "%s must be less than %s",
	"len":   "%s must have length %s",
}

func translateError(fe validator.FieldError) string {
	field := fieldPath(fe)
	tag := fe.Tag()
	param := fe.Param()

	if tpl, ok := errorMessageTemplates[tag]; ok {
		return fmt.Sprintf(tpl, field)
	}
	if tpl, ok := errorMessageWithParam[tag]; ok {
		return fmt.Sprintf(tpl, field, param)
	}

	switch k := fe.Kind(); {
	case tag == "min" && k == reflect.String:
		return fmt.Sprintf("%s must be at least %s characters", field, param)
	case tag == "max" && k == reflect.String:
		return fmt.Sprintf("%s must be at most %s characters", field, param)
	case tag == "min" && (k == reflect.Slice || k == reflect.Map):
		return fmt.Sprintf("%s must contain at least %s items", field, param)
	case tag == "max" && (k == reflect.Slice || k == reflect.Map):
		return fmt.Sprintf("%s must contain at most %s items", field, param)
	case tag == "min":
		return fmt.Sprintf("%s must be at least %s", field, param)
	case tag == "max":
		return fmt.Sprintf("%s must be at most %s", field, param)
	}
	return fmt.Sprintf("%s failed %s validation", field, tag)
}
