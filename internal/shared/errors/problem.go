// Package errors provides RFC 7807 Problem Details for HTTP APIs.
package errors

import (
	"fmt"
	"net/http"
)

// Machine-readable error kinds carried in the "code" member of every
// problem body. Clients branch on these, never on Title or Detail.
const (
	CodeValidation      = "VALIDATION_ERROR"
	CodeNotFound        = "NOT_FOUND"
	CodeVariantRequired = "VARIANT_REQUIRED"
	CodeOutOfStock      = "INSUFFICIENT_STOCK"
	CodeBadTransition   = "INVALID_TRANSITION"
	CodeUnauthorized    = "UNAUTHORIZED"
	CodeForbidden       = "FORBIDDEN"
	CodeOtpExpired      = "EXPIRED"
	CodeOtpIncorrect    = "INCORRECT"
	CodeOtpLocked       = "TOO_MANY_ATTEMPTS"
	CodeOtpTooSoon      = "TOO_SOON"
	CodeInternal        = "INTERNAL"
)

// ProblemDetail represents an RFC 7807 Problem Details response.
// See: https://www.rfc-editor.org/rfc/rfc7807
type ProblemDetail struct {
	// Type is a URI reference that identifies the problem type.
	Type string `json:"type"`
	// Title is a short, human-readable summary of the problem type.
	Title string `json:"title"`
	// Status is the HTTP status code for this occurrence.
	Status int `json:"status"`
	// Code is the stable machine-readable error kind.
	Code string `json:"code,omitempty"`
	// Detail is a human-readable explanation specific to this occurrence.
	Detail string `json:"detail,omitempty"`
	// Instance is a URI reference that identifies the specific occurrence.
	Instance string `json:"instance,omitempty"`
	// Extensions holds additional problem-specific properties.
	Extensions map[string]any `json:"extensions,omitempty"`
}

// Error implements the error interface.
func (p ProblemDetail) Error() string {
	if p.Detail != "" {
		return fmt.Sprintf("%s: %s", p.Title, p.Detail)
	}
	return p.Title
}

// WithDetail returns a copy with the given detail message.
func (p ProblemDetail) WithDetail(detail string) ProblemDetail {
	p.Detail = detail
	return p
}

// WithInstance returns a copy with the given instance URI.
func (p ProblemDetail) WithInstance(instance string) ProblemDetail {
	p.Instance = instance
	return p
}

// WithExtension returns a copy with an additional extension property.
// The extension map is copied so templates stay immutable.
func (p ProblemDetail) WithExtension(key string, value any) ProblemDetail {
	ext := make(map[string]any, len(p.Extensions)+1)
	for k, v := range p.Extensions {
		ext[k] = v
	}
	ext[key] = value
	p.Extensions = ext
	return p
}

// Problem type URI references.
const (
	TypeValidation      = "/problems/validation-error"
	TypeNotFound        = "/problems/not-found"
	TypeVariantRequired = "/problems/variant-required"
	TypeOutOfStock      = "/problems/insufficient-stock"
	TypeBadTransition   = "/problems/invalid-transition"
	TypeInternal        = "/problems/internal-error"
	TypeUnauthorized    = "/problems/unauthorized"
	TypeForbidden       = "/problems/forbidden"
	TypeOtpRejected     = "/problems/otp-rejected"
	TypeRateLimited     = "/problems/rate-limited"
)

// Pre-defined problem templates.
var (
	// ErrValidation indicates the request failed validation.
	ErrValidation = ProblemDetail{
		Type:   TypeValidation,
		Title:  "Validation Error",
		Status: http.StatusBadRequest,
		Code:   CodeValidation,
	}

	// ErrNotFound indicates the requested resource was not found.
	ErrNotFound = ProblemDetail{
		Type:   TypeNotFound,
		Title:  "Resource Not Found",
		Status: http.StatusNotFound,
		Code:   CodeNotFound,
	}

	// ErrVariantRequired indicates checkout needs an explicit variant choice;
	// the candidate variants travel in the "hints" extension.
	ErrVariantRequired = ProblemDetail{
		Type:   TypeVariantRequired,
		Title:  "Variant Selection Required",
		Status: http.StatusBadRequest,
		Code:   CodeVariantRequired,
	}

	// ErrInsufficientStock indicates a locked stock check came up short.
	ErrInsufficientStock = ProblemDetail{
		Type:   TypeOutOfStock,
		Title:  "Insufficient Stock",
		Status: http.StatusConflict,
		Code:   CodeOutOfStock,
	}

	// ErrInvalidTransition indicates the order status machine rejected the
	// move; the "current" and "requested" extensions carry the state context.
	ErrInvalidTransition = ProblemDetail{
		Type:   TypeBadTransition,
		Title:  "Invalid Status Transition",
		Status: http.StatusConflict,
		Code:   CodeBadTransition,
	}

	// ErrUnauthorized indicates missing or invalid authentication.
	ErrUnauthorized = ProblemDetail{
		Type:   TypeUnauthorized,
		Title:  "Unauthorized",
		Status: http.StatusUnauthorized,
		Code:   CodeUnauthorized,
	}

	// ErrForbidden indicates the action is not allowed for this caller.
	ErrForbidden = ProblemDetail{
		Type:   TypeForbidden,
		Title:  "Forbidden",
		Status: http.StatusForbidden,
		Code:   CodeForbidden,
	}

	// ErrOtpExpired indicates the one-time code passed its expiry.
	ErrOtpExpired = ProblemDetail{
		Type:   TypeOtpRejected,
		Title:  "Code Expired",
		Status: http.StatusBadRequest,
		Code:   CodeOtpExpired,
	}

	// ErrOtpIncorrect indicates the submitted code did not match.
	ErrOtpIncorrect = ProblemDetail{
		Type:   TypeOtpRejected,
		Title:  "Incorrect Code",
		Status: http.StatusBadRequest,
		Code:   CodeOtpIncorrect,
	}

	// ErrOtpLocked indicates the attempt counter reached its limit.
	ErrOtpLocked = ProblemDetail{
		Type:   TypeOtpRejected,
		Title:  "Too Many Attempts",
		Status: http.StatusTooManyRequests,
		Code:   CodeOtpLocked,
	}

	// ErrOtpTooSoon indicates a resend inside the cooldown window.
	ErrOtpTooSoon = ProblemDetail{
		Type:   TypeRateLimited,
		Title:  "Resend Too Soon",
		Status: http.StatusTooManyRequests,
		Code:   CodeOtpTooSoon,
	}

	// ErrInternal indicates an unexpected server error. Detail stays generic;
	// diagnostics belong in operator logs.
	ErrInternal = ProblemDetail{
		Type:   TypeInternal,
		Title:  "Internal Server Error",
		Status: http.StatusInternalServerError,
		Code:   CodeInternal,
	}
)

// NewValidationProblem creates a validation error with field-level details.
func NewValidationProblem(fieldErrors map[string]string) ProblemDetail {
	return ErrValidation.WithExtension("fields", fieldErrors)
}

// NewNotFoundProblem creates a not found error for a specific resource.
func NewNotFoundProblem(resourceType string, identifier any) ProblemDetail {
	return ErrNotFound.
		WithDetail(fmt.Sprintf("%s with identifier '%v' not found", resourceType, identifier)).
		WithExtension("resourceType", resourceType).
		WithExtension("identifier", identifier)
}
