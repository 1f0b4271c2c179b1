package services

import (
	"errors"
	"fmt"

	apperrors "github.com/SAP-F-2025/test-attempt-service/internal/errors"
)

// ===== COMMON SERVICE ERRORS =====

var (
	// Generic errors
	ErrNotFound         = errors.New("resource not found")
	ErrUnauthorized     = errors.New("unauthorized access")
	ErrForbidden        = errors.New("forbidden - insufficient permissions")
	ErrValidationFailed = errors.New("validation failed")
	ErrConflict         = errors.New("resource conflict")

	// Test definition errors
	ErrTestDefinitionNotFound = errors.New("test not found")
	ErrTestDefinitionExists   = errors.New("test definition already exists")

	// Attempt specific errors
	ErrAttemptNotFound         = errors.New("test attempt not found")
	ErrAttemptAlreadyCompleted = errors.New("test already completed")
	// ErrConcurrentModification is returned when a write kept losing to
	// concurrent writers and the retry budget ran out.
	ErrConcurrentModification = errors.New("attempt was modified concurrently, please retry")
)

// ===== CUSTOM ERROR TYPES =====

// Use shared validation errors from errors package
type ValidationError = apperrors.ValidationError
type ValidationErrors = apperrors.ValidationErrors

// AlreadyCompletedError carries the stored result of a completed attempt.
// errors.Is(err, ErrAttemptAlreadyCompleted) matches it.
type AlreadyCompletedError struct {
	AttemptID string
	Result    *CompletionResult
}

func (e *AlreadyCompletedError) Error() string {
	return fmt.Sprintf("attempt %s: %s", e.AttemptID, ErrAttemptAlreadyCompleted)
}

func (e *AlreadyCompletedError) Is(target error) bool {
	return target == ErrAttemptAlreadyCompleted
}

type PermissionError struct {
	UserID     string `json:"user_id"`
	ResourceID string `json:"resource_id"`
	Resource   string `json:"resource"`
	Action     string `json:"action"`
	Reason     string `json:"reason"`
}

func (pe *PermissionError) Error() string {
	return fmt.Sprintf("permission denied: user %s cannot %s %s %s - %s",
		pe.UserID, pe.Action, pe.Resource, pe.ResourceID, pe.Reason)
}

func (pe *PermissionError) Is(target error) bool {
	return target == ErrForbidden
}

// ===== ERROR HELPERS =====

func NewPermissionError(userID, resourceID, resource, action, reason string) *PermissionError {
	return &PermissionError{
		UserID:     userID,
		ResourceID: resourceID,
		Resource:   resource,
		Action:     action,
		Reason:     reason,
	}
}

// IsNotFound checks if error represents a "not found" condition
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrTestDefinitionNotFound) ||
		errors.Is(err, ErrAttemptNotFound)
}

// IsUnauthorized checks if error represents an "unauthorized" condition
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}

// IsForbidden checks if error represents a role or ownership failure
func IsForbidden(err error) bool {
	return errors.Is(err, ErrForbidden)
}

// IsValidation checks if error represents a validation failure
func IsValidation(err error) bool {
	if errors.Is(err, ErrValidationFailed) {
		return true
	}
	var ve apperrors.ValidationErrors
	return errors.As(err, &ve)
}

// IsAlreadyCompleted reports whether err is an already-completed failure and
// returns the stored result when one is attached.
func IsAlreadyCompleted(err error) (*CompletionResult, bool) {
	var ace *AlreadyCompletedError
	if errors.As(err, &ace) {
		return ace.Result, true
	}
	return nil, errors.Is(err, ErrAttemptAlreadyCompleted)
}

// IsConflict checks if error represents a resource conflict
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict) ||
		errors.Is(err, ErrTestDefinitionExists) ||
		errors.Is(err, ErrConcurrentModification)
}
