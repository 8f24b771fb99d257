package core

import "fmt"

// Result is the outcome envelope returned across the admin API boundary.
// Failures are data, not transport errors: handlers encode a failed
// Result instead of propagating an error to the client.
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// OK builds a successful result.
func OK(message string, data any) Result {
	return Result{Success: true, Message: message, Data: data}
}

// Fail builds a failed result.
func Fail(message string) Result {
	return Result{Success: false, Message: message}
}

// Failf builds a failed result with a formatted message.
func Failf(format string, args ...any) Result {
	return Result{Success: false, Message: fmt.Sprintf(format, args...)}
}

// ValidationResult reports per-field validation failures. Valid is true
// only when Errors is empty.
type ValidationResult struct {
	Valid  bool                `json:"valid"`
	Errors map[string][]string `json:"errors"`
}

// NewValidationResult returns a passing result with no errors recorded.
func NewValidationResult() *ValidationResult {
	return &ValidationResult{
		Valid:  true,
		Errors: make(map[string][]string),
	}
}

// AddError records a validation message for a field and marks the result invalid.
func (v *ValidationResult) AddError(field, message string) {
	v.Valid = false
	v.Errors[field] = append(v.Errors[field], message)
}

// Merge folds another result's errors into this one.
func (v *ValidationResult) Merge(other *ValidationResult) {
	if other == nil {
		return
	}
	for field, messages := range other.Errors {
		for _, m := range messages {
			v.AddError(field, m)
		}
	}
}
