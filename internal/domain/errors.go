package domain

import (
	"errors"
	"fmt"
)

// Category sentinels — use with NewDomainError for subsystem errors.
var (
	ErrNetwork      = fmt.Errorf("network error")
	ErrTimeout      = fmt.Errorf("operation timed out")
	ErrParse        = fmt.Errorf("parse error")
	ErrProvider     = fmt.Errorf("provider error")
	ErrInvalidInput = fmt.Errorf("invalid input")
)

// Sentinel errors for the domain layer.
var (
	ErrProviderNotFound = fmt.Errorf("llm provider not found")
	ErrToolNotFound     = fmt.Errorf("tool not found")
	ErrMaxSteps         = fmt.Errorf("engine reached step budget")
	ErrRoundBudget      = fmt.Errorf("validator reached round budget")
	ErrConfigLoad       = fmt.Errorf("failed to load configuration")

	// Resilience errors.
	ErrRateLimit   = fmt.Errorf("rate limit exceeded")
	ErrAuthInvalid = fmt.Errorf("authentication failed")
	ErrToolFailure = fmt.Errorf("tool execution failed")
)

// DomainError wraps a sentinel error with context.
type DomainError struct {
	Op     string // operation name (e.g., "Registry.Get")
	Err    error  // underlying sentinel or wrapped error
	Detail string // human-readable detail
}

func (e *DomainError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s: %s", e.Op, e.Detail, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Err)
}

func (e *DomainError) Unwrap() error { return e.Err }

// NewDomainError creates a new DomainError.
func NewDomainError(op string, err error, detail string) *DomainError {
	return &DomainError{Op: op, Err: err, Detail: detail}
}

// WrapOp adds operation context to an error using fmt.Errorf wrapping.
// Returns nil if err is nil, enabling idiomatic use: return domain.WrapOp("op", err)
func WrapOp(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", op, err)
}

// ErrorCode is a machine-parseable error category for monitoring and tool
// result tagging.
type ErrorCode string

const (
	CodeUnknown          ErrorCode = "UNKNOWN"
	CodeNetworkError     ErrorCode = "NETWORK_ERROR"
	CodeTimeout          ErrorCode = "TIMEOUT"
	CodeParseError       ErrorCode = "PARSE_ERROR"
	CodeProviderError    ErrorCode = "PROVIDER_ERROR"
	CodeUnknownTool      ErrorCode = "UNKNOWN_TOOL"
	CodeBudgetExceeded   ErrorCode = "BUDGET_EXCEEDED"
	CodeConfigError      ErrorCode = "CONFIGURATION_ERROR"
	CodeInvalidInput     ErrorCode = "INVALID_INPUT"
	CodeRateLimit        ErrorCode = "RATE_LIMIT"
	CodeAuthInvalid      ErrorCode = "AUTH_INVALID"
	CodeProviderNotFound ErrorCode = "PROVIDER_NOT_FOUND"
	CodeToolFailure      ErrorCode = "TOOL_FAILURE"
)

// errorCodeMap maps sentinel errors to their machine-parseable codes.
var errorCodeMap = map[error]ErrorCode{
	ErrNetwork:          CodeNetworkError,
	ErrTimeout:          CodeTimeout,
	ErrParse:            CodeParseError,
	ErrProvider:         CodeProviderError,
	ErrInvalidInput:     CodeInvalidInput,
	ErrProviderNotFound: CodeProviderNotFound,
	ErrToolNotFound:     CodeUnknownTool,
	ErrMaxSteps:         CodeBudgetExceeded,
	ErrRoundBudget:      CodeBudgetExceeded,
	ErrConfigLoad:       CodeConfigError,
	ErrRateLimit:        CodeRateLimit,
	ErrAuthInvalid:      CodeAuthInvalid,
	ErrToolFailure:      CodeToolFailure,
}

// ErrorCodeOf returns the machine-parseable error code for the given error.
// It unwraps DomainError and uses errors.Is to match sentinel errors.
// Returns CodeUnknown if no matching sentinel is found.
func ErrorCodeOf(err error) ErrorCode {
	if err == nil {
		return CodeUnknown
	}

	// Fast path: direct sentinel lookup.
	if code, ok := errorCodeMap[err]; ok {
		return code
	}

	var de *DomainError
	if errors.As(err, &de) {
		if code, ok := errorCodeMap[de.Err]; ok {
			return code
		}
	}

	// Walk the error chain with errors.Is.
	for sentinel, code := range errorCodeMap {
		if errors.Is(err, sentinel) {
			return code
		}
	}

	return CodeUnknown
}
