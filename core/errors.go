package core

import (
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	SearchErrorInvalidFragment = "SEARCH_INVALID_FRAGMENT"
	SearchErrorArithmetic      = "SEARCH_ARITHMETIC"
	SearchErrorQueryFailed     = "SEARCH_QUERY_FAILED"
	SearchErrorBadInput        = "SEARCH_BAD_INPUT"
	SearchErrorRateLimited     = "SEARCH_RATE_LIMITED"
	SearchErrorInternal        = "SEARCH_INTERNAL_ERROR"
)

func invalidFragmentError(fragment string, digits int) *goerrors.Error {
	return goerrors.New("search: short id fragment is too long or too short", goerrors.CategoryBadInput).
		WithCode(http.StatusBadRequest).
		WithTextCode(SearchErrorInvalidFragment).
		WithMetadata(map[string]any{
			"fragment": fragment,
			"digits":   digits,
			"max":      CanonicalWidth,
		})
}

func arithmeticError(base string, err error) *goerrors.Error {
	return goerrors.Wrap(err, goerrors.CategoryOperation, "search: failed to increment short id fragment "+base).
		WithCode(http.StatusBadRequest).
		WithTextCode(SearchErrorArithmetic)
}

// QueryExecutionError wraps an ordered index failure. The envelope message is
// the underlying failure message.
func QueryExecutionError(err error) *goerrors.Error {
	if err == nil {
		return nil
	}
	var rich *goerrors.Error
	if goerrors.As(err, &rich) && rich.TextCode == SearchErrorRateLimited {
		return rich
	}
	return goerrors.Wrap(err, goerrors.CategoryExternal, err.Error()).
		WithCode(http.StatusBadGateway).
		WithTextCode(SearchErrorQueryFailed)
}

func badInputError(message string) *goerrors.Error {
	return goerrors.New(message, goerrors.CategoryBadInput).
		WithCode(http.StatusBadRequest).
		WithTextCode(SearchErrorBadInput)
}

// DependencyError reports a handler or service built without a required
// collaborator.
func DependencyError(message string) *goerrors.Error {
	return dependencyError(message)
}

// Violations collects every invalid field of a message into a single
// validation envelope.
type Violations struct {
	scope  string
	fields []goerrors.FieldError
}

func NewViolations(scope string) *Violations {
	return &Violations{scope: strings.TrimSpace(scope)}
}

func (v *Violations) Add(field string, message string) *Violations {
	v.fields = append(v.fields, goerrors.FieldError{Field: field, Message: message})
	return v
}

// Require adds a violation when value is blank.
func (v *Violations) Require(field string, value string, message string) *Violations {
	if strings.TrimSpace(value) == "" {
		v.Add(field, message)
	}
	return v
}

func (v *Violations) Err() error {
	if v == nil || len(v.fields) == 0 {
		return nil
	}
	scope := v.scope
	if scope == "" {
		scope = "search"
	}
	return goerrors.NewValidation(scope+": validation failed", v.fields...).
		WithCode(http.StatusBadRequest).
		WithTextCode(SearchErrorBadInput).
		WithSeverity(goerrors.SeverityError)
}

func dependencyError(message string) *goerrors.Error {
	return goerrors.New(message, goerrors.CategoryInternal).
		WithCode(http.StatusInternalServerError).
		WithTextCode(SearchErrorInternal)
}

func IsInvalidFragment(err error) bool {
	return hasTextCode(err, SearchErrorInvalidFragment)
}

func IsArithmeticError(err error) bool {
	return hasTextCode(err, SearchErrorArithmetic)
}

func IsQueryExecutionError(err error) bool {
	return hasTextCode(err, SearchErrorQueryFailed)
}

func hasTextCode(err error, code string) bool {
	if err == nil {
		return false
	}
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		return false
	}
	return rich.TextCode == code
}

func searchErrorMapper(err error) *goerrors.Error {
	if err == nil {
		return nil
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return ensureSearchErrorEnvelope(richErr)
	}

	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	switch {
	case strings.Contains(msg, "fragment"):
		return newSearchError(err.Error(), goerrors.CategoryBadInput, SearchErrorInvalidFragment)
	case strings.Contains(msg, "throttl"), strings.Contains(msg, "rate limit"):
		return newSearchError(err.Error(), goerrors.CategoryRateLimit, SearchErrorRateLimited)
	case strings.Contains(msg, "required"), strings.Contains(msg, "invalid"), strings.Contains(msg, "unsupported"):
		return newSearchError(err.Error(), goerrors.CategoryBadInput, SearchErrorBadInput)
	}

	mapped := goerrors.MapToError(err, goerrors.DefaultErrorMappers())
	return ensureSearchErrorEnvelope(mapped)
}

func newSearchError(message string, category goerrors.Category, textCode string) *goerrors.Error {
	return ensureSearchErrorEnvelope(
		goerrors.New(message, category).
			WithTextCode(textCode),
	)
}

func ensureSearchErrorEnvelope(err *goerrors.Error) *goerrors.Error {
	if err == nil {
		return nil
	}
	if err.Code == 0 {
		err.Code = searchHTTPStatus(err.Category)
	}
	if strings.TrimSpace(err.TextCode) == "" {
		err.TextCode = defaultSearchTextCode(err.Category)
	}
	if err.Category == goerrors.CategoryInternal && strings.TrimSpace(err.Message) == "" {
		err.Message = "An unexpected error occurred"
	}
	return err
}

func defaultSearchTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return SearchErrorBadInput
	case goerrors.CategoryExternal:
		return SearchErrorQueryFailed
	case goerrors.CategoryRateLimit:
		return SearchErrorRateLimited
	default:
		return SearchErrorInternal
	}
}

func searchHTTPStatus(category goerrors.Category) int {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return http.StatusBadRequest
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryExternal:
		return http.StatusBadGateway
	case goerrors.CategoryRateLimit:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
