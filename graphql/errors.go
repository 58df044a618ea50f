package graphql

import (
	"fmt"
	"strings"
)

// ResponseError is a GraphQL response carrying an "errors" array.
type ResponseError struct {
	StatusCode int
	Messages   []string
}

func newResponseError(status int, errs []gqlError) *ResponseError {
	e := &ResponseError{StatusCode: status, Messages: make([]string, 0, len(errs))}
	for _, ge := range errs {
		e.Messages = append(e.Messages, ge.Message)
	}
	return e
}

func (e *ResponseError) Error() string {
	return "graphql: " + strings.Join(e.Messages, "; ")
}

// StatusError is a non-2xx HTTP response without GraphQL errors.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("graphql: unexpected status %d", e.StatusCode)
	}
	return fmt.Sprintf("graphql: unexpected status %d: %s", e.StatusCode, e.Body)
}
