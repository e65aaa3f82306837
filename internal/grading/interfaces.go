package grading

import "context"

// Judge evaluates one submission against its test cases and produces the
// persisted result document.
type Judge interface {
	Judge(ctx context.Context, req Request) (Result, error)
}
