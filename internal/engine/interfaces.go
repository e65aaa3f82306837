package engine

import (
	"context"

	"dsadojo/internal/grading"
	"dsadojo/internal/questions"
)

// Engine is the judge host: it grades submissions and runs compiled
// programs interactively. Detect returns either the external engine binary
// wrapped in a Service or the builtin Mock.
type Engine interface {
	grading.Judge

	Info() Info
	Ping(ctx context.Context) error
	EnvCheck(ctx context.Context) error
	StartExecution(ctx context.Context, req StartRequest) (StartResult, error)
	WriteExecution(sessionID string, data []byte) error
	StopExecution(ctx context.Context, sessionID string) error
	Events() <-chan Event
	Close() error
}

type Info struct {
	Name    string
	Version string
	Mock    bool
}

// Event is one message about a run session. Data chunks stream while the
// program runs; the final event has Exit set along with the resource
// summary.
type Event struct {
	SessionID       string
	Data            []byte
	Err             string
	Exit            bool
	ExitCode        int
	ExecutionTimeMS int64
	MemoryUsageKB   int64
}

// StartRequest carries the complete file set for a run, hidden and locked
// files included.
type StartRequest struct {
	QuestionID string
	Language   string
	Files      []questions.CodeFile
}

type StartResult struct {
	Success   bool
	SessionID string
	Error     string
}
