package grading

import (
	"time"

	"dsadojo/internal/questions"
)

const (
	ResultKind    = "judge_result"
	SchemaVersion = 1
)

// OverallStatus values match the engine wire format.
type OverallStatus string

const (
	StatusOK                  OverallStatus = "Ok"
	StatusCompileError        OverallStatus = "CompileError"
	StatusRuntimeError        OverallStatus = "RuntimeError"
	StatusTimeout             OverallStatus = "Timeout"
	StatusUnsupportedLanguage OverallStatus = "UnsupportedLanguage"
	StatusEnvError            OverallStatus = "EnvError"
)

// TimeLimitExceeded is the error text the engine attaches to a timed-out
// test run. Status derivation keys on it.
const TimeLimitExceeded = "Time limit exceeded"

type Request struct {
	AppVersion string
	SetID      string
	SetVersion string
	QuestionID string
	Title      string
	Difficulty int
	Topics     []string

	SubmissionID string
	Attempt      int
	StartedAt    time.Time
	FinishedAt   time.Time

	Engine        string
	EngineVersion string

	Language string
	Files    []questions.CodeFile
	Tests    []questions.TestCase

	NormalizeCRLF         bool
	IgnoreExtraWhitespace bool
	TimeoutSeconds        int
}

type Result struct {
	Kind          string `json:"kind"`
	SchemaVersion int    `json:"schema_version"`

	AppVersion string `json:"app_version,omitempty"`
	SetID      string `json:"set_id"`
	SetVersion string `json:"set_version"`
	QuestionID string `json:"question_id"`

	Run          RunInfo       `json:"run"`
	Status       OverallStatus `json:"status"`
	Passed       bool          `json:"passed"`
	CompileError string        `json:"compile_error,omitempty"`
	Score        Score         `json:"score"`
	Tests        []TestResult  `json:"tests"`
	EngineDebug  EngineDebug   `json:"engine_debug,omitempty"`
}

type RunInfo struct {
	SubmissionID     string `json:"submission_id"`
	Attempt          int    `json:"attempt"`
	StartedAtUnixMS  int64  `json:"started_at_unix_ms"`
	FinishedAtUnixMS int64  `json:"finished_at_unix_ms"`
	DurationMS       int64  `json:"duration_ms"`
}

type Score struct {
	PassedTests          int     `json:"passed_tests"`
	TotalTests           int     `json:"total_tests"`
	Percent              float64 `json:"percent"`
	TotalExecutionTimeMS int64   `json:"total_execution_time_ms"`
}

type TestResult struct {
	Index           int    `json:"index"`
	Passed          bool   `json:"passed"`
	IsHidden        bool   `json:"is_hidden"`
	Input           string `json:"input"`
	ExpectedOutput  string `json:"expected_output"`
	ActualOutput    string `json:"actual_output"`
	ExecutionTimeMS int64  `json:"execution_time_ms"`
	MemoryUsageKB   int64  `json:"memory_usage_kb"`
	Error           string `json:"error,omitempty"`
}

type EngineDebug struct {
	Engine  string `json:"engine,omitempty"`
	Version string `json:"version,omitempty"`
}
