package engine

import "encoding/json"

// The engine speaks line-delimited JSON over stdio. Requests are tagged by
// the "action" field with the remaining fields flattened alongside it;
// responses echo the request id and carry an action-specific payload under
// "data".
const (
	actionPing     = "ping"
	actionVersion  = "version"
	actionEnvCheck = "env_check"
	actionJudge    = "judge"
	actionExecute  = "execute"
)

type request struct {
	Action string `json:"action"`
	ID     string `json:"id"`

	// judge
	Request *JudgeRequest `json:"request,omitempty"`

	// execute
	Code     string     `json:"code,omitempty"`
	Language string     `json:"language,omitempty"`
	Files    []CodeFile `json:"files,omitempty"`
}

type response struct {
	ID      string          `json:"id"`
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

type CodeFile struct {
	Filename string `json:"filename"`
	Content  string `json:"content"`
}

type TestCase struct {
	Input          string `json:"input"`
	ExpectedOutput string `json:"expected_output"`
	IsHidden       bool   `json:"is_hidden"`
}

// Difficulty buckets understood by the engine.
const (
	DifficultyEasy   = "Easy"
	DifficultyMedium = "Medium"
	DifficultyHard   = "Hard"
)

type Problem struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Difficulty  string     `json:"difficulty"`
	TimeLimit   int64      `json:"time_limit"`   // milliseconds
	MemoryLimit int64      `json:"memory_limit"` // MB
	TestCases   []TestCase `json:"test_cases"`
	Tags        []string   `json:"tags"`
}

type NormalizationOptions struct {
	NormalizeCRLF         bool `json:"normalize_crlf"`
	IgnoreExtraWhitespace bool `json:"ignore_extra_whitespace"`
}

// JudgeRequest carries a full submission. Files is the multi-file form;
// Code remains for engines that predate it.
type JudgeRequest struct {
	Code          string               `json:"code,omitempty"`
	Files         []CodeFile           `json:"files,omitempty"`
	Problem       Problem              `json:"problem"`
	Language      string               `json:"language"`
	Normalization NormalizationOptions `json:"normalization"`
}

type ExecutionResult struct {
	Success       bool   `json:"success"`
	Output        string `json:"output"`
	Error         string `json:"error"`
	ExecutionTime int64  `json:"execution_time"` // milliseconds
	MemoryUsage   int64  `json:"memory_usage"`   // KB
}

type TestCaseResult struct {
	TestCaseID      int             `json:"test_case_id"`
	Passed          bool            `json:"passed"`
	ExecutionResult ExecutionResult `json:"execution_result"`
	ExpectedOutput  string          `json:"expected_output"`
	ActualOutput    string          `json:"actual_output"`
}

type SubmissionResult struct {
	ProblemID             string           `json:"problem_id"`
	TotalTestCases        int              `json:"total_test_cases"`
	PassedTestCases       int              `json:"passed_test_cases"`
	TestCaseResults       []TestCaseResult `json:"test_case_results"`
	CompilationSuccessful bool             `json:"compilation_successful"`
	CompilationError      string           `json:"compilation_error"`
	TotalExecutionTime    int64            `json:"total_execution_time"`
	Score                 float64          `json:"score"`
	CompileTimeMS         int64            `json:"compile_time_ms"`
	ExecutableSizeBytes   int64            `json:"executable_size_bytes"`
}

type JudgeResponse struct {
	Success bool              `json:"success"`
	Result  *SubmissionResult `json:"result"`
	Error   string            `json:"error"`
	Status  string            `json:"status"`
}

type CompileResult struct {
	Success        bool   `json:"success"`
	ExecutablePath string `json:"executable_path"`
	Error          string `json:"error"`
	CompileTimeMS  int64  `json:"compile_time_ms"`
}
