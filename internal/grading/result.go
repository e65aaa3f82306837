package grading

import "strings"

type NormalizeOptions struct {
	NormalizeCRLF         bool
	IgnoreExtraWhitespace bool
}

// NormalizeOutput prepares program output for comparison. Each line is
// trimmed and the whole string is trimmed regardless of options; CRLF
// folding and whitespace collapsing are opt-in per question.
func NormalizeOutput(s string, opts NormalizeOptions) string {
	if opts.NormalizeCRLF {
		s = strings.ReplaceAll(s, "\r\n", "\n")
	}
	if opts.IgnoreExtraWhitespace {
		lines := strings.Split(s, "\n")
		for i, line := range lines {
			lines[i] = strings.Join(strings.Fields(line), " ")
		}
		s = strings.Join(lines, "\n")
	}
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// BuildResult assembles the final result from per-test outcomes. Status
// rules: a full pass is Ok; otherwise a timed-out test wins over a runtime
// error; wrong answers alone stay Ok with Passed=false.
func BuildResult(req Request, tests []TestResult, compileErr string) Result {
	passed := 0
	var totalMS int64
	sawTimeout := false
	sawRuntimeErr := false
	for _, t := range tests {
		if t.Passed {
			passed++
		}
		totalMS += t.ExecutionTimeMS
		if t.Error == TimeLimitExceeded {
			sawTimeout = true
		} else if t.Error != "" {
			sawRuntimeErr = true
		}
	}

	status := StatusOK
	switch {
	case compileErr != "":
		status = StatusCompileError
	case passed == len(tests):
	case sawTimeout:
		status = StatusTimeout
	case sawRuntimeErr:
		status = StatusRuntimeError
	}

	percent := 0.0
	if len(tests) > 0 {
		percent = float64(passed) / float64(len(tests)) * 100.0
	}

	return Result{
		Kind:          ResultKind,
		SchemaVersion: SchemaVersion,
		AppVersion:    req.AppVersion,
		SetID:         req.SetID,
		SetVersion:    req.SetVersion,
		QuestionID:    req.QuestionID,
		Run: RunInfo{
			SubmissionID:     req.SubmissionID,
			Attempt:          req.Attempt,
			StartedAtUnixMS:  req.StartedAt.UnixMilli(),
			FinishedAtUnixMS: req.FinishedAt.UnixMilli(),
			DurationMS:       req.FinishedAt.Sub(req.StartedAt).Milliseconds(),
		},
		Status:       status,
		Passed:       compileErr == "" && len(tests) > 0 && passed == len(tests),
		CompileError: compileErr,
		Score: Score{
			PassedTests:          passed,
			TotalTests:           len(tests),
			Percent:              percent,
			TotalExecutionTimeMS: totalMS,
		},
		Tests:       tests,
		EngineDebug: EngineDebug{Engine: req.Engine, Version: req.EngineVersion},
	}
}
