package grading

import (
	"testing"
	"time"
)

func TestNormalizeOutput(t *testing.T) {
	tests := []struct {
		name string
		in   string
		opts NormalizeOptions
		want string
	}{
		{
			name: "trims lines and whole output by default",
			in:   "  3 2 1  \n",
			want: "3 2 1",
		},
		{
			name: "crlf folding",
			in:   "a\r\nb\r\n",
			opts: NormalizeOptions{NormalizeCRLF: true},
			want: "a\nb",
		},
		{
			name: "collapses whitespace runs when asked",
			in:   "1   2\t3\n",
			opts: NormalizeOptions{IgnoreExtraWhitespace: true},
			want: "1 2 3",
		},
		{
			name: "whitespace runs survive without the option",
			in:   "1   2\n",
			want: "1   2",
		},
		{
			name: "empty output",
			in:   "\n\n",
			want: "",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := NormalizeOutput(tc.in, tc.opts); got != tc.want {
				t.Fatalf("got %q, want %q", got, tc.want)
			}
		})
	}
}

func baseRequest() Request {
	start := time.Unix(1700000000, 0)
	return Request{
		AppVersion:   "0.1.0",
		SetID:        "dsa-core",
		SetVersion:   "0.1.0",
		QuestionID:   "q-001-array-reverse",
		SubmissionID: "sub-1",
		Attempt:      1,
		StartedAt:    start,
		FinishedAt:   start.Add(2 * time.Second),
		Engine:       "mock",
	}
}

func TestBuildResultFullPass(t *testing.T) {
	tests := []TestResult{
		{Index: 0, Passed: true, ExecutionTimeMS: 12},
		{Index: 1, Passed: true, ExecutionTimeMS: 8},
		{Index: 2, Passed: true, IsHidden: true, ExecutionTimeMS: 10},
	}
	res := BuildResult(baseRequest(), tests, "")
	if !res.Passed {
		t.Fatalf("expected full pass")
	}
	if res.Status != StatusOK {
		t.Fatalf("got status %q, want %q", res.Status, StatusOK)
	}
	if res.Score.PassedTests != 3 || res.Score.TotalTests != 3 {
		t.Fatalf("unexpected score %+v", res.Score)
	}
	if res.Score.Percent != 100.0 {
		t.Fatalf("got percent %v, want 100", res.Score.Percent)
	}
	if res.Score.TotalExecutionTimeMS != 30 {
		t.Fatalf("got total execution time %d, want 30", res.Score.TotalExecutionTimeMS)
	}
	if res.Kind != ResultKind || res.SchemaVersion != SchemaVersion {
		t.Fatalf("unexpected result metadata: kind=%s schema=%d", res.Kind, res.SchemaVersion)
	}
	if res.Run.DurationMS != 2000 {
		t.Fatalf("got duration %d, want 2000", res.Run.DurationMS)
	}
}

func TestBuildResultWrongAnswerStaysOK(t *testing.T) {
	tests := []TestResult{
		{Index: 0, Passed: true},
		{Index: 1, Passed: false, ExpectedOutput: "2\n", ActualOutput: "3\n"},
	}
	res := BuildResult(baseRequest(), tests, "")
	if res.Passed {
		t.Fatalf("partial pass must not be a full pass")
	}
	if res.Status != StatusOK {
		t.Fatalf("wrong answers alone should keep status Ok, got %q", res.Status)
	}
	if res.Score.PassedTests != 1 || res.Score.Percent != 50.0 {
		t.Fatalf("unexpected score %+v", res.Score)
	}
}

func TestBuildResultStatusPrecedence(t *testing.T) {
	tests := []struct {
		name       string
		tests      []TestResult
		compileErr string
		want       OverallStatus
	}{
		{
			name:       "compile error wins",
			tests:      nil,
			compileErr: "main.c:3: expected ';'",
			want:       StatusCompileError,
		},
		{
			name: "timeout beats runtime error",
			tests: []TestResult{
				{Index: 0, Passed: false, Error: TimeLimitExceeded},
				{Index: 1, Passed: false, Error: "segmentation fault"},
			},
			want: StatusTimeout,
		},
		{
			name: "runtime error surfaces",
			tests: []TestResult{
				{Index: 0, Passed: true},
				{Index: 1, Passed: false, Error: "divide by zero"},
			},
			want: StatusRuntimeError,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			res := BuildResult(baseRequest(), tc.tests, tc.compileErr)
			if res.Status != tc.want {
				t.Fatalf("got status %q, want %q", res.Status, tc.want)
			}
			if res.Passed {
				t.Fatalf("failing run must not report Passed")
			}
		})
	}
}
