package app

import (
	"strings"
	"testing"

	"dsadojo/internal/grading"
	"dsadojo/internal/questions"
)

func mustContain(t *testing.T, got string, wants ...string) {
	t.Helper()
	for _, want := range wants {
		if !strings.Contains(got, want) {
			t.Fatalf("feedback missing %q:\n%s", want, got)
		}
	}
}

func mustNotContain(t *testing.T, got string, nots ...string) {
	t.Helper()
	for _, not := range nots {
		if strings.Contains(got, not) {
			t.Fatalf("feedback unexpectedly contains %q:\n%s", not, got)
		}
	}
}

func TestFeedbackNearMissPointsAtFormatting(t *testing.T) {
	q := questions.Question{Topics: []string{"arrays"}}
	result := grading.Result{
		Status: grading.StatusOK,
		Score:  grading.Score{PassedTests: 0, TotalTests: 1},
		Tests: []grading.TestResult{
			{Index: 0, Passed: false, ExpectedOutput: "1, 2, 3\n", ActualOutput: "1 2 3\n"},
		},
	}

	got := buildSubmissionFeedback(q, result)
	mustContain(t, got,
		"0 of 1 tests passed.",
		"Output hint",
		"Test 1 output is 2 edit(s) away from expected.",
		"Start with test 1",
		"Topics to review",
		"- arrays",
	)
}

func TestFeedbackCompileError(t *testing.T) {
	q := questions.Question{Topics: []string{"strings", "stacks"}}
	result := grading.Result{
		Status:       grading.StatusCompileError,
		CompileError: "main.c:3:1: error: expected ';'\ncompilation terminated.",
		Score:        grading.Score{TotalTests: 3},
	}

	got := buildSubmissionFeedback(q, result)
	mustContain(t, got,
		"did not compile: main.c:3:1: error: expected ';'",
		"Fix the compile errors first; no tests ran.",
		"- strings",
		"- stacks",
	)
	mustNotContain(t, got, "Output hint", "Start with test")
}

func TestFeedbackHiddenOnlyFailures(t *testing.T) {
	result := grading.Result{
		Status: grading.StatusOK,
		Score:  grading.Score{PassedTests: 2, TotalTests: 3},
		Tests: []grading.TestResult{
			{Index: 0, Passed: true},
			{Index: 1, Passed: true, IsHidden: true},
			{Index: 2, Passed: false, IsHidden: true, ExpectedOutput: "yes", ActualOutput: "no"},
		},
	}

	got := buildSubmissionFeedback(questions.Question{}, result)
	mustContain(t, got, "Only hidden tests failed.")
	mustNotContain(t, got, "Start with test", "Output hint")
}

func TestFeedbackPassNudge(t *testing.T) {
	q := questions.Question{Topics: []string{"linked-lists"}}
	result := grading.Result{
		Status: grading.StatusOK,
		Passed: true,
		Score:  grading.Score{PassedTests: 2, TotalTests: 2},
		Tests: []grading.TestResult{
			{Index: 0, Passed: true},
			{Index: 1, Passed: true, IsHidden: true},
		},
	}

	got := buildSubmissionFeedback(q, result)
	mustContain(t, got, "All 2 tests passed.", "Nice run.")
	mustNotContain(t, got, "Topics to review")
}

func TestFeedbackTimeout(t *testing.T) {
	result := grading.Result{
		Status: grading.StatusTimeout,
		Score:  grading.Score{PassedTests: 1, TotalTests: 2},
		Tests: []grading.TestResult{
			{Index: 0, Passed: true},
			{Index: 1, Passed: false, Error: grading.TimeLimitExceeded},
		},
	}

	got := buildSubmissionFeedback(questions.Question{}, result)
	mustContain(t, got, "Test 2 exceeded the time limit.")
}

func TestFeedbackRuntimeError(t *testing.T) {
	result := grading.Result{
		Status: grading.StatusRuntimeError,
		Score:  grading.Score{TotalTests: 1},
		Tests: []grading.TestResult{
			{Index: 0, Passed: false, Error: "signal: segmentation fault"},
		},
	}

	got := buildSubmissionFeedback(questions.Question{}, result)
	mustContain(t, got, "Test 1 crashed: signal: segmentation fault")
}
