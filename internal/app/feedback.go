package app

import (
	"fmt"
	"strings"

	"dsadojo/internal/grading"
	"dsadojo/internal/questions"

	"github.com/agnivade/levenshtein"
)

// buildSubmissionFeedback renders the coaching text shown under the result
// rows: what the status means, which test to look at first, and a
// formatting nudge when the output is almost right.
func buildSubmissionFeedback(q questions.Question, result grading.Result) string {
	var b strings.Builder

	b.WriteString("Status\n")
	b.WriteString(statusExplanation(result))
	b.WriteString("\n")

	if hint := nearMissHint(result.Tests); hint != "" {
		b.WriteString("\nOutput hint\n- " + hint + "\n")
	}

	coach := failureCoaching(result)
	if len(coach) > 0 {
		b.WriteString("\nWhere to look\n")
		for _, line := range coach {
			b.WriteString("- " + line + "\n")
		}
	} else if result.Passed {
		b.WriteString("\nWhere to look\n- Nice run. Try tightening time or memory, or move on to the next question.\n")
	}

	if len(q.Topics) > 0 && !result.Passed {
		b.WriteString("\nTopics to review\n")
		for _, topic := range q.Topics {
			b.WriteString("- " + strings.TrimSpace(topic) + "\n")
		}
	}

	return strings.TrimSpace(b.String())
}

func statusExplanation(result grading.Result) string {
	switch result.Status {
	case grading.StatusCompileError:
		line := firstErrorLine(result.CompileError)
		if line == "" {
			return "The code did not compile."
		}
		return "The code did not compile: " + line
	case grading.StatusTimeout:
		if f := firstFailure(result.Tests); f != nil {
			return fmt.Sprintf("Test %d exceeded the time limit. Look for unbounded loops or an algorithm with a worse complexity than needed.", f.Index+1)
		}
		return "A test exceeded the time limit."
	case grading.StatusRuntimeError:
		if f := firstFailure(result.Tests); f != nil && f.Error != "" {
			return fmt.Sprintf("Test %d crashed: %s", f.Index+1, f.Error)
		}
		return "The program crashed on at least one test."
	case grading.StatusUnsupportedLanguage:
		return "The engine does not support this language."
	case grading.StatusEnvError:
		return "The engine environment is missing a required toolchain."
	}
	if result.Passed {
		return fmt.Sprintf("All %d tests passed.", result.Score.TotalTests)
	}
	return fmt.Sprintf("%d of %d tests passed.", result.Score.PassedTests, result.Score.TotalTests)
}

// nearMissHint flags the first visible failure whose output is a small
// edit away from the expected one. Those are almost always formatting
// bugs, not logic bugs.
func nearMissHint(tests []grading.TestResult) string {
	for _, t := range tests {
		if t.Passed || t.IsHidden || t.Error != "" {
			continue
		}
		expected := strings.TrimSpace(t.ExpectedOutput)
		actual := strings.TrimSpace(t.ActualOutput)
		if expected == "" || actual == "" {
			continue
		}
		dist := levenshtein.ComputeDistance(expected, actual)
		if dist == 0 {
			continue
		}
		if dist <= 2 || dist*10 <= len(expected) {
			return fmt.Sprintf("Test %d output is %d edit(s) away from expected. Check spacing, separators and the final newline before changing the algorithm.", t.Index+1, dist)
		}
	}
	return ""
}

func failureCoaching(result grading.Result) []string {
	var out []string
	if result.Status == grading.StatusCompileError {
		out = append(out, "Fix the compile errors first; no tests ran.")
		return out
	}
	if f := firstFailure(result.Tests); f != nil && !f.IsHidden {
		out = append(out, fmt.Sprintf("Start with test %d; its input is shown in the result table.", f.Index+1))
	}
	if hiddenOnlyFailures(result.Tests) {
		out = append(out, "Only hidden tests failed. Think about edge cases: empty input, single elements, values at the limits.")
	}
	return out
}

func firstFailure(tests []grading.TestResult) *grading.TestResult {
	for i := range tests {
		if !tests[i].Passed {
			return &tests[i]
		}
	}
	return nil
}

func hiddenOnlyFailures(tests []grading.TestResult) bool {
	hiddenFailed := false
	for _, t := range tests {
		if t.Passed {
			continue
		}
		if !t.IsHidden {
			return false
		}
		hiddenFailed = true
	}
	return hiddenFailed
}

func firstErrorLine(s string) string {
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			return line
		}
	}
	return ""
}
