package engine

import (
	"strings"
	"testing"
	"time"

	"dsadojo/internal/grading"
	"dsadojo/internal/questions"
)

func TestResolveCommandOverride(t *testing.T) {
	tests := []struct {
		name     string
		override string
		want     []string
	}{
		{name: "plain binary", override: "/opt/judge/engine", want: []string{"/opt/judge/engine", "--stdio"}},
		{name: "stdio already present", override: "engine --stdio", want: []string{"engine", "--stdio"}},
		{name: "quoted path", override: `"/opt/my judge/engine" --debug`, want: []string{"/opt/my judge/engine", "--debug", "--stdio"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := resolveCommand(tt.override)
			if err != nil {
				t.Fatalf("resolveCommand: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Fatalf("got %v, want %v", got, tt.want)
				}
			}
		})
	}
}

func TestCheckVersion(t *testing.T) {
	if err := checkVersion("0.1.0"); err != nil {
		t.Fatalf("minimum version rejected: %v", err)
	}
	if err := checkVersion("v1.2.3"); err != nil {
		t.Fatalf("v-prefixed version rejected: %v", err)
	}
	if err := checkVersion("0.0.9"); err == nil {
		t.Fatalf("expected old version to be rejected")
	}
	if err := checkVersion("not-a-version"); err == nil {
		t.Fatalf("expected garbage version to be rejected")
	}
}

func TestParseVmHWM(t *testing.T) {
	status := "Name:\tprogram\nVmPeak:\t  5196 kB\nVmHWM:\t  1732 kB\nVmRSS:\t  1600 kB\n"
	if got := parseVmHWM([]byte(status)); got != 1732 {
		t.Fatalf("parseVmHWM = %d, want 1732", got)
	}
	if got := parseVmHWM([]byte("Name:\tprogram\n")); got != 0 {
		t.Fatalf("parseVmHWM without VmHWM = %d, want 0", got)
	}
}

func TestDifficultyBucket(t *testing.T) {
	tests := []struct {
		level int
		want  string
	}{
		{1, DifficultyEasy},
		{2, DifficultyEasy},
		{3, DifficultyMedium},
		{4, DifficultyHard},
		{5, DifficultyHard},
	}
	for _, tt := range tests {
		if got := difficultyBucket(tt.level); got != tt.want {
			t.Fatalf("difficultyBucket(%d) = %q, want %q", tt.level, got, tt.want)
		}
	}
}

func judgeRequestFixture() grading.Request {
	return grading.Request{
		SetID:      "dsa-core",
		QuestionID: "q-001",
		Title:      "Reverse an Array",
		Difficulty: 2,
		Topics:     []string{"arrays"},
		StartedAt:  time.Now().Add(-time.Second),
		FinishedAt: time.Now(),
		Language:   "c",
		Files: []questions.CodeFile{
			{Filename: "main.c", Content: "int main(){return 0;}"},
			{Filename: "judge.c", Content: "// hidden", IsHidden: true},
		},
		Tests: []questions.TestCase{
			{Input: "1 2 3\n", ExpectedOutput: "3 2 1\n"},
			{Input: "9\n", ExpectedOutput: "9\n", IsHidden: true},
		},
		NormalizeCRLF:         true,
		IgnoreExtraWhitespace: true,
		TimeoutSeconds:        4,
	}
}

func TestBuildJudgeRequestCarriesAllFiles(t *testing.T) {
	req := judgeRequestFixture()
	wire := buildJudgeRequest(req)

	if len(wire.Files) != 2 {
		t.Fatalf("wire files = %d, want 2 (hidden files must be sent)", len(wire.Files))
	}
	if wire.Code != "" {
		t.Fatalf("legacy code field should stay empty when files are set")
	}
	if wire.Problem.ID != "q-001" || wire.Problem.Title != "Reverse an Array" {
		t.Fatalf("problem header wrong: %+v", wire.Problem)
	}
	if wire.Problem.Difficulty != DifficultyEasy {
		t.Fatalf("difficulty = %q, want %q", wire.Problem.Difficulty, DifficultyEasy)
	}
	if wire.Problem.TimeLimit != 4000 {
		t.Fatalf("time limit = %d ms, want 4000", wire.Problem.TimeLimit)
	}
	if len(wire.Problem.TestCases) != 2 || !wire.Problem.TestCases[1].IsHidden {
		t.Fatalf("test cases wrong: %+v", wire.Problem.TestCases)
	}
	if !wire.Normalization.NormalizeCRLF || !wire.Normalization.IgnoreExtraWhitespace {
		t.Fatalf("normalization options dropped: %+v", wire.Normalization)
	}
}

func TestResultFromWireRejoinsInputsAndHiddenFlags(t *testing.T) {
	req := judgeRequestFixture()
	resp := JudgeResponse{
		Success: true,
		Status:  "Ok",
		Result: &SubmissionResult{
			ProblemID:             "q-001",
			TotalTestCases:        2,
			PassedTestCases:       2,
			CompilationSuccessful: true,
			TestCaseResults: []TestCaseResult{
				{TestCaseID: 0, Passed: true, ExpectedOutput: "3 2 1", ActualOutput: "3 2 1",
					ExecutionResult: ExecutionResult{Success: true, ExecutionTime: 10, MemoryUsage: 1500}},
				{TestCaseID: 1, Passed: true, ExpectedOutput: "9", ActualOutput: "9",
					ExecutionResult: ExecutionResult{Success: true, ExecutionTime: 7, MemoryUsage: 1400}},
			},
		},
	}

	res, err := resultFromWire(req, resp)
	if err != nil {
		t.Fatalf("resultFromWire: %v", err)
	}
	if res.Status != grading.StatusOK || !res.Passed {
		t.Fatalf("status = %q passed = %v", res.Status, res.Passed)
	}
	if res.Tests[0].Input != "1 2 3\n" {
		t.Fatalf("input not rejoined: %+v", res.Tests[0])
	}
	if !res.Tests[1].IsHidden {
		t.Fatalf("hidden flag not rejoined: %+v", res.Tests[1])
	}
	if res.Score.PassedTests != 2 || res.Score.Percent != 100 {
		t.Fatalf("score = %+v", res.Score)
	}
}

func TestResultFromWireCompileError(t *testing.T) {
	req := judgeRequestFixture()
	resp := JudgeResponse{
		Success: true,
		Status:  "CompileError",
		Result: &SubmissionResult{
			ProblemID:        "q-001",
			CompilationError: "main.c:1: error: expected ';'",
		},
	}

	res, err := resultFromWire(req, resp)
	if err != nil {
		t.Fatalf("resultFromWire: %v", err)
	}
	if res.Status != grading.StatusCompileError {
		t.Fatalf("status = %q, want compile error", res.Status)
	}
	if !strings.Contains(res.CompileError, "expected ';'") {
		t.Fatalf("compile error text lost: %q", res.CompileError)
	}
	if res.Passed {
		t.Fatalf("compile error must not count as passed")
	}
}

func TestResultFromWireErrorResponse(t *testing.T) {
	req := judgeRequestFixture()
	if _, err := resultFromWire(req, JudgeResponse{Success: false, Error: "environment check failed", Status: "EnvError"}); err == nil {
		t.Fatalf("expected error for resultless response")
	}
}
