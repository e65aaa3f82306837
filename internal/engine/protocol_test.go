package engine

import (
	"encoding/json"
	"testing"
)

func TestJudgeRequestEnvelopeNestsUnderRequest(t *testing.T) {
	req := request{
		Action: actionJudge,
		ID:     "req-1",
		Request: &JudgeRequest{
			Files:    []CodeFile{{Filename: "main.c", Content: "int main(){}"}},
			Language: "c",
			Problem:  Problem{ID: "q-1", Difficulty: DifficultyEasy, TimeLimit: 2000},
		},
	}
	payload, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var raw map[string]any
	if err := json.Unmarshal(payload, &raw); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if raw["action"] != "judge" || raw["id"] != "req-1" {
		t.Fatalf("envelope tag wrong: %v", raw)
	}
	if _, flat := raw["files"]; flat {
		t.Fatalf("judge files must nest under request, got flat files: %s", payload)
	}
	nested, ok := raw["request"].(map[string]any)
	if !ok {
		t.Fatalf("missing nested request object: %s", payload)
	}
	if _, ok := nested["files"]; !ok {
		t.Fatalf("nested request is missing files: %s", payload)
	}
	if _, ok := nested["code"]; ok {
		t.Fatalf("empty code should be omitted: %s", payload)
	}
}

func TestExecuteEnvelopeFlattensFields(t *testing.T) {
	req := request{
		Action:   actionExecute,
		ID:       "req-2",
		Language: "c",
		Files:    []CodeFile{{Filename: "main.c", Content: "x"}},
	}
	payload, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var raw map[string]any
	if err := json.Unmarshal(payload, &raw); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if raw["action"] != "execute" || raw["language"] != "c" {
		t.Fatalf("execute envelope wrong: %s", payload)
	}
	if _, ok := raw["files"]; !ok {
		t.Fatalf("execute files must sit beside action: %s", payload)
	}
	if _, ok := raw["request"]; ok {
		t.Fatalf("execute must not carry a nested request: %s", payload)
	}
}

func TestResponseDecodeToleratesNullFields(t *testing.T) {
	line := `{"id":"abc","success":true,"data":"pong","error":null}`
	var resp response
	if err := json.Unmarshal([]byte(line), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.ID != "abc" || !resp.Success || resp.Error != "" {
		t.Fatalf("unexpected response: %+v", resp)
	}
	var data string
	if err := json.Unmarshal(resp.Data, &data); err != nil || data != "pong" {
		t.Fatalf("data = %q, err %v", data, err)
	}
}

func TestJudgeResponseDecode(t *testing.T) {
	payload := `{
		"success": true,
		"result": {
			"problem_id": "q-1",
			"total_test_cases": 2,
			"passed_test_cases": 1,
			"test_case_results": [
				{"test_case_id": 0, "passed": true,
				 "execution_result": {"success": true, "output": "4\n", "error": null, "execution_time": 12, "memory_usage": 1100},
				 "expected_output": "4", "actual_output": "4"},
				{"test_case_id": 1, "passed": false,
				 "execution_result": {"success": false, "output": "", "error": "Time limit exceeded", "execution_time": 2000, "memory_usage": 900},
				 "expected_output": "8", "actual_output": ""}
			],
			"compilation_successful": true,
			"compilation_error": null,
			"total_execution_time": 2012,
			"score": 50.0,
			"compile_time_ms": 310,
			"executable_size_bytes": 16384
		},
		"error": null,
		"status": "Timeout"
	}`
	var jr JudgeResponse
	if err := json.Unmarshal([]byte(payload), &jr); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if jr.Status != "Timeout" || jr.Result == nil {
		t.Fatalf("unexpected response: %+v", jr)
	}
	if jr.Result.PassedTestCases != 1 || len(jr.Result.TestCaseResults) != 2 {
		t.Fatalf("unexpected result: %+v", jr.Result)
	}
	if got := jr.Result.TestCaseResults[1].ExecutionResult.Error; got != "Time limit exceeded" {
		t.Fatalf("timeout error = %q", got)
	}
}
