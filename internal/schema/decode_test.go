package schema

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestIDNumberOrString(t *testing.T) {
	var numeric, str ID
	if err := json.Unmarshal([]byte(`42`), &numeric); err != nil {
		t.Fatalf("numeric id: %v", err)
	}
	if err := json.Unmarshal([]byte(`"job-7"`), &str); err != nil {
		t.Fatalf("string id: %v", err)
	}
	if numeric.String() != "42" || str.String() != "job-7" {
		t.Fatalf("ids = %s, %s", numeric, str)
	}
	if numeric == NewID("43") {
		t.Fatal("distinct ids compared equal")
	}
	if str != NewID("job-7") {
		t.Fatal("equal ids compared unequal")
	}
	// Numeric ids render back as numbers.
	out, err := json.Marshal(numeric)
	if err != nil || string(out) != "42" {
		t.Fatalf("marshal numeric id = %s, %v", out, err)
	}
	if err := json.Unmarshal([]byte(`true`), &numeric); err == nil {
		t.Fatal("expected error for boolean id")
	}
}

func TestDecodeFormExpansions(t *testing.T) {
	raw := json.RawMessage(`{
		"id": 1,
		"interface": {"id": 2, "name": "Greeter", "internalName": "greeter", "version": 1},
		"instance": {
			"id": 3, "name": "Prod", "internalName": "prod",
			"heartbeat": {"created": "2024-01-01T00:00:00Z", "updated": "2024-01-01T00:05:00Z"},
			"application": {"id": 4, "name": "App", "internalName": "app"}
		},
		"jobs": [
			{"id": 5, "name": "run", "created": "2024-01-01T00:00:00Z",
			 "creator": {"id": 6, "userName": "demo", "details": {"id": 6, "name": "Demo", "email": "d@e"}},
			 "executions": [{"id": 7, "status": "SUCCESS"}]}
		]
	}`)
	f, err := DecodeForm(raw)
	if err != nil {
		t.Fatalf("decode form: %v", err)
	}
	if f.Interface == nil || f.Interface.Name != "Greeter" {
		t.Fatalf("interface = %+v", f.Interface)
	}
	if f.Instance == nil || f.Instance.Heartbeat == nil || f.Instance.Application == nil {
		t.Fatalf("instance = %+v", f.Instance)
	}
	if len(f.Jobs) != 1 || f.Jobs[0].Creator == nil || f.Jobs[0].Creator.Details == nil {
		t.Fatalf("jobs = %+v", f.Jobs)
	}
	if len(f.Jobs[0].Executions) != 1 || f.Jobs[0].Executions[0].Status != StatusSuccess {
		t.Fatalf("executions = %+v", f.Jobs[0].Executions)
	}
}

func TestDecodeInstanceNestedInstances(t *testing.T) {
	// The instance's interfaces relation nests further instance records;
	// instance-only fields like the heartbeat must survive the decode.
	raw := json.RawMessage(`{
		"id": 1,
		"instance": {
			"id": 3, "name": "Prod", "internalName": "prod",
			"interfaces": [
				{"id": 8, "name": "Prod Greeter", "internalName": "prod-greeter",
				 "heartbeat": {"created": "2024-01-01T00:00:00Z", "updated": "2024-01-01T00:05:00Z"}}
			]
		}
	}`)
	f, err := DecodeForm(raw)
	if err != nil {
		t.Fatalf("decode form: %v", err)
	}
	if len(f.Instance.Interfaces) != 1 {
		t.Fatalf("nested instances = %+v", f.Instance.Interfaces)
	}
	nested := f.Instance.Interfaces[0]
	if nested.Name != "Prod Greeter" || nested.Heartbeat == nil {
		t.Fatalf("nested instance = %+v", nested)
	}
}

func TestDecodeFormOmittedExpansionsAbsent(t *testing.T) {
	f, err := DecodeForm(json.RawMessage(`{"id": 1}`))
	if err != nil {
		t.Fatalf("decode form: %v", err)
	}
	if f.Interface != nil || f.Instance != nil || f.Jobs != nil {
		t.Fatalf("unexpanded relations should be absent: %+v", f)
	}
}

func TestDecodeRequiredFields(t *testing.T) {
	if _, err := DecodeUser(json.RawMessage(`{"id": 1}`)); err == nil {
		t.Fatal("user without userName decoded")
	}
	if _, err := DecodeForm(json.RawMessage(`{}`)); err == nil {
		t.Fatal("form without id decoded")
	}
	if _, err := DecodeForm(json.RawMessage(`{"id": 1, "jobs": [{"name": "no-id"}]}`)); err == nil {
		t.Fatal("job without id decoded")
	}
	if _, err := DecodeForm(json.RawMessage(`{"id": 1, "jobs": [{"id": 5, "created": "t"}]}`)); err == nil {
		t.Fatal("job without name decoded")
	}
	if _, err := DecodeForm(json.RawMessage(`{"id": 1, "instance": {"id": 3, "name": "Prod"}}`)); err == nil {
		t.Fatal("instance without internalName decoded")
	}
	if _, err := DecodeForm(json.RawMessage(`{"id": 1, "interface": {"id": 2, "name": "Greeter", "internalName": "greeter"}}`)); err == nil {
		t.Fatal("interface without version decoded")
	}
}

func TestDecodeDepthCap(t *testing.T) {
	// Build a job -> execution -> job chain deeper than the cap.
	inner := `{"id": 1, "name": "j", "created": "t"}`
	for i := 0; i < maxDepth; i++ {
		inner = fmt.Sprintf(`{"id": 1, "name": "j", "created": "t", "executions": [{"id": 2, "status": "ACTIVE", "job": %s}]}`, inner)
	}
	payload := fmt.Sprintf(`{"id": 1, "jobs": [%s]}`, inner)
	_, err := DecodeForm(json.RawMessage(payload))
	if !errors.Is(err, ErrDepthExceeded) {
		t.Fatalf("err = %v, want depth exceeded", err)
	}
}

func TestDecodeJobSummaryDefaults(t *testing.T) {
	s, err := DecodeJobSummary(json.RawMessage(`{"SUCCESS": 3}`))
	if err != nil {
		t.Fatalf("decode summary: %v", err)
	}
	if s.Success != 3 || s.Received != 0 || s.Failure != 0 {
		t.Fatalf("summary = %+v", s)
	}
}

func TestDecodeForms(t *testing.T) {
	forms, err := DecodeForms(json.RawMessage(`[{"id": 1}, {"id": "f-2"}]`))
	if err != nil {
		t.Fatalf("decode forms: %v", err)
	}
	if len(forms) != 2 || forms[1].ID.String() != "f-2" {
		t.Fatalf("forms = %+v", forms)
	}
	_, err = DecodeForms(json.RawMessage(`[{"id": 1}, {}]`))
	if err == nil || !strings.Contains(err.Error(), "form 1") {
		t.Fatalf("expected indexed decode error, got %v", err)
	}
}
