package ml

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

const exampleInput = `{"season":3,"yr":1,"mnth":9,"hr":17,"holiday":0,"weekday":4,"workingday":1,"weathersit":1,"temp":0.76,"atemp":0.72,"hum":0.45,"windspeed":0.15}`

func exampleFields(t *testing.T) map[string]interface{} {
	t.Helper()
	var fields map[string]interface{}
	if err := json.Unmarshal([]byte(exampleInput), &fields); err != nil {
		t.Fatalf("bad fixture: %v", err)
	}
	return fields
}

func mustJSON(t *testing.T, v interface{}) []byte {
	t.Helper()
	payload, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return payload
}

func fieldErrors(t *testing.T, err error) []FieldError {
	t.Helper()
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected *ValidationError, got %T", err)
	}
	return verr.Fields
}

func TestParseFeaturesExample(t *testing.T) {
	fv, err := ParseFeatures([]byte(exampleInput))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := FeatureVector{
		Season: 3, Yr: 1, Mnth: 9, Hr: 17, Holiday: 0, Weekday: 4, Workingday: 1, Weathersit: 1,
		Temp: 0.76, Atemp: 0.72, Hum: 0.45, Windspeed: 0.15,
	}
	if fv != want {
		t.Fatalf("got %+v, want %+v", fv, want)
	}
	if err := fv.Validate(); err != nil {
		t.Fatalf("parsed vector failed Validate: %v", err)
	}
}

func TestParseFeaturesOutOfRange(t *testing.T) {
	cases := map[string]interface{}{
		"hr":         24,
		"season":     0,
		"hum":        1.5,
		"mnth":       13,
		"weekday":    -1,
		"weathersit": 5,
		"temp":       -0.01,
	}
	for field, value := range cases {
		fields := exampleFields(t)
		fields[field] = value
		_, err := ParseFeatures(mustJSON(t, fields))
		got := fieldErrors(t, err)
		if len(got) != 1 || got[0].Field != field {
			t.Fatalf("%s=%v: unexpected violations %+v", field, value, got)
		}
		if !strings.HasPrefix(got[0].Message, "must be between") {
			t.Fatalf("%s: unexpected message %q", field, got[0].Message)
		}
	}
}

func TestParseFeaturesBoundsInclusive(t *testing.T) {
	for _, spec := range Schema() {
		for _, bound := range []float64{spec.Min, spec.Max} {
			fields := exampleFields(t)
			fields[spec.Name] = bound
			if _, err := ParseFeatures(mustJSON(t, fields)); err != nil {
				t.Fatalf("%s=%v should be accepted: %v", spec.Name, bound, err)
			}
		}
	}
}

func TestParseFeaturesTypes(t *testing.T) {
	cases := []struct {
		field string
		value interface{}
		msg   string
	}{
		{"hr", "17", "must be an integer"},
		{"hr", 17.5, "must be an integer"},
		{"holiday", true, "must be an integer"},
		{"season", nil, "must be an integer"},
		{"temp", "warm", "must be a number"},
		{"hum", []int{1}, "must be a number"},
	}
	for _, tc := range cases {
		fields := exampleFields(t)
		fields[tc.field] = tc.value
		_, err := ParseFeatures(mustJSON(t, fields))
		got := fieldErrors(t, err)
		if len(got) != 1 || got[0].Field != tc.field || got[0].Message != tc.msg {
			t.Fatalf("%s=%v: unexpected violations %+v", tc.field, tc.value, got)
		}
	}
}

func TestParseFeaturesIntegralFloatAccepted(t *testing.T) {
	fields := exampleFields(t)
	fields["hr"] = 17.0
	payload := strings.Replace(string(mustJSON(t, fields)), `"hr":17`, `"hr":17.0`, 1)
	fv, err := ParseFeatures([]byte(payload))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fv.Hr != 17 {
		t.Fatalf("expected hr 17, got %d", fv.Hr)
	}
}

func TestParseFeaturesCollectsAllViolations(t *testing.T) {
	fields := exampleFields(t)
	delete(fields, "windspeed")
	fields["hr"] = 24
	fields["season"] = 0
	fields["unknown"] = "ignored"
	_, err := ParseFeatures(mustJSON(t, fields))
	got := fieldErrors(t, err)
	if len(got) != 3 {
		t.Fatalf("expected 3 violations, got %+v", got)
	}
	if got[0].Field != "season" || got[1].Field != "hr" || got[2].Field != "windspeed" {
		t.Fatalf("violations not in column order: %+v", got)
	}
	if got[2].Message != "field required" {
		t.Fatalf("unexpected message for missing field: %q", got[2].Message)
	}
}

func TestParseFeaturesRejectsNonObject(t *testing.T) {
	for _, body := range []string{"", "[]", `"text"`, "null", "{bad json"} {
		_, err := ParseFeatures([]byte(body))
		got := fieldErrors(t, err)
		if len(got) != 1 || got[0].Field != "body" {
			t.Fatalf("body %q: unexpected violations %+v", body, got)
		}
	}
}

func TestFeatureVectorRow(t *testing.T) {
	fv, err := ParseFeatures([]byte(exampleInput))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	row, err := fv.Row([]string{"hum", "hr", "season"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if row[0] != 0.45 || row[1] != 17 || row[2] != 3 {
		t.Fatalf("unexpected row %v", row)
	}
	if _, err := fv.Row([]string{"cnt"}); err == nil {
		t.Fatal("expected error for unknown column")
	}
}

func TestFeatureMetadataMatchesSchema(t *testing.T) {
	meta := FeatureMetadata()
	if len(meta) != len(FeatureNames()) {
		t.Fatalf("expected %d entries, got %d", len(FeatureNames()), len(meta))
	}
	wantRanges := map[string][2]float64{
		"season": {1, 4}, "yr": {0, 1}, "mnth": {1, 12}, "hr": {0, 23},
		"holiday": {0, 1}, "weekday": {0, 6}, "workingday": {0, 1}, "weathersit": {1, 4},
		"temp": {0, 1}, "atemp": {0, 1}, "hum": {0, 1}, "windspeed": {0, 1},
	}
	for name, r := range wantRanges {
		info, ok := meta[name]
		if !ok {
			t.Fatalf("missing metadata for %s", name)
		}
		if info.Min != r[0] || info.Max != r[1] {
			t.Fatalf("%s: got [%v,%v], want %v", name, info.Min, info.Max, r)
		}
	}
	if got := meta["weekday"].Labels; len(got) != 7 || got[0] != "Sun" || got[6] != "Sat" {
		t.Fatalf("unexpected weekday labels %v", got)
	}
	if meta["temp"].Description != "Normalized (actual_temp / 41)" {
		t.Fatalf("unexpected temp description %q", meta["temp"].Description)
	}
	if meta["mnth"].Labels != nil || meta["mnth"].Description != "" {
		t.Fatalf("mnth should carry only a range: %+v", meta["mnth"])
	}
}
