package ml

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrInvalidInput is matched by every *ValidationError.
var ErrInvalidInput = errors.New("invalid input")

// FeatureVector is one validated request. It is passed by value and never
// mutated once ParseFeatures returns it.
type FeatureVector struct {
	Season     int     `json:"season"`
	Yr         int     `json:"yr"`
	Mnth       int     `json:"mnth"`
	Hr         int     `json:"hr"`
	Holiday    int     `json:"holiday"`
	Weekday    int     `json:"weekday"`
	Workingday int     `json:"workingday"`
	Weathersit int     `json:"weathersit"`
	Temp       float64 `json:"temp"`
	Atemp      float64 `json:"atemp"`
	Hum        float64 `json:"hum"`
	Windspeed  float64 `json:"windspeed"`
}

// FieldError is a single violated constraint.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError lists every field that failed validation, in column order.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = f.Field + ": " + f.Message
	}
	return "invalid input: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}

// Value returns the feature by column name.
func (fv FeatureVector) Value(name string) (float64, bool) {
	switch name {
	case "season":
		return float64(fv.Season), true
	case "yr":
		return float64(fv.Yr), true
	case "mnth":
		return float64(fv.Mnth), true
	case "hr":
		return float64(fv.Hr), true
	case "holiday":
		return float64(fv.Holiday), true
	case "weekday":
		return float64(fv.Weekday), true
	case "workingday":
		return float64(fv.Workingday), true
	case "weathersit":
		return float64(fv.Weathersit), true
	case "temp":
		return fv.Temp, true
	case "atemp":
		return fv.Atemp, true
	case "hum":
		return fv.Hum, true
	case "windspeed":
		return fv.Windspeed, true
	}
	return 0, false
}

func (fv *FeatureVector) set(name string, v float64) {
	switch name {
	case "season":
		fv.Season = int(v)
	case "yr":
		fv.Yr = int(v)
	case "mnth":
		fv.Mnth = int(v)
	case "hr":
		fv.Hr = int(v)
	case "holiday":
		fv.Holiday = int(v)
	case "weekday":
		fv.Weekday = int(v)
	case "workingday":
		fv.Workingday = int(v)
	case "weathersit":
		fv.Weathersit = int(v)
	case "temp":
		fv.Temp = v
	case "atemp":
		fv.Atemp = v
	case "hum":
		fv.Hum = v
	case "windspeed":
		fv.Windspeed = v
	}
}

// Row builds a single input row with columns in the given order.
func (fv FeatureVector) Row(names []string) ([]float64, error) {
	row := make([]float64, len(names))
	for i, name := range names {
		v, ok := fv.Value(name)
		if !ok {
			return nil, fmt.Errorf("unknown feature %q", name)
		}
		row[i] = v
	}
	return row, nil
}

// Validate checks the range constraints of a vector built in code.
func (fv FeatureVector) Validate() error {
	var violations []FieldError
	for _, spec := range schema {
		v, _ := fv.Value(spec.Name)
		if msg := checkRange(spec, v); msg != "" {
			violations = append(violations, FieldError{Field: spec.Name, Message: msg})
		}
	}
	if len(violations) > 0 {
		return &ValidationError{Fields: violations}
	}
	return nil
}

// ParseFeatures decodes and validates a JSON object. Every violation is
// reported, not just the first one.
func ParseFeatures(raw []byte) (FeatureVector, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		return FeatureVector{}, &ValidationError{Fields: []FieldError{{
			Field:   "body",
			Message: "must be a JSON object",
		}}}
	}

	var fv FeatureVector
	var violations []FieldError
	for _, spec := range schema {
		value, ok := fields[spec.Name]
		if !ok {
			violations = append(violations, FieldError{Field: spec.Name, Message: "field required"})
			continue
		}
		v, msg := decodeField(spec, value)
		if msg == "" {
			msg = checkRange(spec, v)
		}
		if msg != "" {
			violations = append(violations, FieldError{Field: spec.Name, Message: msg})
			continue
		}
		fv.set(spec.Name, v)
	}
	if len(violations) > 0 {
		return FeatureVector{}, &ValidationError{Fields: violations}
	}
	return fv, nil
}

func decodeField(spec FieldSpec, value json.RawMessage) (float64, string) {
	typeMsg := "must be a number"
	if spec.Kind == KindInt {
		typeMsg = "must be an integer"
	}

	dec := json.NewDecoder(bytes.NewReader(value))
	dec.UseNumber()
	var decoded interface{}
	if err := dec.Decode(&decoded); err != nil {
		return 0, typeMsg
	}
	num, ok := decoded.(json.Number)
	if !ok {
		return 0, typeMsg
	}
	v, err := num.Float64()
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, typeMsg
	}
	if spec.Kind == KindInt && v != math.Trunc(v) {
		return 0, typeMsg
	}
	return v, ""
}

func checkRange(spec FieldSpec, v float64) string {
	if v < spec.Min || v > spec.Max {
		return fmt.Sprintf("must be between %s and %s", formatBound(spec, spec.Min), formatBound(spec, spec.Max))
	}
	return ""
}

func formatBound(spec FieldSpec, v float64) string {
	if spec.Kind == KindInt {
		return strconv.Itoa(int(v))
	}
	return strconv.FormatFloat(v, 'f', 1, 64)
}
