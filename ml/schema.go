package ml

// FieldKind tells the validator how a feature is encoded on the wire.
type FieldKind int

const (
	KindInt FieldKind = iota
	KindFloat
)

// FieldSpec is the contract of one input feature.
type FieldSpec struct {
	Name        string
	Kind        FieldKind
	Min         float64
	Max         float64
	Labels      []string
	Description string
}

// schema lists the features in training-time column order.
var schema = []FieldSpec{
	{Name: "season", Kind: KindInt, Min: 1, Max: 4, Labels: []string{"Spring", "Summer", "Fall", "Winter"}},
	{Name: "yr", Kind: KindInt, Min: 0, Max: 1, Labels: []string{"2011", "2012"}},
	{Name: "mnth", Kind: KindInt, Min: 1, Max: 12},
	{Name: "hr", Kind: KindInt, Min: 0, Max: 23},
	{Name: "holiday", Kind: KindInt, Min: 0, Max: 1, Labels: []string{"No", "Yes"}},
	{Name: "weekday", Kind: KindInt, Min: 0, Max: 6, Labels: []string{"Sun", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat"}},
	{Name: "workingday", Kind: KindInt, Min: 0, Max: 1, Labels: []string{"No", "Yes"}},
	{Name: "weathersit", Kind: KindInt, Min: 1, Max: 4, Labels: []string{"Clear", "Mist/Cloudy", "Light Rain/Snow", "Heavy Rain"}},
	{Name: "temp", Kind: KindFloat, Min: 0, Max: 1, Description: "Normalized (actual_temp / 41)"},
	{Name: "atemp", Kind: KindFloat, Min: 0, Max: 1, Description: "Normalized (actual_atemp / 50)"},
	{Name: "hum", Kind: KindFloat, Min: 0, Max: 1, Description: "Normalized (actual_hum / 100)"},
	{Name: "windspeed", Kind: KindFloat, Min: 0, Max: 1, Description: "Normalized (actual_windspeed / 67)"},
}

// Schema returns a copy of the feature table.
func Schema() []FieldSpec {
	out := make([]FieldSpec, len(schema))
	copy(out, schema)
	return out
}

// FeatureNames returns the feature names in column order.
func FeatureNames() []string {
	names := make([]string, len(schema))
	for i, spec := range schema {
		names[i] = spec.Name
	}
	return names
}

func lookupField(name string) (FieldSpec, bool) {
	for _, spec := range schema {
		if spec.Name == name {
			return spec, true
		}
	}
	return FieldSpec{}, false
}

// FeatureInfo is the client-facing description of one feature.
type FeatureInfo struct {
	Min         float64  `json:"min"`
	Max         float64  `json:"max"`
	Labels      []string `json:"labels,omitempty"`
	Description string   `json:"description,omitempty"`
}

// FeatureMetadata describes every feature for form generation. It is
// derived from the same table the validator enforces.
func FeatureMetadata() map[string]FeatureInfo {
	meta := make(map[string]FeatureInfo, len(schema))
	for _, spec := range schema {
		info := FeatureInfo{
			Min:         spec.Min,
			Max:         spec.Max,
			Description: spec.Description,
		}
		if len(spec.Labels) > 0 {
			info.Labels = append([]string(nil), spec.Labels...)
		}
		meta[spec.Name] = info
	}
	return meta
}
