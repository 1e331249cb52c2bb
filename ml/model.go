package ml

// Regressor is anything that maps one ordered feature row to a scalar.
type Regressor interface {
	Predict(row []float64) (float64, error)
}

// RegressorFunc adapts a plain function to Regressor.
type RegressorFunc func(row []float64) (float64, error)

func (f RegressorFunc) Predict(row []float64) (float64, error) {
	return f(row)
}
