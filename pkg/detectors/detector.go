// Package detectors provides the scoring-model contracts and shared
// preprocessing for the anomaly-detection ensemble.
package detectors

// Detector is the common interface for unsupervised anomaly scorers.
type Detector interface {
	// Fit trains the detector on historical feature rows.
	// data is a 2D slice where each row is a sample and each column is a feature.
	Fit(data [][]float64) error

	// Predict returns anomaly scores for the given samples. Higher values
	// indicate anomalies; the raw range is model-specific and is calibrated
	// to [0, 1] by the ensemble adapter.
	Predict(data [][]float64) ([]float64, error)

	// PredictOne returns the anomaly score for a single sample.
	PredictOne(sample []float64) (float64, error)

	// Save serializes the trained model to bytes.
	Save() ([]byte, error)

	// Load deserializes a trained model from bytes.
	Load(data []byte) error
}

// Classifier is the interface for supervised scorers trained on labeled
// feature rows.
type Classifier interface {
	// FitLabeled trains on samples with 0/1 labels (1 = anomalous).
	FitLabeled(data [][]float64, labels []int) error

	// PredictProba returns the positive-class probability in [0, 1] for
	// each sample.
	PredictProba(data [][]float64) ([]float64, error)

	// PredictProbaOne returns the positive-class probability for a single
	// sample.
	PredictProbaOne(sample []float64) (float64, error)

	// Save serializes the trained model to bytes.
	Save() ([]byte, error)

	// Load deserializes a trained model from bytes.
	Load(data []byte) error
}
