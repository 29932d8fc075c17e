// Package evaluation scores detector output against labeled ground truth.
package evaluation

import (
	"fmt"
	"sort"
	"strings"
)

// Metrics summarises binary classification quality. Zero-division cases
// (no predicted or no actual positives) report 0, not an error.
type Metrics struct {
	Accuracy  float64 `json:"accuracy"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1_score"`
	ROCAUC    float64 `json:"roc_auc"`

	TruePositives  int `json:"true_positives"`
	FalsePositives int `json:"false_positives"`
	TrueNegatives  int `json:"true_negatives"`
	FalseNegatives int `json:"false_negatives"`
}

// Evaluate computes metrics from ground-truth labels, hard predictions and
// the continuous scores behind them. All three slices must align.
func Evaluate(labels, predictions []int, scores []float64) (Metrics, error) {
	if len(labels) == 0 {
		return Metrics{}, fmt.Errorf("no labels to evaluate")
	}
	if len(predictions) != len(labels) || len(scores) != len(labels) {
		return Metrics{}, fmt.Errorf("%d labels, %d predictions, %d scores",
			len(labels), len(predictions), len(scores))
	}

	var m Metrics
	for i, y := range labels {
		switch {
		case y == 1 && predictions[i] == 1:
			m.TruePositives++
		case y == 0 && predictions[i] == 1:
			m.FalsePositives++
		case y == 1 && predictions[i] == 0:
			m.FalseNegatives++
		default:
			m.TrueNegatives++
		}
	}

	total := float64(len(labels))
	m.Accuracy = float64(m.TruePositives+m.TrueNegatives) / total
	if p := m.TruePositives + m.FalsePositives; p > 0 {
		m.Precision = float64(m.TruePositives) / float64(p)
	}
	if p := m.TruePositives + m.FalseNegatives; p > 0 {
		m.Recall = float64(m.TruePositives) / float64(p)
	}
	if m.Precision+m.Recall > 0 {
		m.F1 = 2 * m.Precision * m.Recall / (m.Precision + m.Recall)
	}
	m.ROCAUC = rocAUC(labels, scores)

	return m, nil
}

// rocAUC ranks scores and computes the area under the ROC curve via the
// Mann-Whitney statistic, with the standard 0.5 tie correction. Returns 0
// when one class is absent.
func rocAUC(labels []int, scores []float64) float64 {
	type pair struct {
		score float64
		label int
	}
	pairs := make([]pair, len(labels))
	positives := 0
	for i := range labels {
		pairs[i] = pair{scores[i], labels[i]}
		positives += labels[i]
	}
	negatives := len(labels) - positives
	if positives == 0 || negatives == 0 {
		return 0
	}

	sort.Slice(pairs, func(i, j int) bool { return pairs[i].score < pairs[j].score })

	// Sum the average ranks of the positive class, spreading ties evenly.
	var rankSum float64
	i := 0
	for i < len(pairs) {
		j := i
		for j < len(pairs) && pairs[j].score == pairs[i].score {
			j++
		}
		avgRank := float64(i+j+1) / 2 // ranks are 1-based
		for k := i; k < j; k++ {
			if pairs[k].label == 1 {
				rankSum += avgRank
			}
		}
		i = j
	}

	p := float64(positives)
	n := float64(negatives)
	return (rankSum - p*(p+1)/2) / (p * n)
}

// Report renders the metrics as a plain-text block for CLI output.
func (m Metrics) Report() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Accuracy:  %.4f\n", m.Accuracy)
	fmt.Fprintf(&b, "Precision: %.4f\n", m.Precision)
	fmt.Fprintf(&b, "Recall:    %.4f\n", m.Recall)
	fmt.Fprintf(&b, "F1 Score:  %.4f\n", m.F1)
	fmt.Fprintf(&b, "ROC AUC:   %.4f\n", m.ROCAUC)
	fmt.Fprintf(&b, "Confusion: TP=%d FP=%d TN=%d FN=%d",
		m.TruePositives, m.FalsePositives, m.TrueNegatives, m.FalseNegatives)
	return b.String()
}
