package ensemble

import (
	"bytes"
	"encoding/gob"
	"errors"
	"fmt"
	"os"

	"github.com/seawatch/aisguard/pkg/detectors"
	"github.com/seawatch/aisguard/pkg/detectors/bayes"
	"github.com/seawatch/aisguard/pkg/detectors/iforest"
	"github.com/seawatch/aisguard/pkg/detectors/lof"
	"github.com/seawatch/aisguard/pkg/detectors/logreg"
)

// DetectorBundle holds the trained adapters together with the feature
// column order they were trained on. A loaded bundle is used as-is; it is
// never refitted in place, retraining produces a new bundle.
type DetectorBundle struct {
	Columns      []string
	Supervised   *SupervisedAdapter
	Unsupervised *UnsupervisedAdapter
	Sequential   *SequentialAdapter
}

// bundleBlob is the gob wire form of a bundle. Each model serializes
// itself; the blob just stitches the parts together.
type bundleBlob struct {
	Columns []string

	SupScaler, SupLR, SupNB []byte

	UnsScaler, UnsForest, UnsLOF []byte
	ForestRange, LOFRange        ScoreRange

	HasSequential    bool
	SeqScaler, SeqLR []byte
	SeqLen           int
}

// Save writes the bundle to path.
func (b *DetectorBundle) Save(path string) error {
	if b.Supervised == nil || b.Unsupervised == nil {
		return errors.New("bundle is missing trained detectors")
	}

	blob := bundleBlob{
		Columns:     b.Columns,
		ForestRange: b.Unsupervised.ForestRange,
		LOFRange:    b.Unsupervised.LOFRange,
	}

	var err error
	if blob.SupScaler, err = b.Supervised.Scaler.Save(); err != nil {
		return err
	}
	if blob.SupLR, err = b.Supervised.LR.Save(); err != nil {
		return err
	}
	if blob.SupNB, err = b.Supervised.NB.Save(); err != nil {
		return err
	}
	if blob.UnsScaler, err = b.Unsupervised.Scaler.Save(); err != nil {
		return err
	}
	if blob.UnsForest, err = b.Unsupervised.Forest.Save(); err != nil {
		return err
	}
	if blob.UnsLOF, err = b.Unsupervised.LOF.Save(); err != nil {
		return err
	}

	if b.Sequential != nil {
		blob.HasSequential = true
		blob.SeqLen = b.Sequential.SeqLen
		if blob.SeqScaler, err = b.Sequential.Scaler.Save(); err != nil {
			return err
		}
		if blob.SeqLR, err = b.Sequential.LR.Save(); err != nil {
			return err
		}
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(blob); err != nil {
		return fmt.Errorf("encode bundle: %w", err)
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}

// LoadBundle reads a bundle written by Save.
func LoadBundle(path string) (*DetectorBundle, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var blob bundleBlob
	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(&blob); err != nil {
		return nil, fmt.Errorf("decode bundle: %w", err)
	}
	if len(blob.Columns) == 0 {
		return nil, errors.New("bundle has no feature columns")
	}

	b := &DetectorBundle{
		Columns: blob.Columns,
		Supervised: &SupervisedAdapter{
			Scaler: &detectors.StandardScaler{},
			LR:     logreg.New(),
			NB:     bayes.New(),
		},
		Unsupervised: &UnsupervisedAdapter{
			Scaler:      &detectors.StandardScaler{},
			Forest:      iforest.New(),
			LOF:         lof.New(),
			ForestRange: blob.ForestRange,
			LOFRange:    blob.LOFRange,
		},
	}

	if err := b.Supervised.Scaler.Load(blob.SupScaler); err != nil {
		return nil, err
	}
	if err := b.Supervised.LR.Load(blob.SupLR); err != nil {
		return nil, err
	}
	if err := b.Supervised.NB.Load(blob.SupNB); err != nil {
		return nil, err
	}
	if err := b.Unsupervised.Scaler.Load(blob.UnsScaler); err != nil {
		return nil, err
	}
	if err := b.Unsupervised.Forest.Load(blob.UnsForest); err != nil {
		return nil, err
	}
	if err := b.Unsupervised.LOF.Load(blob.UnsLOF); err != nil {
		return nil, err
	}

	if blob.HasSequential {
		b.Sequential = &SequentialAdapter{
			Scaler: &detectors.StandardScaler{},
			LR:     logreg.New(),
			SeqLen: blob.SeqLen,
		}
		if err := b.Sequential.Scaler.Load(blob.SeqScaler); err != nil {
			return nil, err
		}
		if err := b.Sequential.LR.Load(blob.SeqLR); err != nil {
			return nil, err
		}
	}

	return b, nil
}
