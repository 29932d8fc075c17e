package provider

import (
	"context"

	"github.com/seawatch/aisguard/pkg/ais"
	"github.com/seawatch/aisguard/pkg/geo"
)

// FileProvider replays position reports from a CSV file. Used for offline
// runs and as the lowest-priority fallback when no live service answers.
type FileProvider struct {
	path string
}

// NewFileProvider reads reports from the CSV file at path on every fetch.
func NewFileProvider(path string) *FileProvider {
	return &FileProvider{path: path}
}

// Name identifies the provider in logs.
func (p *FileProvider) Name() string { return "file" }

// Fetch loads the whole file. Bounding-box filtering happens in the chain.
func (p *FileProvider) Fetch(ctx context.Context, _ geo.BBox) ([]ais.PositionReport, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	reader, err := ais.NewReader(p.path)
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	return reader.Read()
}
