// Package provider fetches live position reports from external AIS data
// services, with a fallback chain across providers.
package provider

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/seawatch/aisguard/pkg/ais"
	"github.com/seawatch/aisguard/pkg/geo"
)

// Provider fetches the current position reports inside a bounding box.
type Provider interface {
	Name() string
	Fetch(ctx context.Context, box geo.BBox) ([]ais.PositionReport, error)
}

// DefaultBBox covers the Indian EEZ, the default monitoring region.
func DefaultBBox() geo.BBox {
	return geo.BBox{MinLat: 6, MinLon: 68, MaxLat: 22, MaxLon: 88}
}

// ErrNoData means a provider answered but had no reports for the region.
var ErrNoData = errors.New("provider returned no reports")

// Chain tries providers in order and returns the first non-empty result,
// filtered to the configured bounding box. It satisfies the monitoring
// loop's Source interface.
type Chain struct {
	providers []Provider
	box       geo.BBox
	log       *zap.Logger
}

// NewChain builds a fallback chain over the given providers.
func NewChain(box geo.BBox, log *zap.Logger, providers ...Provider) *Chain {
	if log == nil {
		log = zap.NewNop()
	}
	return &Chain{providers: providers, box: box, log: log}
}

// Fetch queries each provider until one yields reports inside the region.
func (c *Chain) Fetch(ctx context.Context) ([]ais.PositionReport, error) {
	var lastErr error = ErrNoData
	for _, p := range c.providers {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		reports, err := p.Fetch(ctx, c.box)
		if err != nil {
			c.log.Warn("provider failed, trying next",
				zap.String("provider", p.Name()), zap.Error(err))
			lastErr = err
			continue
		}

		reports = filterBBox(reports, c.box)
		if len(reports) == 0 {
			c.log.Warn("provider returned no reports in region",
				zap.String("provider", p.Name()))
			lastErr = ErrNoData
			continue
		}

		c.log.Info("fetched position reports",
			zap.String("provider", p.Name()),
			zap.Int("reports", len(reports)))
		return reports, nil
	}
	return nil, lastErr
}

// filterBBox drops reports outside the region. Providers are not trusted to
// honor the requested box exactly.
func filterBBox(reports []ais.PositionReport, box geo.BBox) []ais.PositionReport {
	if box.IsZero() {
		return reports
	}
	kept := reports[:0]
	for _, r := range reports {
		if box.Contains(r.Lat, r.Lon) {
			kept = append(kept, r)
		}
	}
	return kept
}
