package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gorilla/websocket"

	"github.com/seawatch/aisguard/pkg/ais"
	"github.com/seawatch/aisguard/pkg/geo"
)

// aisstreamURL is the aisstream.io realtime websocket feed.
const aisstreamURL = "wss://stream.aisstream.io/v0/stream"

// defaultCollectWindow bounds how long each fetch listens to the stream.
const defaultCollectWindow = 10 * time.Second

// AISStream collects position reports from the aisstream.io websocket for a
// short window on every fetch.
type AISStream struct {
	apiKey string
	url    string
	window time.Duration
	dialer *websocket.Dialer
}

// AISStreamOption configures an AISStream provider.
type AISStreamOption func(*AISStream)

// WithStreamURL overrides the websocket endpoint, used in tests.
func WithStreamURL(url string) AISStreamOption {
	return func(p *AISStream) { p.url = url }
}

// WithCollectWindow changes how long each fetch listens for messages.
func WithCollectWindow(d time.Duration) AISStreamOption {
	return func(p *AISStream) { p.window = d }
}

// NewAISStream creates an aisstream.io provider. An API key is required.
func NewAISStream(apiKey string, opts ...AISStreamOption) *AISStream {
	p := &AISStream{
		apiKey: apiKey,
		url:    aisstreamURL,
		window: defaultCollectWindow,
		dialer: websocket.DefaultDialer,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name identifies the provider in logs.
func (p *AISStream) Name() string { return "aisstream" }

// subscribeMessage is the stream subscription payload. Bounding boxes are
// corner pairs in [lon, lat] order.
type subscribeMessage struct {
	APIKey        string         `json:"APIKey"`
	BoundingBoxes [][][2]float64 `json:"BoundingBoxes"`
}

type streamMessage struct {
	MetaData struct {
		MMSI    int64  `json:"MMSI"`
		TimeUTC string `json:"time_utc"`
	} `json:"MetaData"`
	Message struct {
		PositionReport *struct {
			Latitude    float64 `json:"Latitude"`
			Longitude   float64 `json:"Longitude"`
			Sog         float64 `json:"Sog"`
			Cog         float64 `json:"Cog"`
			TrueHeading float64 `json:"TrueHeading"`
		} `json:"PositionReport"`
	} `json:"Message"`
}

// Fetch subscribes to the region and collects position reports until the
// listen window closes.
func (p *AISStream) Fetch(ctx context.Context, box geo.BBox) ([]ais.PositionReport, error) {
	if p.apiKey == "" {
		return nil, fmt.Errorf("aisstream api key required")
	}

	conn, _, err := p.dialer.DialContext(ctx, p.url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial aisstream: %w", err)
	}
	defer conn.Close()

	sub := subscribeMessage{
		APIKey: p.apiKey,
		BoundingBoxes: [][][2]float64{{
			{box.MinLon, box.MinLat},
			{box.MaxLon, box.MaxLat},
		}},
	}
	if err := conn.WriteJSON(sub); err != nil {
		return nil, fmt.Errorf("subscribe: %w", err)
	}

	deadline := time.Now().Add(p.window)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		deadline = ctxDeadline
	}

	var reports []ais.PositionReport
	for time.Now().Before(deadline) {
		if err := ctx.Err(); err != nil {
			return reports, nil
		}

		conn.SetReadDeadline(deadline)
		_, raw, err := conn.ReadMessage()
		if err != nil {
			// Timeouts and closed connections end the collect window.
			break
		}

		var msg streamMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			continue
		}
		pos := msg.Message.PositionReport
		if pos == nil || msg.MetaData.MMSI == 0 {
			continue
		}

		reports = append(reports, ais.PositionReport{
			MMSI:       msg.MetaData.MMSI,
			Timestamp:  parseStreamTime(msg.MetaData.TimeUTC),
			Lat:        pos.Latitude,
			Lon:        pos.Longitude,
			SOG:        pos.Sog,
			COG:        pos.Cog,
			Heading:    pos.TrueHeading,
			HasHeading: pos.TrueHeading >= 0 && pos.TrueHeading < 360,
		})
	}
	return reports, nil
}

// parseStreamTime handles the feed's "2006-01-02 15:04:05.999999999 +0000
// UTC" metadata timestamps, falling back to the current time.
func parseStreamTime(raw string) time.Time {
	for _, layout := range []string{
		"2006-01-02 15:04:05.999999999 -0700 MST",
		"2006-01-02 15:04:05",
	} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC()
		}
	}
	return time.Now().UTC()
}
