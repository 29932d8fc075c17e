package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/seawatch/aisguard/pkg/ais"
	"github.com/seawatch/aisguard/pkg/geo"
)

// aishubURL is the community AIS position feed. Rate limited to one
// request per minute, which the 15-minute monitoring cycle stays well
// under.
const aishubURL = "http://data.aishub.net/ws.php"

// AISHub fetches positions from the free AISHub web service.
type AISHub struct {
	username string
	baseURL  string
	client   *http.Client
}

// NewAISHub creates an AISHub provider. username is the registered account
// name; the service accepts "DEMO" for testing.
func NewAISHub(username string, client *http.Client) *AISHub {
	if username == "" {
		username = "DEMO"
	}
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &AISHub{username: username, baseURL: aishubURL, client: client}
}

// Name identifies the provider in logs.
func (p *AISHub) Name() string { return "aishub" }

// flexNumber tolerates the feed quoting numeric values as strings.
type flexNumber float64

func (n *flexNumber) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		*n = 0
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return err
	}
	*n = flexNumber(v)
	return nil
}

// aishubRecord mirrors the service's JSON field names.
type aishubRecord struct {
	MMSI      flexNumber `json:"MMSI"`
	Time      flexNumber `json:"TIME"`
	Latitude  flexNumber `json:"LATITUDE"`
	Longitude flexNumber `json:"LONGITUDE"`
	SOG       flexNumber `json:"SOG"`
	COG       flexNumber `json:"COG"`
	Heading   flexNumber `json:"HEADING"`
}

// Fetch queries the live positions inside the bounding box.
func (p *AISHub) Fetch(ctx context.Context, box geo.BBox) ([]ais.PositionReport, error) {
	q := url.Values{}
	q.Set("username", p.username)
	q.Set("format", "1")
	q.Set("output", "json")
	q.Set("compress", "0")
	q.Set("latmin", fmt.Sprintf("%g", box.MinLat))
	q.Set("latmax", fmt.Sprintf("%g", box.MaxLat))
	q.Set("lonmin", fmt.Sprintf("%g", box.MinLon))
	q.Set("lonmax", fmt.Sprintf("%g", box.MaxLon))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("aishub request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("aishub status %d", resp.StatusCode)
	}

	// The feed wraps the vessel array in an outer array together with a
	// status object, so each element is decoded speculatively.
	var envelope []json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("decode aishub response: %w", err)
	}

	var reports []ais.PositionReport
	for _, element := range envelope {
		var records []aishubRecord
		if err := json.Unmarshal(element, &records); err != nil {
			continue
		}
		for _, rec := range records {
			if report, ok := rec.toReport(); ok {
				reports = append(reports, report)
			}
		}
	}
	return reports, nil
}

func (rec aishubRecord) toReport() (ais.PositionReport, bool) {
	mmsi := int64(rec.MMSI)
	unix := int64(rec.Time)
	if mmsi == 0 || unix == 0 {
		return ais.PositionReport{}, false
	}

	// AIS reports 511 when the true heading is unavailable.
	heading := float64(rec.Heading)

	return ais.PositionReport{
		MMSI:       mmsi,
		Timestamp:  time.Unix(unix, 0).UTC(),
		Lat:        float64(rec.Latitude),
		Lon:        float64(rec.Longitude),
		SOG:        float64(rec.SOG),
		COG:        float64(rec.COG),
		Heading:    heading,
		HasHeading: heading >= 0 && heading < 360,
	}, true
}
