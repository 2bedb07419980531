// Package opendata is the client for the city's open-data parking API. All
// reads go through the fetch cache; list responses are normalized and
// enriched with derived metrics at this boundary.
package opendata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/judev34/parking-montpellier-app/internal/fetchcache"
	"github.com/judev34/parking-montpellier-app/internal/history"
	"github.com/judev34/parking-montpellier-app/internal/model"
	"github.com/judev34/parking-montpellier-app/internal/observability"
)

// URNPrefix is the namespace every parking entity id lives under.
const URNPrefix = "urn:ngsi-ld:parking:"

const listPageLimit = 1000

type Client struct {
	logger *slog.Logger
	base   *url.URL
	http   *http.Client
	cache  *fetchcache.Cache
	synth  *history.Generator
	now    func() time.Time // for tests
}

func New(logger *slog.Logger, baseURL string, httpClient *http.Client, cache *fetchcache.Cache) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse open-data base url: %w", err)
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		logger: logger,
		base:   u,
		http:   httpClient,
		cache:  cache,
		synth:  history.NewGenerator(),
		now:    time.Now,
	}, nil
}

// NormalizeID canonicalizes any accepted id spelling ("42",
// "urn:ngsi-ld:parking:42") to the full URN form.
func NormalizeID(id string) string {
	id = strings.TrimSpace(id)
	if strings.HasPrefix(id, URNPrefix) {
		parts := strings.Split(id, ":")
		id = parts[len(parts)-1]
	}
	return URNPrefix + id
}

// ListAll fetches the full catalog through the cache. On transport failure or
// a malformed body it returns an empty slice together with the error, so
// callers can both render something and report the condition.
func (c *Client) ListAll(ctx context.Context) ([]model.ParkingRecord, error) {
	u := c.listURL()

	body, _, err := c.cache.GetOrFetch(ctx, u, c.fetchFunc(u, "offstreetparking"))
	if err != nil {
		return []model.ParkingRecord{}, fmt.Errorf("%w: list parkings: %w", ErrTransport, err)
	}

	var raw []apiParking
	if err := json.Unmarshal(body, &raw); err != nil {
		return []model.ParkingRecord{}, fmt.Errorf("%w: list is not a record sequence: %w", ErrMalformed, err)
	}

	records := make([]model.ParkingRecord, 0, len(raw))
	for _, p := range raw {
		records = append(records, p.toRecord())
	}
	c.logCoverage(ctx, records)
	if len(records) == 0 {
		return records, fmt.Errorf("%w: zero records in list response", ErrEmpty)
	}
	return records, nil
}

// GetByID fetches one record by its canonical URN. Zero matches is ErrNotFound.
func (c *Client) GetByID(ctx context.Context, id string) (model.ParkingRecord, error) {
	urn := NormalizeID(id)
	u := fmt.Sprintf("%s/offstreetparking?id=%s", c.base, url.QueryEscape(urn))

	body, _, err := c.cache.GetOrFetch(ctx, u, c.fetchFunc(u, "offstreetparking"))
	if err != nil {
		return model.ParkingRecord{}, fmt.Errorf("%w: get %s: %w", ErrTransport, urn, err)
	}

	var raw []apiParking
	if err := json.Unmarshal(body, &raw); err != nil {
		return model.ParkingRecord{}, fmt.Errorf("%w: get %s: %w", ErrMalformed, urn, err)
	}
	if len(raw) == 0 {
		return model.ParkingRecord{}, fmt.Errorf("%w: %s", ErrNotFound, urn)
	}
	// The id query can in principle match several entities; first one wins.
	return raw[0].toRecord(), nil
}

// InvalidateEntity drops the cached record for one parking, in both the
// per-entity and full-list spellings. The list entry has to go too since it
// embeds the same availability numbers.
func (c *Client) InvalidateEntity(ctx context.Context, id string) error {
	urn := NormalizeID(id)
	u := fmt.Sprintf("%s/offstreetparking?id=%s", c.base, url.QueryEscape(urn))
	return c.cache.Invalidate(ctx, u, c.listURL())
}

// InvalidateCatalog drops the cached full-list response.
func (c *Client) InvalidateCatalog(ctx context.Context) error {
	return c.cache.Invalidate(ctx, c.listURL())
}

func (c *Client) listURL() string {
	return fmt.Sprintf("%s/offstreetparking?limit=%d", c.base, listPageLimit)
}

// GetHistory fetches the availability series for one record over the
// requested period at the given granularity. It only fails when the caller
// is gone: any upstream or shape problem degrades to a synthetic series
// tagged as such.
func (c *Client) GetHistory(ctx context.Context, id string, period model.Period, interval string) (model.TimeSeries, error) {
	urn := NormalizeID(id)
	now := c.now()
	from := period.WindowFrom(now)

	u := fmt.Sprintf("%s/parking_timeseries/%s/attrs/%s?fromDate=%s&toDate=%s",
		c.base, urn, history.DefaultAttrName,
		url.QueryEscape(from.UTC().Format(time.RFC3339)),
		url.QueryEscape(now.UTC().Format(time.RFC3339)))
	if interval != "" {
		u += "&interval=" + url.QueryEscape(interval)
	}

	body, _, err := c.cache.GetOrFetch(ctx, u, c.fetchFunc(u, "parking_timeseries"))
	if err != nil {
		if ctx.Err() != nil {
			return model.TimeSeries{}, fmt.Errorf("history %s: %w", urn, ctx.Err())
		}
		c.logger.WarnContext(ctx, "history fetch failed, serving synthetic series",
			"id", urn, "period", string(period), "err", err)
		observability.IncSyntheticSeries("flat")
		return c.synth.Flat(urn), nil
	}

	ts, err := c.normalizeSeries(body, urn)
	if err != nil {
		c.logger.WarnContext(ctx, "history response unusable, serving synthetic series",
			"id", urn, "err", err)
		observability.IncSyntheticSeries("flat")
		return c.synth.Flat(urn), nil
	}
	return ts, nil
}

// normalizeSeries reduces the two accepted wire shapes to the canonical
// single-series form. A response with timestamps but no recognizable values
// field gets one last chance: any other same-length numeric top-level field
// is adopted; failing that the values are synthesized in place.
func (c *Client) normalizeSeries(body []byte, urn string) (model.TimeSeries, error) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(body, &probe); err != nil {
		return model.TimeSeries{}, fmt.Errorf("%w: series is not an object: %w", ErrMalformed, err)
	}

	if _, ok := probe["attributes"]; ok {
		return c.normalizeMultiAttr(body, urn)
	}

	var s singleSeries
	if err := json.Unmarshal(body, &s); err != nil {
		return model.TimeSeries{}, fmt.Errorf("%w: decode series: %w", ErrMalformed, err)
	}
	if len(s.Index) == 0 {
		return model.TimeSeries{}, fmt.Errorf("%w: series has no index", ErrMalformed)
	}

	provenance := model.ProvenanceReal
	if len(s.Values) != len(s.Index) {
		s.Values = scanForValues(probe, len(s.Index))
		if s.Values == nil {
			s.Values = c.synth.FlatValues(len(s.Index))
			provenance = model.ProvenanceSynthetic
			observability.IncSyntheticSeries("values")
		}
	}

	index, err := parseIndex(s.Index)
	if err != nil {
		return model.TimeSeries{}, err
	}

	attr := s.AttrName
	if attr == "" {
		attr = history.DefaultAttrName
	}
	entity := s.EntityID
	if entity == "" {
		entity = urn
	}
	return model.TimeSeries{
		AttrName:   attr,
		EntityID:   entity,
		Provenance: provenance,
		Index:      index,
		Values:     s.Values,
	}, nil
}

func (c *Client) normalizeMultiAttr(body []byte, urn string) (model.TimeSeries, error) {
	var m multiAttrSeries
	if err := json.Unmarshal(body, &m); err != nil {
		return model.TimeSeries{}, fmt.Errorf("%w: decode multi-attribute series: %w", ErrMalformed, err)
	}
	if len(m.Index) == 0 {
		return model.TimeSeries{}, fmt.Errorf("%w: series has no index", ErrMalformed)
	}

	for _, a := range m.Attributes {
		if a.AttrName != history.DefaultAttrName || len(a.Values) != len(m.Index) {
			continue
		}
		index, err := parseIndex(m.Index)
		if err != nil {
			return model.TimeSeries{}, err
		}
		entity := m.EntityID
		if entity == "" {
			entity = urn
		}
		return model.TimeSeries{
			AttrName:   a.AttrName,
			EntityID:   entity,
			Provenance: model.ProvenanceReal,
			Index:      index,
			Values:     a.Values,
		}, nil
	}
	return model.TimeSeries{}, fmt.Errorf("%w: no %s attribute in multi-attribute series", ErrMalformed, history.DefaultAttrName)
}

// scanForValues looks for any other top-level field holding a numeric
// sequence of the right length.
func scanForValues(probe map[string]json.RawMessage, n int) []float64 {
	known := map[string]bool{
		"index": true, "values": true,
		"attrName": true, "entityId": true, "entityType": true,
	}

	names := make([]string, 0, len(probe))
	for k := range probe {
		if !known[k] {
			names = append(names, k)
		}
	}
	sort.Strings(names) // deterministic pick when several candidates exist

	for _, k := range names {
		var vals []float64
		if err := json.Unmarshal(probe[k], &vals); err == nil && len(vals) == n {
			return vals
		}
	}
	return nil
}

func parseIndex(raw []string) ([]time.Time, error) {
	out := make([]time.Time, 0, len(raw))
	for i, s := range raw {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			// Some deployments omit the zone designator.
			t, err = time.Parse("2006-01-02T15:04:05", s)
			if err != nil {
				return nil, fmt.Errorf("%w: index[%d]=%q: %w", ErrMalformed, i, s, err)
			}
		}
		out = append(out, t)
	}
	return out, nil
}

func (c *Client) fetchFunc(u, endpoint string) fetchcache.FetchFunc {
	return func(ctx context.Context) ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}
		req.Header.Set("Accept", "application/json")

		start := time.Now()
		resp, err := c.http.Do(req)
		observability.ObserveUpstreamLatency(endpoint, time.Since(start).Seconds())
		if err != nil {
			return nil, fmt.Errorf("do request: %w", err)
		}
		defer func() { _ = resp.Body.Close() }()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			return nil, fmt.Errorf("upstream status %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
		}
		return io.ReadAll(resp.Body)
	}
}

// logCoverage mirrors the per-field statistics logged after each catalog
// fetch, which operators use to spot upstream schema drift.
func (c *Client) logCoverage(ctx context.Context, records []model.ParkingRecord) {
	var withName, withCounts, withLocation int
	for _, r := range records {
		if r.Name != "" {
			withName++
		}
		if r.Total > 0 {
			withCounts++
		}
		if r.Location != nil {
			withLocation++
		}
	}
	c.logger.DebugContext(ctx, "catalog coverage",
		"total", len(records),
		"with_name", withName,
		"with_counts", withCounts,
		"with_location", withLocation)
}
