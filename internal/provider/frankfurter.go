// Package provider fetches daily reference exchange rates over HTTP.
// The default backend is the frankfurter.app API, which serves ECB
// reference rates with no authentication.
package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"fxmonitor/internal/model"
)

const (
	DefaultBaseURL = "https://api.frankfurter.app"

	dateLayout     = "2006-01-02"
	requestTimeout = 15 * time.Second
)

// Client is a rate provider backed by the frankfurter HTTP API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	log        *logrus.Entry
}

// New creates a provider client. An empty baseURL selects the public API.
func New(baseURL string, log *logrus.Entry) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: requestTimeout,
		},
		log: log,
	}
}

type latestResponse struct {
	Base  string             `json:"base"`
	Date  string             `json:"date"`
	Rates map[string]float64 `json:"rates"`
}

type rangeResponse struct {
	Base  string                        `json:"base"`
	Rates map[string]map[string]float64 `json:"rates"`
}

// Latest fetches the most recent published rates for base against the
// given quote currencies. Returns the per-quote rates and the rate date.
func (c *Client) Latest(ctx context.Context, base string, quotes []string) (map[string]float64, time.Time, error) {
	q := url.Values{}
	q.Set("from", base)
	q.Set("to", strings.Join(quotes, ","))

	var resp latestResponse
	if err := c.get(ctx, "/latest?"+q.Encode(), &resp); err != nil {
		return nil, time.Time{}, err
	}

	date, err := time.ParseInLocation(dateLayout, resp.Date, time.UTC)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("provider: bad date %q: %w", resp.Date, err)
	}
	return resp.Rates, date, nil
}

// History fetches daily rates for base/quote over [from, to] and builds
// an ordered series. Days without a publication are simply absent.
func (c *Client) History(ctx context.Context, base, quote string, from, to time.Time) (*model.Series, error) {
	q := url.Values{}
	q.Set("from", base)
	q.Set("to", quote)
	path := fmt.Sprintf("/%s..%s?%s", from.Format(dateLayout), to.Format(dateLayout), q.Encode())

	var resp rangeResponse
	if err := c.get(ctx, path, &resp); err != nil {
		return nil, err
	}

	dates := make([]string, 0, len(resp.Rates))
	for d := range resp.Rates {
		dates = append(dates, d)
	}
	sort.Strings(dates)

	bars := make([]model.Bar, 0, len(dates))
	for _, d := range dates {
		rate, ok := resp.Rates[d][quote]
		if !ok {
			continue
		}
		date, err := time.ParseInLocation(dateLayout, d, time.UTC)
		if err != nil {
			return nil, fmt.Errorf("provider: bad date %q: %w", d, err)
		}
		bars = append(bars, model.BarFromRate(date, rate))
	}

	s, err := model.NewSeries(base+"/"+quote, bars)
	if err != nil {
		return nil, fmt.Errorf("provider: %w", err)
	}
	c.log.WithFields(logrus.Fields{
		"pair": s.Pair,
		"bars": s.Len(),
	}).Debug("history fetched")
	return s, nil
}

func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("provider: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("provider: request %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("provider: %s returned %d: %s", path, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("provider: decode %s: %w", path, err)
	}
	return nil
}

// SplitPair breaks a "BASE/QUOTE" pair into its currencies.
func SplitPair(pair string) (base, quote string, err error) {
	halves := strings.Split(pair, "/")
	if len(halves) != 2 || halves[0] == "" || halves[1] == "" {
		return "", "", fmt.Errorf("provider: invalid pair %q", pair)
	}
	return halves[0], halves[1], nil
}
