package provider

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"fxmonitor/internal/logger"
)

func testClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(srv.URL, logger.Init("provider-test", logrus.ErrorLevel)), srv
}

func TestLatest(t *testing.T) {
	c, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/latest") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("from"); got != "EUR" {
			t.Errorf("from = %q, want EUR", got)
		}
		if got := r.URL.Query().Get("to"); got != "USD,GBP" {
			t.Errorf("to = %q, want USD,GBP", got)
		}
		w.Write([]byte(`{"base":"EUR","date":"2026-03-04","rates":{"USD":1.1623,"GBP":0.8531}}`))
	})

	rates, date, err := c.Latest(context.Background(), "EUR", []string{"USD", "GBP"})
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if rates["USD"] != 1.1623 || rates["GBP"] != 0.8531 {
		t.Errorf("rates = %v", rates)
	}
	want := time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC)
	if !date.Equal(want) {
		t.Errorf("date = %v, want %v", date, want)
	}
}

func TestHistory_SortedSeries(t *testing.T) {
	// Map order is random on the wire; the client must sort by date.
	c, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/2026-03-01..2026-03-05") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Write([]byte(`{"base":"EUR","rates":{
			"2026-03-04":{"USD":1.17},
			"2026-03-02":{"USD":1.15},
			"2026-03-03":{"USD":1.16}
		}}`))
	})

	s, err := c.History(context.Background(), "EUR", "USD",
		time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if s.Pair != "EUR/USD" {
		t.Errorf("pair = %q", s.Pair)
	}
	if s.Len() != 3 {
		t.Fatalf("len = %d, want 3", s.Len())
	}
	closes := s.Closes()
	if closes[0] != 1.15 || closes[1] != 1.16 || closes[2] != 1.17 {
		t.Errorf("closes out of order: %v", closes)
	}
}

func TestGet_HTTPError(t *testing.T) {
	c, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	})

	_, _, err := c.Latest(context.Background(), "EUR", []string{"USD"})
	if err == nil {
		t.Fatal("expected error for 404 response")
	}
	if !strings.Contains(err.Error(), "404") {
		t.Errorf("error does not mention status: %v", err)
	}
}

func TestSplitPair(t *testing.T) {
	base, quote, err := SplitPair("EUR/USD")
	if err != nil || base != "EUR" || quote != "USD" {
		t.Errorf("SplitPair(EUR/USD) = %q %q %v", base, quote, err)
	}
	if _, _, err := SplitPair("EURUSD"); err == nil {
		t.Error("SplitPair accepted pair without separator")
	}
}
