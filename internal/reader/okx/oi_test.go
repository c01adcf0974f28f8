package okx

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	appconfig "oiflow/config"
	"oiflow/internal/models"
	"oiflow/internal/reader"
)

const openInterest = `{
  "code": "0",
  "msg": "",
  "data": [
    {"instType": "SWAP", "instId": "BTC-USDT-SWAP", "oi": "2500000", "oiCcy": "25000", "ts": "1700000000000"},
    {"instType": "SWAP", "instId": "ETH-USDT-SWAP", "oi": "1000000", "oiCcy": "100000", "ts": "1700000000000"},
    {"instType": "SWAP", "instId": "BTC-USD-SWAP", "oi": "900", "oiCcy": "9", "ts": "1700000000000"},
    {"instType": "SWAP", "instId": "DOGE-USDT-SWAP", "oi": "1", "oiCcy": "1000", "ts": "1700000000000"},
    {"instType": "SWAP", "instId": "SOL-USDT-SWAP", "oi": "1", "oiCcy": "n/a", "ts": "1700000000000"},
    {"instType": "SWAP", "instId": "XRP-USDT-SWAP", "oi": "1", "oiCcy": "NaN", "ts": "1700000000000"},
    {"instType": "SWAP", "instId": "ADA-USDT-SWAP", "oi": "1", "oiCcy": "+Inf", "ts": "1700000000000"}
  ]
}`

func newTestReader(url string) *Okx_OI_Reader {
	shared := reader.NewHTTPClient(appconfig.ReaderConfig{Timeout: 5 * time.Second})
	return Okx_OI_NewReader(appconfig.OkxSourceConfig{
		Enabled:    true,
		URL:        url,
		InstType:   "SWAP",
		QuoteAsset: "USDT",
	}, shared)
}

func TestFetchOpenInterest(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != openInterestAPI || r.URL.Query().Get("instType") != "SWAP" {
			t.Errorf("unexpected request: %s", r.URL.String())
		}
		fmt.Fprint(w, openInterest)
	}))
	defer server.Close()

	got, err := newTestReader(server.URL).FetchOpenInterest(context.Background(), models.NewWatchlist("BTC", "ETH", "SOL", "XRP", "ADA"))
	if err != nil {
		t.Fatalf("FetchOpenInterest: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected one contribution, got %d", len(got))
	}
	list, ok := got[0].(models.ListContribution)
	if !ok || list.Source != "okx" {
		t.Fatalf("unexpected contribution: %#v", got[0])
	}

	want := []models.Entry{{Coin: "BTC", Value: 25000}, {Coin: "ETH", Value: 100000}}
	if len(list.Entries) != len(want) {
		t.Fatalf("unexpected entries: %+v", list.Entries)
	}
	for i, e := range want {
		if list.Entries[i] != e {
			t.Errorf("entry %d: got %+v want %+v", i, list.Entries[i], e)
		}
	}
}

func TestFetchOpenInterestErrorCode(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"code":"51001","msg":"Instrument ID does not exist","data":[]}`)
	}))
	defer server.Close()

	_, err := newTestReader(server.URL).FetchOpenInterest(context.Background(), models.NewWatchlist("BTC"))
	var statusErr *reader.StatusError
	if !errors.As(err, &statusErr) || statusErr.Code != "51001" {
		t.Fatalf("expected StatusError with code 51001, got %v", err)
	}
}

func TestFetchOpenInterestRateLimited(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, `{"code":"50011","msg":"Too Many Requests"}`)
	}))
	defer server.Close()

	// a bulk source that is throttled only drops out of the run
	_, err := newTestReader(server.URL).FetchOpenInterest(context.Background(), models.NewWatchlist("BTC"))
	if err == nil || reader.IsFatal(err) {
		t.Fatalf("expected a non-fatal error, got %v", err)
	}
	var statusErr *reader.StatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("expected 429 StatusError, got %v", err)
	}
}
