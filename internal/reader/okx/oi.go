package okx

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	appconfig "oiflow/config"
	"oiflow/internal/models"
	"oiflow/internal/reader"
	"oiflow/internal/symbols"
	"oiflow/logger"
)

const (
	component       = "okx_oi_reader"
	openInterestAPI = "/api/v5/public/open-interest"
)

// Okx_OI_Reader reads open interest for every perpetual swap in one request.
type Okx_OI_Reader struct {
	config appconfig.OkxSourceConfig
	client *http.Client
	log    *logger.Log
}

func Okx_OI_NewReader(cfg appconfig.OkxSourceConfig, shared *http.Client) *Okx_OI_Reader {
	return &Okx_OI_Reader{
		config: cfg,
		client: shared,
		log:    logger.GetLogger(),
	}
}

func (r *Okx_OI_Reader) Name() string { return "okx" }

type openInterestResponse struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
	Data []struct {
		InstID   string `json:"instId"`
		InstType string `json:"instType"`
		OI       string `json:"oi"`
		OICcy    string `json:"oiCcy"`
		Ts       string `json:"ts"`
	} `json:"data"`
}

// FetchOpenInterest returns a single ListContribution. OKX quotes oi in
// contracts and oiCcy in base coin; oiCcy is used so every source reports
// the same unit.
func (r *Okx_OI_Reader) FetchOpenInterest(ctx context.Context, watchlist models.Watchlist) ([]models.Contribution, error) {
	start := time.Now()
	log := r.log.WithComponent(component)

	endpoint := fmt.Sprintf("%s%s?instType=%s",
		strings.TrimRight(r.config.URL, "/"), openInterestAPI, url.QueryEscape(r.config.InstType))

	var resp openInterestResponse
	if err := reader.GetJSON(ctx, r.client, "okx", endpoint, &resp); err != nil {
		return nil, fmt.Errorf("okx open interest: %w", err)
	}
	if resp.Code != "0" {
		return nil, &reader.StatusError{Exchange: "okx", StatusCode: http.StatusOK, Code: resp.Code, Message: resp.Msg}
	}

	quote := strings.ToUpper(r.config.QuoteAsset)
	kind := strings.ToUpper(r.config.InstType)

	list := models.ListContribution{Source: r.Name()}
	for _, d := range resp.Data {
		base, q, k, ok := symbols.SplitInstrument(d.InstID)
		if !ok || q != quote || k != kind {
			continue
		}
		coin, factor := symbols.NormalizeBase("okx", base)
		if !watchlist.Contains(coin) {
			continue
		}
		value, err := reader.ParseOpenInterest(d.OICcy)
		if err != nil {
			log.WithFields(logger.Fields{"inst_id": d.InstID}).WithError(err).Warn("unusable open interest; skipping instrument")
			continue
		}
		list.Entries = append(list.Entries, models.Entry{Coin: coin, Value: value * factor})
	}

	logger.LogPerformanceEntry(log, component, "fetch_open_interest", time.Since(start), logger.Fields{
		"instruments": len(resp.Data),
		"entries":     len(list.Entries),
	})
	return []models.Contribution{list}, nil
}
