package bybit

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	bybit "github.com/bybit-exchange/bybit.go.api"

	appconfig "oiflow/config"
	"oiflow/internal/models"
	"oiflow/internal/reader"
	"oiflow/internal/symbols"
	"oiflow/logger"
)

const component = "bybit_oi_reader"

// Bybit_OI_Reader reads open interest for every linear contract from the
// bulk tickers endpoint.
type Bybit_OI_Reader struct {
	config appconfig.BybitSourceConfig
	client *bybit.Client
	log    *logger.Log
}

func Bybit_OI_NewReader(cfg appconfig.BybitSourceConfig, shared *http.Client) *Bybit_OI_Reader {
	client := bybit.NewBybitHttpClient("", "", bybit.WithBaseURL(strings.TrimRight(cfg.URL, "/")))
	client.HTTPClient = reader.WithRateLimitReporting(shared, "bybit")

	return &Bybit_OI_Reader{
		config: cfg,
		client: client,
		log:    logger.GetLogger(),
	}
}

func (r *Bybit_OI_Reader) Name() string { return "bybit" }

// FetchOpenInterest returns a single ListContribution holding every watched
// coin the tickers response carries. Open interest is quoted in base coin.
func (r *Bybit_OI_Reader) FetchOpenInterest(ctx context.Context, watchlist models.Watchlist) ([]models.Contribution, error) {
	start := time.Now()
	log := r.log.WithComponent(component)

	params := map[string]interface{}{"category": r.config.Category}
	resp, err := r.client.NewUtaBybitServiceWithParams(params).GetMarketTickers(ctx)
	if err != nil {
		return nil, fmt.Errorf("bybit tickers: %w", err)
	}
	if resp.RetCode != 0 {
		return nil, &reader.StatusError{
			Exchange:   "bybit",
			StatusCode: http.StatusOK,
			Code:       strconv.Itoa(resp.RetCode),
			Message:    resp.RetMsg,
		}
	}

	// Result is decoded generically by the SDK
	payload, err := json.Marshal(resp.Result)
	if err != nil {
		return nil, fmt.Errorf("marshal bybit tickers: %w", err)
	}
	var result tickersResult
	if err := json.Unmarshal(payload, &result); err != nil {
		return nil, fmt.Errorf("decode bybit tickers: %w", err)
	}

	list := models.ListContribution{Source: r.Name()}
	for _, t := range result.List {
		base, ok := symbols.SplitLinear(t.Symbol, r.config.QuoteAsset)
		if !ok {
			continue
		}
		coin, factor := symbols.NormalizeBase("bybit", base)
		if !watchlist.Contains(coin) {
			continue
		}
		value, err := reader.ParseOpenInterest(t.OpenInterest)
		if err != nil {
			log.WithFields(logger.Fields{"symbol": t.Symbol}).WithError(err).Warn("unusable open interest; skipping symbol")
			continue
		}
		list.Entries = append(list.Entries, models.Entry{Coin: coin, Value: value * factor})
	}

	logger.LogPerformanceEntry(log, component, "fetch_open_interest", time.Since(start), logger.Fields{
		"tickers": len(result.List),
		"entries": len(list.Entries),
	})
	return []models.Contribution{list}, nil
}
