package binance

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	futures "github.com/adshao/go-binance/v2/futures"
	"golang.org/x/time/rate"

	appconfig "oiflow/config"
	binancemetrics "oiflow/internal/metrics/binance"
	"oiflow/internal/models"
	"oiflow/internal/reader"
	"oiflow/internal/symbols"
	"oiflow/logger"
)

const component = "binance_oi_reader"

// Binance_OI_Reader queries USDT-margined perpetual open interest one symbol
// at a time.
type Binance_OI_Reader struct {
	config  appconfig.BinanceSourceConfig
	client  *futures.Client
	limiter *rate.Limiter
	weight  *binancemetrics.WeightTracker
	log     *logger.Log
}

// weightTransport feeds every Binance response header to the weight tracker.
type weightTransport struct {
	tracker *binancemetrics.WeightTracker
	base    http.RoundTripper
}

func (t weightTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.base.RoundTrip(req)
	if resp != nil {
		t.tracker.Observe(resp.Header)
	}
	return resp, err
}

// Binance_OI_NewReader builds the reader on top of the shared HTTP session.
// HTTP 429 answers fail with reader.ErrRateLimited.
func Binance_OI_NewReader(cfg appconfig.BinanceSourceConfig, shared *http.Client) *Binance_OI_Reader {
	tracker := binancemetrics.NewWeightTracker()

	httpClient := reader.WithRateLimitDetection(shared, "binance")
	base := httpClient.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	httpClient.Transport = weightTransport{tracker: tracker, base: base}

	client := futures.NewClient("", "")
	client.BaseURL = strings.TrimRight(cfg.URL, "/")
	client.HTTPClient = httpClient

	rps := cfg.RateLimit.RequestsPerSecond
	if rps <= 0 {
		rps = 20
	}
	burst := cfg.RateLimit.BurstSize
	if burst <= 0 {
		burst = 1
	}

	return &Binance_OI_Reader{
		config:  cfg,
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
		weight:  tracker,
		log:     logger.GetLogger(),
	}
}

func (r *Binance_OI_Reader) Name() string { return "binance" }

// listing is a tradable perpetual mapped onto a watchlist coin.
type listing struct {
	symbol string
	coin   models.Coin
	factor float64
}

// FetchOpenInterest returns one SingleContribution per watched perpetual.
// Symbols that fail for any reason but a rate limit are logged and skipped;
// a rate limit cancels the remaining requests and fails the call. A failed
// contract listing fails the call with reader.ErrListingFailed.
func (r *Binance_OI_Reader) FetchOpenInterest(ctx context.Context, watchlist models.Watchlist) ([]models.Contribution, error) {
	start := time.Now()
	log := r.log.WithComponent(component)

	listings, err := r.perpetuals(ctx, watchlist)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make([]*models.SingleContribution, len(listings))
	var (
		wg         sync.WaitGroup
		limitOnce  sync.Once
		limitedErr error
	)

	for i, l := range listings {
		wg.Add(1)
		go func(i int, l listing) {
			defer wg.Done()

			value, err := r.fetchSymbol(ctx, l)
			switch {
			case err == nil:
				results[i] = &models.SingleContribution{Coin: l.coin, Value: value}
			case errors.Is(err, reader.ErrRateLimited):
				limitOnce.Do(func() {
					limitedErr = err
					cancel()
				})
			case ctx.Err() != nil:
				// cancelled by a sibling or the caller
			default:
				log.WithFields(logger.Fields{"symbol": l.symbol}).WithError(err).Warn("open interest request failed; skipping symbol")
			}
		}(i, l)
	}
	wg.Wait()

	if limitedErr != nil {
		return nil, fmt.Errorf("binance open interest: %w", limitedErr)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	contributions := make([]models.Contribution, 0, len(results))
	for _, res := range results {
		if res != nil {
			contributions = append(contributions, *res)
		}
	}

	r.weight.Report(r.log, component)
	logger.LogPerformanceEntry(log, component, "fetch_open_interest", time.Since(start), logger.Fields{
		"symbols":       len(listings),
		"contributions": len(contributions),
	})
	return contributions, nil
}

// perpetuals lists the perpetual contracts quoted in the configured asset
// whose base coin is on the watchlist.
func (r *Binance_OI_Reader) perpetuals(ctx context.Context, watchlist models.Watchlist) ([]listing, error) {
	info, err := r.client.NewExchangeInfoService().Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("binance exchange info: %w: %w", reader.ErrListingFailed, err)
	}

	quote := strings.ToUpper(r.config.QuoteAsset)
	var out []listing
	for _, s := range info.Symbols {
		if s.ContractType != futures.ContractTypePerpetual || strings.ToUpper(s.QuoteAsset) != quote {
			continue
		}
		coin, factor := symbols.NormalizeBase("binance", s.BaseAsset)
		if !watchlist.Contains(coin) {
			continue
		}
		out = append(out, listing{symbol: s.Symbol, coin: coin, factor: factor})
	}
	return out, nil
}

func (r *Binance_OI_Reader) fetchSymbol(ctx context.Context, l listing) (float64, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return 0, err
	}
	res, err := r.client.NewGetOpenInterestService().Symbol(l.symbol).Do(ctx)
	if err != nil {
		return 0, err
	}
	value, err := reader.ParseOpenInterest(res.OpenInterest)
	if err != nil {
		return 0, err
	}
	return value * l.factor, nil
}
