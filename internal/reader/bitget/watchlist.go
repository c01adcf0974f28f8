package bitget

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	appconfig "oiflow/config"
	"oiflow/internal/models"
	"oiflow/internal/reader"
	"oiflow/internal/symbols"
	"oiflow/logger"
)

const contractsPath = "/api/v2/mix/market/contracts"

// successCode is the code Bitget returns alongside a usable payload.
const successCode = "00000"

// Bitget_Watchlist_Reader derives the tracked coins from the Bitget
// perpetual contract listing.
type Bitget_Watchlist_Reader struct {
	config appconfig.BitgetSourceConfig
	client *http.Client
	log    *logger.Log
}

// Bitget_Watchlist_NewReader wires the reader to the shared HTTP session.
func Bitget_Watchlist_NewReader(cfg appconfig.BitgetSourceConfig, client *http.Client) *Bitget_Watchlist_Reader {
	return &Bitget_Watchlist_Reader{
		config: cfg,
		client: client,
		log:    logger.GetLogger(),
	}
}

type contractsResponse struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
	Data []struct {
		Symbol    string `json:"symbol"`
		BaseCoin  string `json:"baseCoin"`
		QuoteCoin string `json:"quoteCoin"`
	} `json:"data"`
}

// FetchWatchlist returns every base coin quoted in the configured stablecoin.
// Any failure is fatal for the run; there is no fallback list.
func (r *Bitget_Watchlist_Reader) FetchWatchlist(ctx context.Context) (models.Watchlist, error) {
	endpoint := fmt.Sprintf("%s%s?productType=%s",
		strings.TrimRight(r.config.URL, "/"), contractsPath, url.QueryEscape(r.config.ProductType))

	var resp contractsResponse
	if err := reader.GetJSON(ctx, r.client, "bitget", endpoint, &resp); err != nil {
		return nil, fmt.Errorf("fetch bitget contracts: %w", err)
	}
	if resp.Code != "" && resp.Code != successCode {
		return nil, &reader.StatusError{Exchange: "bitget", StatusCode: http.StatusOK, Code: resp.Code, Message: resp.Msg}
	}

	quote := strings.ToUpper(r.config.QuoteAsset)
	watchlist := models.NewWatchlist()
	for _, contract := range resp.Data {
		if strings.ToUpper(contract.QuoteCoin) != quote || contract.BaseCoin == "" {
			continue
		}
		coin, _ := symbols.NormalizeBase("bitget", contract.BaseCoin)
		watchlist.Add(coin)
	}

	r.log.WithComponent("bitget_watchlist_reader").WithFields(logger.Fields{
		"contracts": len(resp.Data),
		"coins":     len(watchlist),
		"quote":     quote,
	}).Info("watchlist built")

	return watchlist, nil
}
