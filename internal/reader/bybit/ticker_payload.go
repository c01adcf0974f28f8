package bybit

// tickerEntry is the subset of a linear ticker the reader needs.
type tickerEntry struct {
	Symbol       string `json:"symbol"`
	OpenInterest string `json:"openInterest"`
}

type tickersResult struct {
	Category string        `json:"category"`
	List     []tickerEntry `json:"list"`
}
