// Package rate records exchange rate-limit events.
package rate

import (
	"strings"

	"oiflow/internal/metrics"
	"oiflow/logger"
)

// ReportRateLimitExceeded counts a rate-limit answer from exchange. Rate
// limits abort the run, so this is logged at error level.
func ReportRateLimitExceeded(log *logger.Log, exchange, path string) {
	fields := logger.Fields{
		"exchange": strings.ToLower(exchange),
		"path":     path,
	}
	metrics.EmitMetric(log, "rate_limit", "rate_limit_exceeded", 1, "counter", fields)
	if log == nil {
		log = logger.GetLogger()
	}
	log.WithComponent("rate_limit").WithFields(fields).Error("rate limit exceeded")
}

// ReportIPBan counts an answer saying the caller's address is banned.
func ReportIPBan(log *logger.Log, exchange, path string) {
	fields := logger.Fields{
		"exchange": strings.ToLower(exchange),
		"path":     path,
	}
	metrics.EmitMetric(log, "rate_limit", "ip_ban", 1, "counter", fields)
	if log == nil {
		log = logger.GetLogger()
	}
	log.WithComponent("rate_limit").WithFields(fields).Error("ip banned")
}

// detectLimit reads exchange specific wording from an error body.
func detectLimit(exchange, msg string) (rateLimit bool, ipBan bool) {
	lower := strings.ToLower(msg)
	switch strings.ToLower(exchange) {
	case "binance":
		ipBan = strings.Contains(lower, "ip") && strings.Contains(lower, "ban")
		rateLimit = strings.Contains(lower, "too many requests") || strings.Contains(lower, "rate limit")
	case "okx":
		ipBan = strings.Contains(lower, "ip") && (strings.Contains(lower, "blocked") || strings.Contains(lower, "ban"))
		rateLimit = strings.Contains(lower, "too many requests") || strings.Contains(lower, "frequency limit")
	case "bybit":
		ipBan = strings.Contains(lower, "ip rate limit") || (strings.Contains(lower, "ip") && strings.Contains(lower, "ban"))
		rateLimit = !ipBan && (strings.Contains(lower, "rate limit") || strings.Contains(lower, "too many visits"))
	default:
		ipBan = strings.Contains(lower, "ip") && strings.Contains(lower, "ban")
		rateLimit = strings.Contains(lower, "rate limit") || strings.Contains(lower, "too many requests")
	}
	return
}

// ReportLimitFromMessage records whichever limit event msg describes and
// reports whether it matched one.
func ReportLimitFromMessage(log *logger.Log, exchange, path, msg string) bool {
	rateLimit, ipBan := detectLimit(exchange, msg)
	if ipBan {
		ReportIPBan(log, exchange, path)
	}
	if rateLimit {
		ReportRateLimitExceeded(log, exchange, path)
	}
	return rateLimit || ipBan
}
