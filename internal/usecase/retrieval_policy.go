package usecase

import (
	"regexp"
	"strings"
	"time"

	"github.com/user/evidence-service/internal/entity"
	"github.com/user/evidence-service/pkg/utils"
)

const (
	financialTTL    = 30 * time.Minute
	geopoliticalTTL = 12 * time.Hour
	marketTTL       = 30 * time.Minute
	audienceTTL     = time.Hour
	defaultTTL      = 7 * 24 * time.Hour
)

var (
	realtimeKeywords = keywordPattern(
		"today", "tonight", "latest", "breaking", "right now", "currently", "live", "this week", "just in",
	)
	financialKeywords = keywordPattern(
		"price", "prices", "stock", "stocks", "share price", "market", "markets", "gold", "silver", "oil",
		"bitcoin", "crypto", "forex", "exchange rate", "interest rate", "interest rates", "inflation",
		"bond", "bonds", "yield", "yields", "nasdaq", "s&p", "dow jones", "commodity", "commodities", "futures",
	)
	geopoliticalKeywords = keywordPattern(
		"war", "conflict", "sanction", "sanctions", "election", "elections", "invasion", "ukraine", "russia",
		"israel", "gaza", "taiwan", "tariff", "tariffs", "coup", "protest", "protests", "ceasefire", "treaty",
		"embargo", "military", "summit",
	)
)

// keywordPattern matches any of words as whole words, case-insensitively.
func keywordPattern(words ...string) *regexp.Regexp {
	quoted := make([]string, len(words))
	for i, w := range words {
		quoted[i] = regexp.QuoteMeta(w)
	}
	return regexp.MustCompile(`(?i)(?:^|\W)(?:` + strings.Join(quoted, "|") + `)(?:\W|$)`)
}

// ComputeQueryHash keys the retrieval cache. Entity order does not matter.
func ComputeQueryHash(query string, entities []string) string {
	return utils.HashQuery(query, entities)
}

// ShouldBypass reports whether cached evidence must not be served for this request.
func ShouldBypass(query string, forceFresh bool, audience entity.Audience) bool {
	switch {
	case forceFresh:
		return true
	case audience == entity.AudienceStudent, audience == entity.AudiencePersonal, audience == entity.AudienceMarket:
		return true
	case realtimeKeywords.MatchString(query),
		financialKeywords.MatchString(query),
		geopoliticalKeywords.MatchString(query):
		return true
	}
	return false
}

// DetermineTTL picks how long fresh evidence stays cacheable. The first matching rule wins.
func DetermineTTL(query string, audience entity.Audience) time.Duration {
	switch {
	case financialKeywords.MatchString(query):
		return financialTTL
	case geopoliticalKeywords.MatchString(query):
		return geopoliticalTTL
	case audience == entity.AudienceMarket:
		return marketTTL
	case audience == entity.AudienceStudent, audience == entity.AudiencePersonal:
		return audienceTTL
	}
	return defaultTTL
}
