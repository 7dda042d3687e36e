package webhook

import "strings"

// Provider identifiers. "unknown" payloads still flow through the shared
// resolution tiers.
const (
	OriginHubla     = "hubla"
	OriginLastlink  = "lastlink"
	OriginMonetizze = "monetizze"
	OriginUnknown   = "unknown"
)

// DetectOrigin classifies a parsed payload by its shape. Providers don't
// identify themselves consistently in headers, but their envelopes are
// distinctive enough.
func DetectOrigin(p Payload) string {
	// Lastlink: PascalCase envelope with Data.Buyer and an Event token.
	if p.has("Data", "Buyer") || strings.HasPrefix(p.str("Event"), "Purchase_") {
		return OriginLastlink
	}

	// Monetizze: Portuguese field names, chave_unica dedup key.
	if p.has("comprador") || p.has("venda") || p.has("chave_unica") {
		return OriginMonetizze
	}

	// Hubla v2: event envelope with user/invoice, type like
	// "invoice.payment_succeeded". Hubla v1: flat userEmail/transactionId.
	if p.has("event", "user") || p.has("event", "invoice") ||
		strings.HasPrefix(p.str("type"), "invoice.") ||
		p.has("event", "userEmail") || p.has("userEmail") || p.has("transactionId") {
		return OriginHubla
	}

	return OriginUnknown
}
