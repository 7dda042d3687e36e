package webhook

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// Provenance tags recorded in the audit row. Each names the resolution tier
// that produced the stored value.
const (
	SourceUserFirstLast      = "user.first+last"
	SourceUserName           = "user.name"
	SourceBuyerName          = "buyer.name"
	SourceCustomerName       = "customer.name"
	SourceLastlinkBuyer      = "lastlink.buyer"
	SourceMonetizzeComprador = "monetizze.comprador"
	SourceLegacyFlat         = "legacy.flat"
	SourceFallback           = "fallback"

	SourceUserPhone     = "user.phone"
	SourceBuyerPhone    = "buyer.phone"
	SourceCustomerPhone = "customer.phone"
	SourceNone          = "none"
)

// FallbackName is stored when no tier yields a buyer name. Never derived
// from the email local-part.
const FallbackName = "Cliente"

// paidStatuses is the recognized paid set for explicit status fields,
// compared case-insensitively. An explicit status outside this set excludes
// the event.
var paidStatuses = map[string]bool{
	"paid":       true,
	"approved":   true,
	"completed":  true,
	"succeeded":  true,
	"finalizada": true,
	"aprovada":   true,
	"aprovado":   true,
}

// Resolved is the normalized output of field resolution. Every field is
// resolved independently; zero values mean no tier matched.
type Resolved struct {
	Email         string
	Name          string
	NameSource    string
	Phone         string
	PhoneSource   string
	TransactionID string
	AmountCents   int64
	Paid          bool
	PaidAt        *time.Time
	CreatedAt     *time.Time
	EventType     string
	OfferID       string
	OfferName     string
	OfferNameV2   string
	ProductID     string
	ProductName   string
}

// strTier is one candidate location for a string field, with its
// provenance tag.
type strTier struct {
	tag  string
	path []string
}

// nameTier is one candidate for the buyer name. When first/last are set the
// tier concatenates them with whitespace collapsed; otherwise path is a
// plain lookup.
type nameTier struct {
	tag   string
	first []string
	last  []string
	path  []string
}

// providerSpec is the per-provider path table. Tier order is the resolution
// contract: most specific first, legacy flat last.
type providerSpec struct {
	email         []strTier
	name          []nameTier
	phone         []strTier
	txID          []strTier
	amountCents   [][]string // already minor units
	amountDecimal [][]string // decimal major units, rounded to cents
	amountLegacy  [][]string // flat major units, converted exactly once
	status        [][]string // explicit status fields
	eventType     []string
	paidEvents    []string // lowercased event tokens implying paid
	paidAt        [][]string
	createdAt     [][]string
	offerID       [][]string
	offerName     [][]string
	offerNameV2   [][]string
	productID     [][]string
	productName   [][]string
}

func p(keys ...string) []string { return keys }

// Shared v2 tiers tried for every provider before its alternate shape.
var (
	genericEmailTiers = []strTier{
		{"user.email", p("event", "user", "email")},
		{"user.email", p("user", "email")},
		{"customer.email", p("customer", "email")},
		{"buyer.email", p("buyer", "email")},
	}
	legacyEmailTiers = []strTier{
		{SourceLegacyFlat, p("event", "userEmail")},
		{SourceLegacyFlat, p("userEmail")},
	}

	genericNameTiers = []nameTier{
		{tag: SourceUserFirstLast, first: p("event", "user", "firstName"), last: p("event", "user", "lastName")},
		{tag: SourceUserFirstLast, first: p("user", "firstName"), last: p("user", "lastName")},
		{tag: SourceUserName, path: p("event", "user", "name")},
		{tag: SourceUserName, path: p("user", "name")},
		{tag: SourceBuyerName, path: p("buyer", "name")},
		{tag: SourceCustomerName, path: p("customer", "name")},
	}
	legacyNameTiers = []nameTier{
		{tag: SourceLegacyFlat, path: p("event", "userName")},
		{tag: SourceLegacyFlat, path: p("userName")},
	}

	genericPhoneHead = []strTier{
		{SourceUserPhone, p("event", "user", "phone")},
		{SourceUserPhone, p("user", "phone")},
		{SourceBuyerPhone, p("buyer", "phone")},
	}
	genericPhoneTail = []strTier{
		{SourceCustomerPhone, p("customer", "phone")},
	}
	legacyPhoneTiers = []strTier{
		{SourceLegacyFlat, p("event", "userPhone")},
		{SourceLegacyFlat, p("userPhone")},
		{SourceLegacyFlat, p("event", "whatsapp")},
		{SourceLegacyFlat, p("whatsapp")},
	}

	genericTxTiers = []strTier{
		{"invoice.id", p("event", "invoice", "id")},
		{"invoice.id", p("invoice", "id")},
		{"purchase.id", p("purchase", "id")},
		{"order.id", p("order", "id")},
	}
	legacyTxTiers = []strTier{
		{SourceLegacyFlat, p("event", "transactionId")},
		{SourceLegacyFlat, p("transactionId")},
	}
)

func concatTiers[T any](groups ...[]T) []T {
	var out []T
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}

var providerSpecs = map[string]providerSpec{
	OriginHubla: {
		email: concatTiers(genericEmailTiers, legacyEmailTiers),
		name:  concatTiers(genericNameTiers, legacyNameTiers),
		phone: concatTiers(genericPhoneHead, genericPhoneTail, legacyPhoneTiers),
		txID:  concatTiers(genericTxTiers, legacyTxTiers),
		amountCents: [][]string{
			p("event", "invoice", "amount", "totalCents"),
			p("invoice", "amount", "totalCents"),
		},
		amountLegacy: [][]string{p("event", "totalAmount"), p("totalAmount")},
		status: [][]string{
			p("event", "invoice", "status"),
			p("invoice", "status"),
			p("event", "status"),
			p("status"),
		},
		eventType:  p("type"),
		paidEvents: []string{"invoice.payment_succeeded", "invoice.paid"},
		paidAt: [][]string{
			p("event", "invoice", "paidAt"),
			p("invoice", "paidAt"),
			p("event", "paidAt"),
			p("paidAt"),
		},
		createdAt: [][]string{
			p("event", "invoice", "createdAt"),
			p("invoice", "createdAt"),
			p("createdAt"),
		},
		offerID:     [][]string{p("event", "offer", "id"), p("offer", "id")},
		offerName:   [][]string{p("event", "offerName"), p("offerName"), p("event", "groupName"), p("groupName")},
		offerNameV2: [][]string{p("event", "offer", "name"), p("offer", "name")},
		productID:   [][]string{p("event", "product", "id"), p("product", "id")},
		productName: [][]string{p("event", "product", "name"), p("product", "name"), p("event", "productName"), p("productName")},
	},

	OriginLastlink: {
		email: concatTiers(genericEmailTiers,
			[]strTier{{SourceLastlinkBuyer, p("Data", "Buyer", "Email")}},
			legacyEmailTiers),
		name: concatTiers(genericNameTiers,
			[]nameTier{{tag: SourceLastlinkBuyer, path: p("Data", "Buyer", "Name")}},
			legacyNameTiers),
		phone: concatTiers(genericPhoneHead,
			[]strTier{{SourceLastlinkBuyer, p("Data", "Buyer", "PhoneNumber")}},
			genericPhoneTail, legacyPhoneTiers),
		txID: concatTiers(genericTxTiers,
			[]strTier{
				{"lastlink.payment", p("Data", "Purchase", "PaymentId")},
				{"lastlink.payment", p("Data", "Purchase", "OrderId")},
			},
			legacyTxTiers),
		amountDecimal: [][]string{p("Data", "Purchase", "Price", "Value")},
		amountLegacy:  [][]string{p("totalAmount")},
		eventType:     p("Event"),
		paidEvents:    []string{"purchase_order_confirmed"},
		paidAt:        [][]string{p("Data", "Purchase", "PaymentDate")},
		createdAt:     [][]string{p("Data", "Purchase", "CreatedAt")},
		offerID:       [][]string{p("Data", "Offer", "Id")},
		offerNameV2:   [][]string{p("Data", "Offer", "Name")},
		productID:     [][]string{p("Data", "Products", "0", "Id")},
		productName:   [][]string{p("Data", "Products", "0", "Name")},
	},

	OriginMonetizze: {
		email: concatTiers(genericEmailTiers,
			[]strTier{{SourceMonetizzeComprador, p("comprador", "email")}},
			legacyEmailTiers),
		name: concatTiers(genericNameTiers,
			[]nameTier{{tag: SourceMonetizzeComprador, path: p("comprador", "nome")}},
			legacyNameTiers),
		phone: concatTiers(genericPhoneHead,
			[]strTier{
				{SourceMonetizzeComprador, p("comprador", "telefone")},
				{SourceMonetizzeComprador, p("comprador", "celular")},
			},
			genericPhoneTail, legacyPhoneTiers),
		txID: concatTiers(genericTxTiers,
			[]strTier{
				{"monetizze.venda", p("venda", "codigo")},
				{"monetizze.venda", p("chave_unica")},
			},
			legacyTxTiers),
		amountDecimal: [][]string{p("venda", "valor")},
		amountLegacy:  [][]string{p("totalAmount")},
		status:        [][]string{p("venda", "status"), p("status")},
		paidAt:        [][]string{p("venda", "dataFinalizada")},
		createdAt:     [][]string{p("venda", "dataInicio")},
		offerID:       [][]string{p("produto", "codigo")},
		offerNameV2:   [][]string{p("produto", "nome")},
		productName:   [][]string{p("produto", "nome")},
	},

	OriginUnknown: {
		email: concatTiers(genericEmailTiers, legacyEmailTiers),
		name:  concatTiers(genericNameTiers, legacyNameTiers),
		phone: concatTiers(genericPhoneHead, genericPhoneTail, legacyPhoneTiers),
		txID:  concatTiers(genericTxTiers, legacyTxTiers),
		amountCents: [][]string{
			p("event", "invoice", "amount", "totalCents"),
			p("invoice", "amount", "totalCents"),
		},
		amountLegacy: [][]string{p("totalAmount")},
		status:       [][]string{p("invoice", "status"), p("status")},
		eventType:    p("type"),
		paidAt:       [][]string{p("invoice", "paidAt"), p("paidAt")},
		createdAt:    [][]string{p("invoice", "createdAt"), p("createdAt")},
		offerID:      [][]string{p("offer", "id")},
		offerName:    [][]string{p("offerName")},
		offerNameV2:  [][]string{p("offer", "name")},
		productID:    [][]string{p("product", "id")},
		productName:  [][]string{p("product", "name"), p("productName")},
	},
}

// Resolver normalizes provider payloads through per-provider path tables.
type Resolver struct {
	specs map[string]providerSpec
}

// NewResolver creates a resolver with the built-in provider table.
func NewResolver() *Resolver {
	return &Resolver{specs: providerSpecs}
}

func (r *Resolver) spec(origin string) providerSpec {
	if s, ok := r.specs[origin]; ok {
		return s
	}
	return r.specs[OriginUnknown]
}

// ResolveTransactionID resolves only the dedup key. Cheap, deterministic,
// and stable across redeliveries; used to key the raw-event log before the
// full resolution runs.
func (r *Resolver) ResolveTransactionID(origin string, payload Payload) string {
	for _, t := range r.spec(origin).txID {
		if v := payload.str(t.path...); v != "" {
			return v
		}
		// Some v1 payloads carry numeric transaction ids.
		if n, ok := payload.num(t.path...); ok && n != 0 {
			return trimFloat(n)
		}
	}
	return ""
}

// Resolve normalizes the payload. It never fails: missing paths fall
// through tiers and unresolvable fields stay zero.
func (r *Resolver) Resolve(origin string, payload Payload) Resolved {
	spec := r.spec(origin)
	res := Resolved{
		TransactionID: r.ResolveTransactionID(origin, payload),
		EventType:     payload.str(spec.eventType...),
	}

	for _, t := range spec.email {
		if v := payload.str(t.path...); v != "" {
			res.Email = strings.ToLower(v)
			break
		}
	}

	res.Name, res.NameSource = resolveName(payload, spec.name)
	res.Phone, res.PhoneSource = resolvePhone(payload, spec.phone)
	res.AmountCents = resolveAmount(payload, spec)
	res.PaidAt = firstTime(payload, spec.paidAt)
	res.CreatedAt = firstTime(payload, spec.createdAt)
	res.Paid = resolvePaid(payload, spec, res)

	res.OfferID = firstStr(payload, spec.offerID)
	res.OfferName = firstStr(payload, spec.offerName)
	res.OfferNameV2 = firstStr(payload, spec.offerNameV2)
	res.ProductID = firstStr(payload, spec.productID)
	res.ProductName = firstStr(payload, spec.productName)

	return res
}

func resolveName(payload Payload, tiers []nameTier) (string, string) {
	for _, t := range tiers {
		if t.first != nil {
			first := payload.str(t.first...)
			last := payload.str(t.last...)
			if first != "" || last != "" {
				return collapseSpaces(first + " " + last), t.tag
			}
			continue
		}
		if v := payload.str(t.path...); v != "" {
			return collapseSpaces(v), t.tag
		}
	}
	return FallbackName, SourceFallback
}

func resolvePhone(payload Payload, tiers []strTier) (string, string) {
	for _, t := range tiers {
		raw := payload.str(t.path...)
		if raw == "" {
			if n, ok := payload.num(t.path...); ok && n != 0 {
				raw = trimFloat(n)
			}
		}
		if digits := digitsOnly(raw); digits != "" {
			return digits, t.tag
		}
	}
	return "", SourceNone
}

// resolveAmount prefers minor-unit cents, then provider decimals rounded to
// cents, then the legacy flat major-unit total converted exactly once.
func resolveAmount(payload Payload, spec providerSpec) int64 {
	for _, path := range spec.amountCents {
		if n, ok := payload.num(path...); ok {
			return int64(math.Round(n))
		}
	}
	for _, path := range spec.amountDecimal {
		if n, ok := payload.num(path...); ok {
			return int64(math.Round(n * 100))
		}
	}
	for _, path := range spec.amountLegacy {
		if n, ok := payload.num(path...); ok {
			return int64(math.Round(n * 100))
		}
	}
	return 0
}

// resolvePaid classifies the paid status.
//
// An explicit status field, when present, decides alone: outside the
// recognized paid set means unpaid, excluded. Without one, a recognized
// provider event token implies paid, then a paid-at timestamp, and a
// provider that signals nothing at all is tolerated as paid rather than
// silently dropped.
func resolvePaid(payload Payload, spec providerSpec, res Resolved) bool {
	for _, path := range spec.status {
		if v := payload.str(path...); v != "" {
			return paidStatuses[strings.ToLower(v)]
		}
	}
	if res.EventType != "" {
		token := strings.ToLower(res.EventType)
		for _, paid := range spec.paidEvents {
			if token == paid {
				return true
			}
		}
	}
	if res.PaidAt != nil {
		return true
	}
	return true
}

func firstStr(payload Payload, paths [][]string) string {
	for _, path := range paths {
		if v := payload.str(path...); v != "" {
			return v
		}
		if n, ok := payload.num(path...); ok && n != 0 {
			return trimFloat(n)
		}
	}
	return ""
}

func firstTime(payload Payload, paths [][]string) *time.Time {
	for _, path := range paths {
		if v := payload.str(path...); v != "" {
			if t := parseTime(v); t != nil {
				return t
			}
		}
	}
	return nil
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func trimFloat(n float64) string {
	return strconv.FormatFloat(n, 'f', -1, 64)
}
