package domain

import (
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

// Category is the ticket tier controlling pricing and access level.
type Category string

const (
	CategoryGold     Category = "Wolf Gold"
	CategoryBlack    Category = "Wolf Black"
	CategoryVIP      Category = "VIP Wolf"
	CategoryCamarote Category = "Camarote"
)

// Categories lists every valid ticket tier.
var Categories = []Category{CategoryGold, CategoryBlack, CategoryVIP, CategoryCamarote}

// Valid reports whether c is one of the known ticket tiers.
func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// Participant is a registered person holding a ticket.
//
// Email is unique across participants: registration, CSV import, and webhook
// provisioning all converge on the same row for the same address.
type Participant struct {
	ID        string          `json:"id" db:"id"`
	Name      string          `json:"name" db:"name"`
	Email     string          `json:"email" db:"email"`
	Phone     string          `json:"phone" db:"phone"`
	Category  Category        `json:"category" db:"category"`
	Presences map[string]bool `json:"presencas" db:"presencas"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt time.Time       `json:"updated_at" db:"updated_at"`
}

// ShortID returns the first eight characters of the participant id,
// uppercased. Shown on tickets and in the confirmation email.
func (p Participant) ShortID() string {
	id := p.ID
	if len(id) > 8 {
		id = id[:8]
	}
	return strings.ToUpper(id)
}

// Ticket is the single admission credential of a participant. The QR payload
// equals the participant id in the webhook-provisioned path.
type Ticket struct {
	ID            string     `json:"id" db:"id"`
	ParticipantID string     `json:"participant_id" db:"participant_id"`
	QRCode        string     `json:"qr_code" db:"qr_code"`
	IsValidated   bool       `json:"is_validated" db:"is_validated"`
	ValidatedAt   *time.Time `json:"validated_at" db:"validated_at"`
	CreatedAt     time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at" db:"updated_at"`
}

// brazilianPrepositions stay lowercase when title-casing a name.
var brazilianPrepositions = map[string]bool{
	"da": true, "de": true, "do": true, "das": true, "dos": true,
	"e": true, "em": true, "na": true, "no": true, "nas": true, "nos": true,
	"a": true, "o": true, "as": true, "os": true,
	"para": true, "por": true, "com": true, "sem": true,
}

// TitleCaseName normalizes an all-caps or all-lower name into title case,
// keeping Brazilian prepositions lowercase:
//
//	"FERNANDO DOS SANTOS" → "Fernando dos Santos"
func TitleCaseName(name string) string {
	if name == "" {
		return name
	}
	words := strings.Split(strings.ToLower(name), " ")
	for i, w := range words {
		if w == "" {
			continue
		}
		if i > 0 && brazilianPrepositions[w] {
			continue
		}
		r, size := utf8.DecodeRuneInString(w)
		words[i] = string(unicode.ToUpper(r)) + w[size:]
	}
	return strings.Join(words, " ")
}
