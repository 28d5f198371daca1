package buyer

import (
	"fmt"
	"time"

	"github.com/brightlead/solar-lead-exchange-backend/internal/domain/values"
)

// Platform is the canonical record for one B2B lead buyer. Platform IDs are
// stable string slugs assigned at onboarding (buyer-facing, human readable),
// not synthetic UUIDs.
type Platform struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Tier Tier   `json:"tier"`

	// Admission requirements
	MinLeadScore   int `json:"min_lead_score"`
	DailyCapacity  int `json:"daily_capacity"`
	WeeklyCapacity int `json:"weekly_capacity"`

	// Commercials
	PricePerLead   values.Money `json:"price_per_lead"`
	AcceptanceRate float64      `json:"acceptance_rate"` // 0.0 - 1.0
	AvgLeadValue   values.Money `json:"avg_lead_value"`
	Exclusive      bool         `json:"exclusive"`

	// Geographic preferences; empty means any
	Boroughs []string `json:"boroughs,omitempty"`
	ZipCodes []string `json:"zip_codes,omitempty"`

	Delivery DeliveryConfig `json:"delivery"`

	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Tier buckets buyers by the price band they purchase in.
type Tier int

const (
	TierVolume Tier = iota
	TierValue
	TierStandard
	TierPremium
)

func (t Tier) String() string {
	switch t {
	case TierPremium:
		return "premium"
	case TierStandard:
		return "standard"
	case TierValue:
		return "value"
	case TierVolume:
		return "volume"
	default:
		return "unknown"
	}
}

// TierFromString parses a buyer tier name; unknown names map to volume.
func TierFromString(s string) Tier {
	switch s {
	case "premium":
		return TierPremium
	case "standard":
		return TierStandard
	case "value":
		return TierValue
	default:
		return TierVolume
	}
}

// MarshalJSON serializes the tier as its string name.
func (t Tier) MarshalJSON() ([]byte, error) {
	return []byte(`"` + t.String() + `"`), nil
}

// UnmarshalJSON parses a tier from its string name.
func (t *Tier) UnmarshalJSON(data []byte) error {
	s := string(data)
	if len(s) >= 2 && s[0] == '"' {
		s = s[1 : len(s)-1]
	}
	*t = TierFromString(s)
	return nil
}

// DeliveryMethod selects how sold leads reach the buyer.
type DeliveryMethod string

const (
	DeliveryAPI     DeliveryMethod = "api"
	DeliveryWebhook DeliveryMethod = "webhook"
	DeliveryEmail   DeliveryMethod = "email"
)

// DeliveryConfig describes one buyer's ingestion channel.
type DeliveryConfig struct {
	Method   DeliveryMethod `json:"method"`
	Endpoint string         `json:"endpoint,omitempty"`  // api/webhook URL
	Secret   string         `json:"-"`                   // HMAC signing / bearer secret
	To       string         `json:"recipient,omitempty"` // email recipient

	// FieldMapping fixes the CSV/JSON field order and naming for this
	// buyer. Column order is contractual: downstream ingestion is
	// positional for several buyers.
	FieldMapping []FieldMap `json:"field_mapping,omitempty"`
}

// FieldMap maps one exported column to an internal lead field.
type FieldMap struct {
	Column string `json:"column"`
	Field  string `json:"field"`
}

// Validate checks platform configuration consistency at load time.
func (p *Platform) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("platform ID cannot be empty")
	}
	if p.DailyCapacity <= 0 {
		return fmt.Errorf("platform %s: daily capacity must be positive", p.ID)
	}
	if p.WeeklyCapacity < p.DailyCapacity {
		return fmt.Errorf("platform %s: weekly capacity below daily capacity", p.ID)
	}
	if p.AcceptanceRate < 0 || p.AcceptanceRate > 1 {
		return fmt.Errorf("platform %s: acceptance rate out of range", p.ID)
	}
	if p.MinLeadScore < 0 || p.MinLeadScore > 100 {
		return fmt.Errorf("platform %s: min lead score out of range", p.ID)
	}
	switch p.Delivery.Method {
	case DeliveryAPI, DeliveryWebhook:
		if p.Delivery.Endpoint == "" {
			return fmt.Errorf("platform %s: %s delivery requires an endpoint", p.ID, p.Delivery.Method)
		}
	case DeliveryEmail:
		if p.Delivery.To == "" {
			return fmt.Errorf("platform %s: email delivery requires a recipient", p.ID)
		}
	default:
		return fmt.Errorf("platform %s: unknown delivery method %q", p.ID, p.Delivery.Method)
	}
	return nil
}

// AcceptsBorough reports whether the platform takes leads from the borough.
func (p *Platform) AcceptsBorough(borough string) bool {
	if len(p.Boroughs) == 0 {
		return true
	}
	for _, b := range p.Boroughs {
		if b == borough {
			return true
		}
	}
	return false
}
