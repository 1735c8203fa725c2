// Package store owns the single persisted bot document: users, settings,
// broadcast queue, file cache and counters.
package store

import (
	"encoding/json"
	"time"
)

// Default values applied when the backing file is absent or unparsable.
const (
	DefaultMinDeposit        = 20.0
	DefaultCommissionPercent = 30.0
	DefaultReferralLink      = "https://pocket-friends.com/r/your_default_link"

	DefaultMaintenanceMessage = "Бот на техническом обслуживании. Попробуйте позже."
)

// Broadcast lifecycle statuses.
const (
	BroadcastPending = "pending"
	BroadcastSent    = "sent"
	BroadcastFailed  = "failed"
)

// UserRecord is the structured per-user entry of the document.
type UserRecord struct {
	Username     string    `json:"username,omitempty"`
	Language     string    `json:"lang,omitempty"`
	BrokerUID    string    `json:"uid,omitempty"`
	IsRegistered bool      `json:"is_registered"`
	HasDeposit   bool      `json:"has_deposit"`
	FirstSeen    time.Time `json:"first_seen"`
	LastSeen     time.Time `json:"last_seen"`

	// Deprecated duplicates of the verification flags; stripped by Migrate.
	LegacyRegistered *bool `json:"registered,omitempty"`
	LegacyDeposited  *bool `json:"deposited,omitempty"`
}

// FullyVerified reports whether both verification flags hold.
func (r *UserRecord) FullyVerified() bool {
	return r != nil && r.IsRegistered && r.HasDeposit
}

// UserValue is a tagged union over the two historical on-disk shapes of a user
// entry: a bare string (oldest exports) or a structured record. Legacy values
// are coerced to fresh records on the next registry touch.
type UserValue struct {
	Legacy string
	Record *UserRecord
}

// IsLegacy reports whether the value still carries the bare-string shape.
func (v UserValue) IsLegacy() bool {
	return v.Record == nil
}

// UnmarshalJSON accepts either shape.
func (v *UserValue) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		v.Legacy = s
		v.Record = nil
		return nil
	}

	var rec UserRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return err
	}

	v.Legacy = ""
	v.Record = &rec
	return nil
}

// MarshalJSON writes the value back in whichever shape it holds.
func (v UserValue) MarshalJSON() ([]byte, error) {
	if v.Record != nil {
		return json.Marshal(v.Record)
	}
	return json.Marshal(v.Legacy)
}

// ReferralSettings configures the partner funnel.
type ReferralSettings struct {
	MinDeposit        float64 `json:"min_deposit"`
	CommissionPercent float64 `json:"commission_percent"`
	ReferralLink      string  `json:"referral_link"`
	PromoCode         string  `json:"promo_code,omitempty"`
}

// SignalSettings limits signal generation. MaxDailySignals caps the global
// per-day count; the zero default leaves signals uncapped. MinConfidence is
// persisted for the operator but not enforced.
type SignalSettings struct {
	MinConfidence   float64 `json:"min_confidence"`
	MaxDailySignals int     `json:"max_daily_signals"`
}

// Broadcast is a queued operator broadcast.
type Broadcast struct {
	ID        string    `json:"id"`
	Message   string    `json:"message"`
	Target    string    `json:"target"`
	CreatedAt time.Time `json:"created_at"`
	Status    string    `json:"status"`
}

// Statistics holds the global counters.
type Statistics struct {
	TotalStarts      int            `json:"total_starts"`
	SignalsGenerated int            `json:"signals_generated"`
	DailySignals     map[string]int `json:"daily_signals"`
}

// Document is the singleton root persisted to disk.
type Document struct {
	Users              map[string]UserValue `json:"users"`
	Broadcasts         []Broadcast          `json:"broadcasts"`
	MaintenanceMode    bool                 `json:"maintenance_mode"`
	MaintenanceMessage string               `json:"maintenance_message"`
	ReferralSettings   ReferralSettings     `json:"referral_settings"`
	SignalSettings     SignalSettings       `json:"signal_settings"`
	FileCache          map[string]string    `json:"file_cache"`
	WelcomeMessages    map[string]string    `json:"welcome_messages"`
	FinishMessages     map[string]string    `json:"finish_messages"`
	Statistics         Statistics           `json:"statistics"`

	// Deprecated blocks kept only so Migrate can detect and drop them.
	LegacyStats      json.RawMessage `json:"stats,omitempty"`
	LegacyDailyStats json.RawMessage `json:"daily_stats,omitempty"`
	LegacySettings   *legacySettings `json:"settings,omitempty"`
}

type legacySettings struct {
	ReferralLink string `json:"referral_link,omitempty"`
}

// DefaultDocument builds a fully populated document.
func DefaultDocument() *Document {
	return &Document{
		Users:              make(map[string]UserValue),
		Broadcasts:         make([]Broadcast, 0),
		MaintenanceMode:    false,
		MaintenanceMessage: DefaultMaintenanceMessage,
		ReferralSettings: ReferralSettings{
			MinDeposit:        DefaultMinDeposit,
			CommissionPercent: DefaultCommissionPercent,
			ReferralLink:      DefaultReferralLink,
		},
		SignalSettings: SignalSettings{
			MinConfidence: 0.7,
		},
		FileCache:       make(map[string]string),
		WelcomeMessages: make(map[string]string),
		FinishMessages:  make(map[string]string),
		Statistics: Statistics{
			DailySignals: make(map[string]int),
		},
	}
}

// normalize backfills maps and settings that older files may lack, so every
// loaded document is internally consistent. Returns true if anything changed.
func (d *Document) normalize() bool {
	changed := false

	if d.Users == nil {
		d.Users = make(map[string]UserValue)
		changed = true
	}
	if d.Broadcasts == nil {
		d.Broadcasts = make([]Broadcast, 0)
		changed = true
	}
	if d.FileCache == nil {
		d.FileCache = make(map[string]string)
		changed = true
	}
	if d.WelcomeMessages == nil {
		d.WelcomeMessages = make(map[string]string)
		changed = true
	}
	if d.FinishMessages == nil {
		d.FinishMessages = make(map[string]string)
		changed = true
	}
	if d.Statistics.DailySignals == nil {
		d.Statistics.DailySignals = make(map[string]int)
		changed = true
	}
	if d.MaintenanceMessage == "" {
		d.MaintenanceMessage = DefaultMaintenanceMessage
		changed = true
	}
	if d.ReferralSettings.MinDeposit == 0 {
		d.ReferralSettings.MinDeposit = DefaultMinDeposit
		changed = true
	}
	if d.ReferralSettings.CommissionPercent == 0 {
		d.ReferralSettings.CommissionPercent = DefaultCommissionPercent
		changed = true
	}
	if d.ReferralSettings.ReferralLink == "" {
		d.ReferralSettings.ReferralLink = DefaultReferralLink
		changed = true
	}

	return changed
}
