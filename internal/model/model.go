package model

import "time"

type Channel string

const (
	ChannelSMS   Channel = "sms"
	ChannelEmail Channel = "email"
)

// Other returns the fallback channel for cross-channel retry.
func (c Channel) Other() Channel {
	if c == ChannelSMS {
		return ChannelEmail
	}
	return ChannelSMS
}

func (c Channel) Valid() bool {
	return c == ChannelSMS || c == ChannelEmail
}

type Direction string

const (
	DirectionOutbound Direction = "outbound"
	DirectionInbound  Direction = "inbound"
)

type MessageStatus string

const (
	StatusQueued MessageStatus = "queued"
	StatusSent   MessageStatus = "sent"
	StatusFailed MessageStatus = "failed"
)

// SendOutcome is what the delivery service reports back to its caller.
// Only Queued/Sent/Failed ever correspond to a persisted Message row.
type SendOutcome string

const (
	OutcomeSent        SendOutcome = "sent"
	OutcomeFailed      SendOutcome = "failed"
	OutcomeSuppressed  SendOutcome = "suppressed"
	OutcomeNoConsent   SendOutcome = "no_consent"
	OutcomeRateLimited SendOutcome = "rate_limited"
	OutcomeDuplicate   SendOutcome = "duplicate"
)

// CadenceState tracks a contact's position in a cadence. One row per
// (tenant, contact, cadence). NextActionEpoch is nil once the cadence
// is exhausted; such rows are never selected by the tick.
type CadenceState struct {
	ID              int64
	TenantID        string
	ContactID       int64
	CadenceID       string
	StepIndex       int
	NextActionEpoch *int64
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

type Contact struct {
	ID           int64
	TenantID     string
	Phone        string
	Email        string
	ConsentSMS   bool
	ConsentEmail bool
}

// ConsentEntry is an append-only consent log row. A "revoked" action for
// a channel suppresses sends on that channel regardless of the contact's
// cached consent flags.
type ConsentEntry struct {
	ID        int64
	TenantID  string
	ContactID int64
	Channel   Channel
	Action    string // granted | revoked
	CreatedAt time.Time
}

type Message struct {
	ID           int64
	TenantID     string
	ContactID    int64
	Channel      Channel
	Direction    Direction
	TemplateID   string
	BodyRedacted string
	Status       MessageStatus
	ProviderID   *string
	FailureCode  *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type DeadLetter struct {
	ID        int64
	TenantID  string
	Provider  string
	Reason    string
	Attempts  int
	Payload   string
	CreatedAt time.Time
}

// LeadStatus is the generic "next action" record the tick's reminder branch
// consumes. One row per (tenant, contact).
type LeadStatus struct {
	ID           int64
	TenantID     string
	ContactID    int64
	Bucket       string
	Tag          string
	NextActionAt *int64
	UpdatedAt    time.Time
}

type Appointment struct {
	ID        int64
	TenantID  string
	ContactID int64
	StartTS   int64
	Status    string // booked | cancelled | completed
}

// TenantSettings carries the per-tenant quiet window, timezone offset and
// rate-limit multiplier. Hours are local 0..23; UTCOffsetHours may be
// negative. Zero-value settings mean "no quiet hours, UTC, multiplier 1".
type TenantSettings struct {
	TenantID       string
	QuietStartHour int
	QuietEndHour   int
	UTCOffsetHours int
	RateMultiplier int
}

func (s TenantSettings) Multiplier() int {
	if s.RateMultiplier <= 0 {
		return 1
	}
	return s.RateMultiplier
}
