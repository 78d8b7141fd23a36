// Package delivery implements the message delivery service: consent and
// suppression gates, rate limiting, idempotent sends, provider invocation
// with a single cross-channel fallback, and dead-lettering.
package delivery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nyaruka/phonenumbers"

	"github.com/LeventeLantos/cadence-engine/internal/events"
	"github.com/LeventeLantos/cadence-engine/internal/model"
	"github.com/LeventeLantos/cadence-engine/internal/repo"
)

var errNoDestination = errors.New("no destination configured")

// Adapter is one messaging channel's provider client.
type Adapter interface {
	Send(ctx context.Context, destination, subject, body string) (providerID string, err error)
}

// RateLimiter is the slice of the rate limiter the delivery path needs.
type RateLimiter interface {
	Allow(ctx context.Context, tenantID, operationKey string, maxPerMinute, burst int) (bool, int64)
}

type Request struct {
	TenantID       string
	ContactID      int64
	Channel        model.Channel
	TemplateID     string
	Body           string
	Subject        string
	IdempotencyKey string
}

type Result struct {
	Outcome    model.SendOutcome
	MessageID  int64
	ProviderID string
}

type Config struct {
	SendTimeout  time.Duration
	MaxPerMinute int
	Burst        int
	// DefaultRegion is the phonenumbers region for numbers without a
	// country prefix.
	DefaultRegion string
}

type Service struct {
	contacts    repo.ContactRepo
	messages    repo.MessageRepo
	deadLetters repo.DeadLetterRepo
	idempotency repo.IdempotencyRepo
	limiter     RateLimiter
	adapters    map[model.Channel]Adapter
	emitter     events.Emitter
	cfg         Config
}

func NewService(
	contacts repo.ContactRepo,
	messages repo.MessageRepo,
	deadLetters repo.DeadLetterRepo,
	idempotency repo.IdempotencyRepo,
	limiter RateLimiter,
	adapters map[model.Channel]Adapter,
	emitter events.Emitter,
	cfg Config,
) *Service {
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 15 * time.Second
	}
	if cfg.DefaultRegion == "" {
		cfg.DefaultRegion = "US"
	}
	if emitter == nil {
		emitter = events.Discard{}
	}
	return &Service{
		contacts:    contacts,
		messages:    messages,
		deadLetters: deadLetters,
		idempotency: idempotency,
		limiter:     limiter,
		adapters:    adapters,
		emitter:     emitter,
		cfg:         cfg,
	}
}

// Send runs the full gate chain and at most one provider call per channel
// (primary plus one fallback). Terminal rejections (suppressed, no_consent,
// rate_limited, duplicate) produce no Message row for the rejected attempt.
func (s *Service) Send(ctx context.Context, req Request) (Result, error) {
	if !req.Channel.Valid() {
		return Result{}, fmt.Errorf("invalid channel %q", req.Channel)
	}

	contact, err := s.contacts.Get(ctx, req.TenantID, req.ContactID)
	if err != nil {
		return Result{}, fmt.Errorf("load contact: %w", err)
	}

	if outcome, gateErr := s.checkGates(ctx, contact, req.Channel); gateErr != nil {
		return Result{}, gateErr
	} else if outcome != "" {
		s.emitFailed(ctx, req, string(outcome))
		return Result{Outcome: outcome}, nil
	}

	if s.limiter != nil {
		allowed, count := s.limiter.Allow(ctx, req.TenantID, "send:"+string(req.Channel), s.cfg.MaxPerMinute, s.cfg.Burst)
		if !allowed {
			slog.Warn("send rate limited", "tenant_id", req.TenantID, "channel", req.Channel, "count", count)
			s.emitFailed(ctx, req, string(model.OutcomeRateLimited))
			return Result{Outcome: model.OutcomeRateLimited}, nil
		}
	}

	if req.IdempotencyKey != "" {
		fresh, err := s.idempotency.Insert(ctx, req.TenantID, req.IdempotencyKey)
		if err != nil {
			return Result{}, fmt.Errorf("idempotency insert: %w", err)
		}
		if !fresh {
			return Result{Outcome: model.OutcomeDuplicate}, nil
		}
	}

	body := req.Body
	if body == "" {
		body = renderTemplate(req.TemplateID)
	}
	subject := req.Subject
	if subject == "" {
		subject = defaultSubject
	}

	res, err := s.attempt(ctx, contact, req, req.Channel, subject, body)
	if err == nil {
		return res, nil
	}

	// Primary channel failed: dead-letter it and try the other channel once.
	// No dead letter when the provider was never called (missing or invalid
	// destination); those rows just end up failed.
	if !errors.Is(err, errNoDestination) {
		s.deadLetter(ctx, req, req.Channel, err)
	}

	fallback := req.Channel.Other()
	if outcome, gateErr := s.checkGates(ctx, contact, fallback); gateErr != nil || outcome != "" {
		if gateErr != nil {
			slog.Error("fallback gate check failed", "tenant_id", req.TenantID,
				"contact_id", req.ContactID, "channel", fallback, "error", gateErr)
		}
		s.failPrimary(ctx, req, res.MessageID)
		return Result{Outcome: model.OutcomeFailed, MessageID: res.MessageID}, nil
	}

	fbReq := req
	fbReq.Channel = fallback
	fbRes, fbErr := s.attempt(ctx, contact, fbReq, fallback, subject, body)
	if fbErr != nil {
		if !errors.Is(fbErr, errNoDestination) {
			s.deadLetter(ctx, fbReq, fallback, fbErr)
		}
		if fbRes.MessageID != 0 {
			_ = s.messages.MarkFailed(ctx, fbRes.MessageID, "provider_error")
		}
		s.failPrimary(ctx, req, res.MessageID)
		return Result{Outcome: model.OutcomeFailed, MessageID: res.MessageID}, nil
	}

	// Fallback delivered; the primary attempt still failed and stays failed.
	s.failPrimary(ctx, req, res.MessageID)
	return fbRes, nil
}

// checkGates returns a terminal outcome ("" when the channel is clear).
func (s *Service) checkGates(ctx context.Context, contact *model.Contact, channel model.Channel) (model.SendOutcome, error) {
	revoked, err := s.contacts.HasRevoked(ctx, contact.TenantID, contact.ID, channel)
	if err != nil {
		return "", fmt.Errorf("consent log lookup: %w", err)
	}
	if revoked {
		return model.OutcomeSuppressed, nil
	}

	switch channel {
	case model.ChannelSMS:
		if !contact.ConsentSMS {
			return model.OutcomeNoConsent, nil
		}
	case model.ChannelEmail:
		if !contact.ConsentEmail {
			return model.OutcomeNoConsent, nil
		}
	}
	return "", nil
}

// attempt persists the queued row, resolves the destination and calls the
// adapter. The returned Result carries the row id even on error so the
// caller can mark it failed.
func (s *Service) attempt(ctx context.Context, contact *model.Contact, req Request, channel model.Channel, subject, body string) (Result, error) {
	msgID, err := s.messages.CreateQueued(ctx, model.Message{
		TenantID:     req.TenantID,
		ContactID:    req.ContactID,
		Channel:      channel,
		Direction:    model.DirectionOutbound,
		TemplateID:   req.TemplateID,
		BodyRedacted: redact(body),
	})
	if err != nil {
		return Result{}, fmt.Errorf("persist queued message: %w", err)
	}
	s.emitter.Emit(ctx, events.Event{
		Type:      events.TypeMessageQueued,
		TenantID:  req.TenantID,
		ContactID: req.ContactID,
		Fields:    map[string]any{"channel": string(channel), "message_id": msgID, "template_id": req.TemplateID},
	})

	dest, err := s.destination(contact, channel)
	if err != nil {
		return Result{MessageID: msgID}, err
	}

	adapter, ok := s.adapters[channel]
	if !ok {
		return Result{MessageID: msgID}, fmt.Errorf("no adapter for channel %q", channel)
	}

	sendCtx, cancel := context.WithTimeout(ctx, s.cfg.SendTimeout)
	defer cancel()

	providerID, err := adapter.Send(sendCtx, dest, subject, body)
	if err != nil {
		return Result{MessageID: msgID}, err
	}

	if err := s.messages.MarkSent(ctx, msgID, providerID); err != nil {
		return Result{MessageID: msgID}, fmt.Errorf("mark sent: %w", err)
	}
	s.emitter.Emit(ctx, events.Event{
		Type:      events.TypeMessageSent,
		TenantID:  req.TenantID,
		ContactID: req.ContactID,
		Fields:    map[string]any{"channel": string(channel), "message_id": msgID, "provider_id": providerID},
	})
	return Result{Outcome: model.OutcomeSent, MessageID: msgID, ProviderID: providerID}, nil
}

func (s *Service) destination(contact *model.Contact, channel model.Channel) (string, error) {
	switch channel {
	case model.ChannelSMS:
		if contact.Phone == "" {
			return "", errNoDestination
		}
		num, err := phonenumbers.Parse(contact.Phone, s.cfg.DefaultRegion)
		if err != nil || !phonenumbers.IsValidNumber(num) {
			return "", errNoDestination
		}
		return phonenumbers.Format(num, phonenumbers.E164), nil
	case model.ChannelEmail:
		if contact.Email == "" || !strings.Contains(contact.Email, "@") {
			return "", errNoDestination
		}
		return contact.Email, nil
	}
	return "", errNoDestination
}

func (s *Service) deadLetter(ctx context.Context, req Request, channel model.Channel, cause error) {
	payload, _ := json.Marshal(map[string]any{
		"tenant_id":   req.TenantID,
		"contact_id":  req.ContactID,
		"channel":     string(channel),
		"template_id": req.TemplateID,
	})
	if _, err := s.deadLetters.Create(ctx, model.DeadLetter{
		TenantID: req.TenantID,
		Provider: string(channel),
		Reason:   cause.Error(),
		Attempts: 1,
		Payload:  string(payload),
	}); err != nil {
		slog.Error("failed to write dead letter", "tenant_id", req.TenantID, "error", err)
	}
}

func (s *Service) failPrimary(ctx context.Context, req Request, msgID int64) {
	if msgID != 0 {
		if err := s.messages.MarkFailed(ctx, msgID, "provider_error"); err != nil {
			slog.Error("failed to mark message failed", "message_id", msgID, "error", err)
		}
	}
	s.emitFailed(ctx, req, "provider_error")
}

func (s *Service) emitFailed(ctx context.Context, req Request, failureCode string) {
	s.emitter.Emit(ctx, events.Event{
		Type:      events.TypeMessageFailed,
		TenantID:  req.TenantID,
		ContactID: req.ContactID,
		Fields:    map[string]any{"channel": string(req.Channel), "failure_code": failureCode},
	})
}

const defaultSubject = "Quick follow-up"

// Templates are code-defined for now. Unknown ids fall back to a generic
// nudge so a registry gap cannot block a cadence.
var templates = map[string]string{
	"appointment_reminder": "Hi! This is a reminder about your upcoming appointment. Reply to reschedule.",
}

func renderTemplate(templateID string) string {
	if body, ok := templates[templateID]; ok {
		return body
	}
	return "Hi! Just checking in - reply to this message and we'll pick it up from there."
}

// redact masks digit runs so persisted bodies carry no phone numbers or
// verification codes.
func redact(body string) string {
	out := []rune(body)
	for i, r := range out {
		if r >= '0' && r <= '9' {
			out[i] = '*'
		}
	}
	if len(out) > 140 {
		out = out[:140]
	}
	return string(out)
}
