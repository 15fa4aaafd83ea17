// Package subscription implements submit-subscription: request validation,
// persistence, per-channel delivery requests and the confirmation message.
package subscription

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/weather-alerts/internal/domain"
	"github.com/couchcryptid/weather-alerts/internal/observability"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

// Contact methods.
const (
	MethodEmail = "email"
	MethodSMS   = "sms"
	MethodBoth  = "both"
)

// Delivery channels reported in Result.Results.
const (
	ChannelSMS       = "sms"
	ChannelEmail     = "email"
	ChannelAlsoEmail = "also_email"
)

const (
	subjectConfirmed   = "Weather Alerts Confirmed"
	subjectAlsoEnabled = "Weather Alerts Also Enabled"
	successMessage     = "Subscription successful"
)

// Request is a subscription submission.
type Request struct {
	Method    string   `json:"method"`
	Phone     string   `json:"phone,omitempty"`
	Email     string   `json:"email"`
	AlsoEmail bool     `json:"also_email"`
	AltEmail  string   `json:"alt_email,omitempty"`
	City      string   `json:"city,omitempty"`
	Country   string   `json:"country,omitempty"`
	Lat       *float64 `json:"lat"`
	Lon       *float64 `json:"lon"`
}

// Record is a persisted subscription.
type Record struct {
	ID        string    `json:"id"`
	Method    string    `json:"method"`
	Phone     string    `json:"phone,omitempty"`
	Email     string    `json:"email"`
	AlsoEmail bool      `json:"also_email"`
	AltEmail  string    `json:"alt_email,omitempty"`
	City      string    `json:"city,omitempty"`
	Country   string    `json:"country,omitempty"`
	Lat       *float64  `json:"lat"`
	Lon       *float64  `json:"lon"`
	TS        time.Time `json:"ts"`
}

// ChannelResult reports whether a delivery request was accepted for one channel.
type ChannelResult struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// Result is the response to an accepted subscription.
type Result struct {
	OK           bool                     `json:"ok"`
	Message      string                   `json:"message"`
	Confirmation string                   `json:"confirmation"`
	Results      map[string]ChannelResult `json:"results"`
}

// DeliveryRequest is the outbox payload asking an external notifier to send
// one message.
type DeliveryRequest struct {
	SubscriptionID string `json:"subscription_id"`
	Channel        string `json:"channel"`
	Recipient      string `json:"recipient"`
	Subject        string `json:"subject,omitempty"`
	Body           string `json:"body"`
}

// Store persists subscription records.
type Store interface {
	Save(ctx context.Context, r Record) error
}

// Publisher accepts outbox messages for asynchronous delivery.
type Publisher interface {
	Enqueue(ctx context.Context, msg domain.OutboxMessage) error
}

// Service validates, stores and fans out subscriptions.
type Service struct {
	store     Store
	publisher Publisher
	clock     clockwork.Clock
	logger    *slog.Logger
	metrics   *observability.Metrics
}

// NewService creates a Service. A nil publisher means no delivery channel is
// configured; subscriptions are still stored.
func NewService(store Store, publisher Publisher, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics) *Service {
	return &Service{store: store, publisher: publisher, clock: clock, logger: logger, metrics: metrics}
}

// Subscribe validates and stores req, then requests delivery of the
// confirmation on each applicable channel. Validation failures wrap
// domain.ErrInvalidSubscription (or domain.ErrInvalidCoordinate); a store
// failure wraps domain.ErrSubmissionFailure. Per-channel failures are reported
// in the result and do not fail the call.
func (s *Service) Subscribe(ctx context.Context, req Request) (Result, error) {
	req, err := normalize(req)
	if err != nil {
		s.metrics.Subscriptions.WithLabelValues("invalid").Inc()
		return Result{}, err
	}

	rec := Record{
		ID:        uuid.NewString(),
		Method:    req.Method,
		Phone:     req.Phone,
		Email:     req.Email,
		AlsoEmail: req.AlsoEmail,
		AltEmail:  req.AltEmail,
		City:      req.City,
		Country:   req.Country,
		Lat:       req.Lat,
		Lon:       req.Lon,
		TS:        s.clock.Now().UTC(),
	}
	if err := s.store.Save(ctx, rec); err != nil {
		s.metrics.Subscriptions.WithLabelValues("failed").Inc()
		s.logger.Error("save subscriber failed", "error", err)
		return Result{}, fmt.Errorf("%w: %w", domain.ErrSubmissionFailure, err)
	}
	s.metrics.Subscriptions.WithLabelValues("accepted").Inc()
	s.publishCreated(ctx, rec)

	msg := Confirmation(rec.City, rec.Lat, rec.Lon, rec.Method)
	results := make(map[string]ChannelResult)
	if (rec.Method == MethodSMS || rec.Method == MethodBoth) && rec.Phone != "" {
		results[ChannelSMS] = s.deliver(ctx, rec.ID, ChannelSMS, rec.Phone, "", msg)
	}
	if rec.Method == MethodEmail || rec.Method == MethodBoth || (rec.AlsoEmail && rec.Email != "") {
		results[ChannelEmail] = s.deliver(ctx, rec.ID, ChannelEmail, rec.Email, subjectConfirmed, msg)
	}
	if rec.AlsoEmail && rec.AltEmail != "" {
		results[ChannelAlsoEmail] = s.deliver(ctx, rec.ID, ChannelAlsoEmail, rec.AltEmail, subjectAlsoEnabled, msg)
	}

	return Result{OK: true, Message: successMessage, Confirmation: msg, Results: results}, nil
}

// Confirmation renders the message sent to a new subscriber.
func Confirmation(city string, lat, lon *float64, method string) string {
	if city == "" {
		city = "your location"
	}
	return fmt.Sprintf("Weather alerts enabled for %s (lat=%s, lon=%s). You will receive updates via %s.",
		city, formatCoord(lat), formatCoord(lon), strings.ToUpper(method))
}

func formatCoord(v *float64) string {
	if v == nil {
		return "unknown"
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func normalize(req Request) (Request, error) {
	req.Method = strings.ToLower(strings.TrimSpace(req.Method))
	if req.Method == "" {
		req.Method = MethodEmail
	}
	req.Email = strings.TrimSpace(req.Email)
	req.Phone = strings.TrimSpace(req.Phone)
	req.AltEmail = strings.TrimSpace(req.AltEmail)

	switch req.Method {
	case MethodEmail, MethodSMS, MethodBoth:
	default:
		return req, fmt.Errorf("%w: unknown method %q", domain.ErrInvalidSubscription, req.Method)
	}
	if req.Email == "" {
		return req, fmt.Errorf("%w: email is required", domain.ErrInvalidSubscription)
	}
	if req.Method == MethodSMS && req.Phone == "" {
		return req, fmt.Errorf("%w: phone number required for SMS", domain.ErrInvalidSubscription)
	}
	if (req.Lat == nil) != (req.Lon == nil) {
		return req, fmt.Errorf("%w: lat and lon must be given together", domain.ErrInvalidCoordinate)
	}
	if req.Lat != nil {
		if _, err := domain.NewCoordinates(*req.Lat, *req.Lon); err != nil {
			return req, err
		}
	}
	return req, nil
}

func (s *Service) publishCreated(ctx context.Context, rec Record) {
	if s.publisher == nil {
		return
	}
	value, err := json.Marshal(rec)
	if err != nil {
		s.logger.Error("marshal subscription event failed", "error", err)
		return
	}
	msg := domain.OutboxMessage{
		Key:     []byte(rec.ID),
		Value:   value,
		Headers: map[string]string{"event_type": domain.EventSubscriptionCreated},
	}
	if err := s.publisher.Enqueue(ctx, msg); err != nil {
		s.logger.Warn("enqueue subscription event failed", "subscription", rec.ID, "error", err)
	}
}

func (s *Service) deliver(ctx context.Context, id, channel, recipient, subject, body string) ChannelResult {
	if s.publisher == nil {
		return ChannelResult{Error: channel + " not configured"}
	}
	value, err := json.Marshal(DeliveryRequest{
		SubscriptionID: id,
		Channel:        channel,
		Recipient:      recipient,
		Subject:        subject,
		Body:           body,
	})
	if err != nil {
		return ChannelResult{Error: err.Error()}
	}
	msg := domain.OutboxMessage{
		Key:   []byte(id),
		Value: value,
		Headers: map[string]string{
			"event_type": domain.EventDeliveryRequested,
			"channel":    channel,
		},
	}
	if err := s.publisher.Enqueue(ctx, msg); err != nil {
		s.logger.Warn("enqueue delivery failed", "subscription", id, "channel", channel, "error", err)
		return ChannelResult{Error: err.Error()}
	}
	return ChannelResult{OK: true}
}
