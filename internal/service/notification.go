package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"minuteride/internal/changefeed"
	"minuteride/internal/config"
	"minuteride/internal/domain"
	"minuteride/internal/notify"
	"minuteride/internal/observability"
	"minuteride/internal/repository"
)

const (
	notifyTimeout     = 30 * time.Second
	notifyParallelism = 8
)

// SMSSender delivers a text message to one phone number.
type SMSSender interface {
	SendSMS(ctx context.Context, to, body string) error
}

// Pusher delivers a push notification to one device.
type Pusher interface {
	Push(ctx context.Context, msg notify.PushMessage) error
}

// DeliveryReport summarizes a best-effort fan-out.
type DeliveryReport struct {
	Recipients int
	Sent       int
	Failed     int
	Skipped    int
}

// NotificationService fans new-job alerts out to drivers over SMS and push.
// Delivery failures are logged and counted, never returned to the caller.
type NotificationService struct {
	drivers   repository.DriverDirectory
	sms       SMSSender
	smsConfig config.TwilioConfig
	pushers   map[domain.PushProvider]Pusher
	logger    *slog.Logger

	inflight sync.WaitGroup
}

// NewNotificationService creates a new NotificationService. sms may be nil when
// Twilio is not configured; NotifyNewJob then reports a configuration error.
func NewNotificationService(
	drivers repository.DriverDirectory,
	sms SMSSender,
	smsConfig config.TwilioConfig,
	logger *slog.Logger,
) *NotificationService {
	return &NotificationService{
		drivers:   drivers,
		sms:       sms,
		smsConfig: smsConfig,
		pushers:   make(map[domain.PushProvider]Pusher),
		logger:    logger,
	}
}

// RegisterPusher enables push delivery for tokens of the given provider.
func (s *NotificationService) RegisterPusher(provider domain.PushProvider, p Pusher) {
	s.pushers[provider] = p
}

// NotifyNewJob texts every SMS-enabled driver about a new job.
func (s *NotificationService) NotifyNewJob(ctx context.Context, pickup, dropoff string) (*DeliveryReport, error) {
	if s.drivers == nil {
		return nil, &ConfigError{
			Message: "Missing data store configuration",
			Flags:   map[string]bool{"has_store": false},
		}
	}
	if s.sms == nil || !s.smsConfig.Complete() {
		return nil, &ConfigError{
			Message: "Missing Twilio configuration",
			Flags: map[string]bool{
				"has_sid":   s.smsConfig.AccountSID != "",
				"has_token": s.smsConfig.AuthToken != "",
				"has_from":  s.smsConfig.FromNumber != "",
			},
		}
	}

	phones, err := s.drivers.SMSRecipients(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetchRecipients, err)
	}

	report := &DeliveryReport{Recipients: len(phones)}
	if len(phones) == 0 {
		return report, nil
	}

	body := notify.NewJobSMS(pickup, dropoff)
	s.fanOut(ctx, "sms", phones, report, func(ctx context.Context, phone string) error {
		return s.sms.SendSMS(ctx, phone, body)
	})

	s.logger.Info("new job sms fan-out finished",
		"recipients", report.Recipients, "sent", report.Sent, "failed", report.Failed)
	return report, nil
}

// NotifyNewJobAsync runs NotifyNewJob in the background with its own deadline.
// The outcome is only logged.
func (s *NotificationService) NotifyNewJobAsync(jobID, pickup, dropoff string) {
	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()

		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()

		if _, err := s.NotifyNewJob(ctx, pickup, dropoff); err != nil {
			s.logger.Warn("new job sms not sent", "job_id", jobID, "error", err)
		}
	}()
}

// PushNewJob sends a push notification about a new job to every registered device.
func (s *NotificationService) PushNewJob(ctx context.Context, jobID, pickup, dropoff string) *DeliveryReport {
	report := &DeliveryReport{}
	if s.drivers == nil || len(s.pushers) == 0 {
		return report
	}

	targets, err := s.drivers.PushTargets(ctx)
	if err != nil {
		s.logger.Error("push targets lookup failed", "job_id", jobID, "error", err)
		return report
	}
	report.Recipients = len(targets)

	byToken := make(map[string]Pusher, len(targets))
	tokens := make([]string, 0, len(targets))
	for _, t := range targets {
		p, ok := s.pushers[t.Provider]
		if !ok {
			report.Skipped++
			continue
		}
		if _, dup := byToken[t.Token]; dup {
			report.Skipped++
			continue
		}
		byToken[t.Token] = p
		tokens = append(tokens, t.Token)
	}

	s.fanOut(ctx, "push", tokens, report, func(ctx context.Context, token string) error {
		return byToken[token].Push(ctx, notify.NewJobPush(token, jobID, pickup, dropoff))
	})

	s.logger.Info("new job push fan-out finished", "job_id", jobID,
		"recipients", report.Recipients, "sent", report.Sent, "failed", report.Failed, "skipped", report.Skipped)
	return report
}

// HandleJobChange reacts to job row changes: inserted jobs are pushed to drivers.
func (s *NotificationService) HandleJobChange(_ context.Context, ev changefeed.Event) {
	if ev.Op != changefeed.OpInsert || ev.JobID == "" {
		return
	}

	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()

		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()
		s.PushNewJob(ctx, ev.JobID, ev.Pickup, ev.Dropoff)
	}()
}

// Wait blocks until background deliveries finish or ctx is done.
func (s *NotificationService) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// fanOut calls send for every recipient concurrently. One failure never stops the others.
func (s *NotificationService) fanOut(ctx context.Context, channel string, recipients []string, report *DeliveryReport, send func(context.Context, string) error) {
	var mu sync.Mutex
	var wg sync.WaitGroup
	sem := make(chan struct{}, notifyParallelism)

	for _, to := range recipients {
		if to == "" {
			mu.Lock()
			report.Skipped++
			mu.Unlock()
			continue
		}

		wg.Add(1)
		sem <- struct{}{}
		go func(to string) {
			defer wg.Done()
			defer func() { <-sem }()

			err := send(ctx, to)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				report.Failed++
				observability.NotificationsTotal.WithLabelValues(channel, "failed").Inc()
				s.logger.Warn("notification delivery failed", "channel", channel, "error", err)
				return
			}
			report.Sent++
			observability.NotificationsTotal.WithLabelValues(channel, "sent").Inc()
		}(to)
	}

	wg.Wait()
}
