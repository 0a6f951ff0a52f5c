// Package service orchestrates the notification automation engine: rule
// evaluation, eligibility, the dedup gate, rendering and multi-channel
// dispatch, with every attempt recorded in the delivery log.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"dizimo_backend/internal/automation/ports"
	"dizimo_backend/internal/automation/repository"
	"dizimo_backend/internal/automation/resolver"
	"dizimo_backend/internal/channel"
	"dizimo_backend/internal/events"
	"dizimo_backend/platform/apperr"
	"dizimo_backend/platform/config"
	"dizimo_backend/platform/logger"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const (
	opRunBatch = "automation.service.run_batch"
	opRunEvent = "automation.service.run_event"
	opResend   = "automation.service.resend"
)

// Summary is the batch contract: every evaluated send lands in exactly one
// bucket. A run that dispatches nothing is a success with all zeros.
type Summary struct {
	Sent    int `json:"sent"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

// ResendResult reports the outcome of one operator-initiated resend.
type ResendResult struct {
	LogID        uuid.UUID
	Status       repository.LogStatus
	ErrorMessage string
}

// Service runs the automation engine. All methods are safe for concurrent
// use; the dedup gate in the delivery log arbitrates overlapping runs.
type Service struct {
	rules       repository.RuleStore
	deliveryLog repository.DeliveryLog
	directory   ports.UserDirectory
	billing     ports.BillingLedger
	dispatchers map[channel.Kind]channel.Dispatcher
	log         *logger.Logger

	loc           *time.Location
	workers       int
	defaultLocale string

	// now is swapped in tests to pin the batch day.
	now func() time.Time
}

func NewService(
	rules repository.RuleStore,
	deliveryLog repository.DeliveryLog,
	directory ports.UserDirectory,
	billing ports.BillingLedger,
	dispatchers []channel.Dispatcher,
	cfg config.EngineConfig,
	log *logger.Logger,
) (*Service, error) {
	loc, err := time.LoadLocation(cfg.GetTimezone())
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", cfg.GetTimezone(), err)
	}

	byKind := make(map[channel.Kind]channel.Dispatcher, len(dispatchers))
	for _, d := range dispatchers {
		byKind[d.Kind()] = d
	}

	workers := cfg.GetDispatchWorkers()
	if workers < 1 {
		workers = 1
	}

	return &Service{
		rules:         rules,
		deliveryLog:   deliveryLog,
		directory:     directory,
		billing:       billing,
		dispatchers:   byKind,
		log:           log,
		loc:           loc,
		workers:       workers,
		defaultLocale: cfg.GetDefaultLocale(),
		now:           time.Now,
	}, nil
}

// dispatchJob is one (recipient, channel) send, fully rendered.
type dispatchJob struct {
	rule             repository.Rule
	member           ports.Member
	kind             channel.Kind
	notificationType string
	subject          *string
	body             string
	paymentLink      string
	sendDate         time.Time

	// configErr marks a rule misconfiguration (e.g. empty template). The
	// attempt is still logged through the gate, finalized as failed, and
	// never dispatched.
	configErr string
}

// RunBatch evaluates every active date-driven rule against the current
// member and billing state and dispatches what is eligible today. It returns
// a non-nil error only on infrastructure failure; per-recipient dispatch
// failures land in the Failed bucket.
func (s *Service) RunBatch(ctx context.Context) (Summary, error) {
	today := s.now().In(s.loc)

	rules, err := s.rules.ListActive(ctx)
	if err != nil {
		return Summary{}, err
	}
	dateDriven := rules[:0:0]
	for _, r := range rules {
		if !r.EventTrigger.IsEventDriven() {
			dateDriven = append(dateDriven, r)
		}
	}
	if len(dateDriven) == 0 {
		return Summary{}, nil
	}

	members, err := s.directory.ListActiveMembers(ctx)
	if err != nil {
		return Summary{}, err
	}
	ids := make([]uuid.UUID, len(members))
	for i, m := range members {
		ids[i] = m.ID
	}
	snapshots, err := s.billing.Snapshots(ctx, ids)
	if err != nil {
		return Summary{}, err
	}

	var jobs []dispatchJob
	var preSkipped int
	for _, rule := range dateDriven {
		for _, rec := range resolver.Resolve(rule, members, snapshots) {
			if !eligibleOn(rule, *rec.Billing.NextDueDate, today) {
				continue
			}
			ruleJobs, skipped := s.jobsFor(rule, rec, today)
			jobs = append(jobs, ruleJobs...)
			preSkipped += skipped
		}
	}

	summary, err := s.dispatch(ctx, jobs)
	summary.Skipped += preSkipped
	if err == nil {
		s.log.BatchSummary(summary.Sent, summary.Skipped, summary.Failed)
	}
	return summary, err
}

// HandleUserRegistered dispatches every active user_registered rule for the
// newly registered member.
func (s *Service) HandleUserRegistered(ctx context.Context, ev events.UserRegistered) (Summary, error) {
	return s.runEvent(ctx, repository.TriggerUserRegistered, ev.UserID, 0)
}

// HandlePaymentConfirmed dispatches every active payment_received rule for
// the paying member, rendering the confirmed amount.
func (s *Service) HandlePaymentConfirmed(ctx context.Context, ev events.PaymentConfirmed) (Summary, error) {
	return s.runEvent(ctx, repository.TriggerPaymentReceived, ev.UserID, ev.AmountCents)
}

func (s *Service) runEvent(ctx context.Context, trigger repository.Trigger, userID uuid.UUID, amountCents int64) (Summary, error) {
	rules, err := s.rules.ListActiveByTrigger(ctx, trigger)
	if err != nil {
		return Summary{}, err
	}
	if len(rules) == 0 {
		return Summary{}, nil
	}

	member, err := s.directory.GetMember(ctx, userID)
	if errors.Is(err, ports.ErrMemberNotFound) {
		// Member removed between the event and processing. Nothing to send.
		s.log.Warn("event recipient no longer exists", "userId", userID, "trigger", string(trigger))
		return Summary{}, nil
	}
	if err != nil {
		return Summary{}, err
	}

	snapshots, err := s.billing.Snapshots(ctx, []uuid.UUID{userID})
	if err != nil {
		return Summary{}, err
	}

	today := s.now().In(s.loc)
	var jobs []dispatchJob
	var preSkipped int
	for _, rule := range rules {
		for _, rec := range resolver.Resolve(rule, []ports.Member{member}, snapshots) {
			if amountCents > 0 {
				rec.Billing.AmountCents = amountCents
			}
			ruleJobs, skipped := s.jobsFor(rule, rec, today)
			jobs = append(jobs, ruleJobs...)
			preSkipped += skipped
		}
	}

	summary, err := s.dispatch(ctx, jobs)
	summary.Skipped += preSkipped
	return summary, err
}

// jobsFor renders the rule for one recipient and fans it out over the rule's
// enabled channels. Channels the recipient has no address for, or that no
// dispatcher is configured for, count as skipped.
func (s *Service) jobsFor(rule repository.Rule, rec resolver.Recipient, day time.Time) ([]dispatchJob, int) {
	m := rec.Member

	locale := m.Locale
	if locale == "" {
		locale = s.defaultLocale
	}
	configErr := ""
	if strings.TrimSpace(rule.MessageTemplate) == "" {
		configErr = "rule has an empty message template"
	}
	body := renderTemplate(rule.MessageTemplate, renderContext{
		UserName:    m.Name,
		AmountCents: rec.Billing.AmountCents,
		DueDate:     rec.Billing.NextDueDate,
		PaymentLink: m.PaymentLinkURL,
		ChurchName:  m.ChurchName,
		Locale:      locale,
	})

	// Only reminder emails carry the QR attachment of the payment link.
	paymentLink := ""
	if rule.EventTrigger == repository.TriggerDueReminder {
		paymentLink = m.PaymentLinkURL
	}

	jobs := make([]dispatchJob, 0, 2)
	skipped := 0
	for _, kind := range rule.Channels() {
		recipient := m.Email
		var subject *string
		if kind == channel.KindEmail {
			name := rule.Name
			subject = &name
		}
		if kind == channel.KindWhatsApp {
			recipient = m.Phone
		}
		if recipient == "" {
			skipped++
			continue
		}
		if _, ok := s.dispatchers[kind]; !ok {
			s.log.Warn("no dispatcher configured for channel", "channel", string(kind))
			skipped++
			continue
		}
		jobs = append(jobs, dispatchJob{
			rule:             rule,
			member:           m,
			kind:             kind,
			notificationType: notificationType(rule),
			subject:          subject,
			body:             body,
			paymentLink:      paymentLink,
			sendDate:         day,
			configErr:        configErr,
		})
	}
	return jobs, skipped
}

// dispatch runs the jobs through a bounded worker pool. Infrastructure
// errors (delivery log writes failing) abort the run; channel failures are
// counted and finish the run normally.
func (s *Service) dispatch(ctx context.Context, jobs []dispatchJob) (Summary, error) {
	if len(jobs) == 0 {
		return Summary{}, nil
	}

	var sent, skipped, failed atomic.Int64
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for _, job := range jobs {
		job := job
		g.Go(func() error {
			return s.runJob(ctx, job, &sent, &skipped, &failed)
		})
	}
	err := g.Wait()
	summary := Summary{
		Sent:    int(sent.Load()),
		Skipped: int(skipped.Load()),
		Failed:  int(failed.Load()),
	}
	return summary, err
}

func (s *Service) runJob(ctx context.Context, job dispatchJob, sent, skipped, failed *atomic.Int64) error {
	ruleID := job.rule.ID
	params := repository.AttemptParams{
		RuleID:           &ruleID,
		UserID:           job.member.ID,
		UserEmail:        job.member.Email,
		UserName:         job.member.Name,
		NotificationType: job.notificationType,
		Channel:          job.kind,
		Recipient:        messageRecipient(job),
		Subject:          job.subject,
		MessageContent:   job.body,
		SendDate:         civilDate(job.sendDate),
	}

	// The insert is the dedup gate: a unique violation means this (rule,
	// member, channel) was already attempted today by us or a sibling run.
	attemptID, err := s.deliveryLog.BeginAutomaticAttempt(ctx, params)
	if errors.Is(err, repository.ErrDuplicateSend) {
		skipped.Add(1)
		return nil
	}
	if err != nil {
		return err
	}

	if job.configErr != "" {
		s.log.Warn("rule misconfigured, attempt recorded as failed",
			"ruleId", ruleID, "userId", job.member.ID, "channel", string(job.kind), "reason", job.configErr)
		msg := job.configErr
		if err := s.deliveryLog.FinalizeAttempt(ctx, attemptID, repository.LogStatusFailed, &msg); err != nil {
			return err
		}
		failed.Add(1)
		return nil
	}

	outcome := s.dispatchers[job.kind].Send(ctx, channel.Message{
		To:          params.Recipient,
		Subject:     derefSubject(job.subject),
		Body:        job.body,
		PaymentLink: job.paymentLink,
	})

	status := repository.LogStatusSent
	var errMsg *string
	if outcome.Status == channel.StatusFailed {
		status = repository.LogStatusFailed
		msg := outcome.ErrorMessage
		errMsg = &msg
	}
	if err := s.deliveryLog.FinalizeAttempt(ctx, attemptID, status, errMsg); err != nil {
		return err
	}

	if status == repository.LogStatusSent {
		sent.Add(1)
	} else {
		failed.Add(1)
	}
	return nil
}

// Resend re-dispatches the stored message content of an existing log entry
// over its original channel and appends a manual log row. The dedup gate
// does not apply; operators may resend as often as they like.
func (s *Service) Resend(ctx context.Context, id uuid.UUID) (ResendResult, error) {
	entry, err := s.deliveryLog.GetByID(ctx, id)
	if errors.Is(err, repository.ErrLogNotFound) {
		return ResendResult{}, apperr.NotFound("notification log entry not found").WithOp(opResend)
	}
	if err != nil {
		return ResendResult{}, err
	}

	dispatcher, ok := s.dispatchers[entry.Channel]
	if !ok {
		return ResendResult{}, apperr.BadRequest(fmt.Sprintf("channel %s is not configured", entry.Channel)).WithOp(opResend)
	}

	outcome := dispatcher.Send(ctx, channel.Message{
		To:      entry.Recipient,
		Subject: derefSubject(entry.Subject),
		Body:    entry.MessageContent,
	})

	status := repository.LogStatusSent
	var errMsg *string
	if outcome.Status == channel.StatusFailed {
		status = repository.LogStatusFailed
		msg := outcome.ErrorMessage
		errMsg = &msg
	}

	newID, err := s.deliveryLog.InsertManualAttempt(ctx, repository.AttemptParams{
		RuleID:           entry.RuleID,
		UserID:           entry.UserID,
		UserEmail:        entry.UserEmail,
		UserName:         entry.UserName,
		NotificationType: entry.NotificationType,
		Channel:          entry.Channel,
		Recipient:        entry.Recipient,
		Subject:          entry.Subject,
		MessageContent:   entry.MessageContent,
		SendDate:         civilDate(s.now().In(s.loc)),
	}, status, errMsg)
	if err != nil {
		return ResendResult{}, err
	}

	return ResendResult{LogID: newID, Status: status, ErrorMessage: outcome.ErrorMessage}, nil
}

// ListLogs exposes the filtered, paginated delivery log.
func (s *Service) ListLogs(ctx context.Context, f repository.LogFilter) ([]repository.LogEntry, int, error) {
	return s.deliveryLog.List(ctx, f)
}

// ListRules exposes the rule table read-only for the operator dashboard.
func (s *Service) ListRules(ctx context.Context) ([]repository.Rule, error) {
	return s.rules.List(ctx)
}

func notificationType(rule repository.Rule) string {
	switch rule.EventTrigger {
	case repository.TriggerDueReminder:
		return "rem_" + rule.ID.String()
	case repository.TriggerOverdue:
		return "ovr_" + rule.ID.String()
	case repository.TriggerUserRegistered:
		return "user_registered"
	case repository.TriggerPaymentReceived:
		return "payment_received"
	}
	return string(rule.EventTrigger)
}

func messageRecipient(job dispatchJob) string {
	if job.kind == channel.KindWhatsApp {
		return job.member.Phone
	}
	return job.member.Email
}

func derefSubject(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
