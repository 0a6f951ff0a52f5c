package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"dizimo_backend/internal/automation/ports"
	"dizimo_backend/internal/automation/repository"
	"dizimo_backend/internal/channel"
	"dizimo_backend/internal/events"
	"dizimo_backend/platform/config"
	"dizimo_backend/platform/logger"

	"github.com/google/uuid"
)

// --- fakes ---------------------------------------------------------------

type fakeRuleStore struct {
	rules []repository.Rule
	err   error
}

func (f *fakeRuleStore) ListActive(ctx context.Context) ([]repository.Rule, error) {
	if f.err != nil {
		return nil, f.err
	}
	active := make([]repository.Rule, 0, len(f.rules))
	for _, r := range f.rules {
		if r.IsActive {
			active = append(active, r)
		}
	}
	return active, nil
}

func (f *fakeRuleStore) ListActiveByTrigger(ctx context.Context, trigger repository.Trigger) ([]repository.Rule, error) {
	all, err := f.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	matched := make([]repository.Rule, 0, len(all))
	for _, r := range all {
		if r.EventTrigger == trigger {
			matched = append(matched, r)
		}
	}
	return matched, nil
}

func (f *fakeRuleStore) List(ctx context.Context) ([]repository.Rule, error) {
	return f.rules, f.err
}

type gateKey struct {
	rule uuid.UUID
	user uuid.UUID
	kind channel.Kind
	day  string
}

type fakeDeliveryLog struct {
	mu       sync.Mutex
	entries  map[uuid.UUID]*repository.LogEntry
	gate     map[gateKey]struct{}
	beginErr error
}

func newFakeDeliveryLog() *fakeDeliveryLog {
	return &fakeDeliveryLog{
		entries: make(map[uuid.UUID]*repository.LogEntry),
		gate:    make(map[gateKey]struct{}),
	}
}

func (f *fakeDeliveryLog) keyFor(p repository.AttemptParams) gateKey {
	ruleID := uuid.Nil
	if p.RuleID != nil {
		ruleID = *p.RuleID
	}
	return gateKey{rule: ruleID, user: p.UserID, kind: p.Channel, day: p.SendDate.Format("2006-01-02")}
}

func (f *fakeDeliveryLog) BeginAutomaticAttempt(ctx context.Context, p repository.AttemptParams) (uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.beginErr != nil {
		return uuid.Nil, f.beginErr
	}
	key := f.keyFor(p)
	if _, dup := f.gate[key]; dup {
		return uuid.Nil, repository.ErrDuplicateSend
	}
	f.gate[key] = struct{}{}
	id := uuid.New()
	f.entries[id] = &repository.LogEntry{
		ID:               id,
		RuleID:           p.RuleID,
		UserID:           p.UserID,
		UserEmail:        p.UserEmail,
		UserName:         p.UserName,
		NotificationType: p.NotificationType,
		Channel:          p.Channel,
		Status:           repository.LogStatusPending,
		Origin:           repository.OriginAutomatic,
		Recipient:        p.Recipient,
		Subject:          p.Subject,
		MessageContent:   p.MessageContent,
		SendDate:         p.SendDate,
	}
	return id, nil
}

func (f *fakeDeliveryLog) FinalizeAttempt(ctx context.Context, id uuid.UUID, status repository.LogStatus, errorMessage *string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	entry, ok := f.entries[id]
	if !ok {
		return repository.ErrLogNotFound
	}
	entry.Status = status
	entry.ErrorMessage = errorMessage
	return nil
}

func (f *fakeDeliveryLog) InsertManualAttempt(ctx context.Context, p repository.AttemptParams, status repository.LogStatus, errorMessage *string) (uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := uuid.New()
	f.entries[id] = &repository.LogEntry{
		ID:               id,
		RuleID:           p.RuleID,
		UserID:           p.UserID,
		NotificationType: p.NotificationType,
		Channel:          p.Channel,
		Status:           status,
		Origin:           repository.OriginManual,
		Recipient:        p.Recipient,
		Subject:          p.Subject,
		MessageContent:   p.MessageContent,
		ErrorMessage:     errorMessage,
		SendDate:         p.SendDate,
	}
	return id, nil
}

func (f *fakeDeliveryLog) GetByID(ctx context.Context, id uuid.UUID) (repository.LogEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	entry, ok := f.entries[id]
	if !ok {
		return repository.LogEntry{}, repository.ErrLogNotFound
	}
	return *entry, nil
}

func (f *fakeDeliveryLog) List(ctx context.Context, filter repository.LogFilter) ([]repository.LogEntry, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]repository.LogEntry, 0, len(f.entries))
	for _, e := range f.entries {
		out = append(out, *e)
	}
	return out, len(out), nil
}

func (f *fakeDeliveryLog) countByOrigin(origin repository.LogOrigin) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, e := range f.entries {
		if e.Origin == origin {
			n++
		}
	}
	return n
}

type fakeDirectory struct {
	members []ports.Member
}

func (f *fakeDirectory) ListActiveMembers(ctx context.Context) ([]ports.Member, error) {
	return f.members, nil
}

func (f *fakeDirectory) GetMember(ctx context.Context, id uuid.UUID) (ports.Member, error) {
	for _, m := range f.members {
		if m.ID == id {
			return m, nil
		}
	}
	return ports.Member{}, ports.ErrMemberNotFound
}

type fakeBilling struct {
	snapshots map[uuid.UUID]ports.BillingSnapshot
}

func (f *fakeBilling) Snapshots(ctx context.Context, userIDs []uuid.UUID) (map[uuid.UUID]ports.BillingSnapshot, error) {
	return f.snapshots, nil
}

type fakeDispatcher struct {
	kind channel.Kind
	fail bool

	mu   sync.Mutex
	sent []channel.Message
}

func (f *fakeDispatcher) Kind() channel.Kind { return f.kind }

func (f *fakeDispatcher) Send(ctx context.Context, msg channel.Message) channel.Outcome {
	f.mu.Lock()
	f.sent = append(f.sent, msg)
	f.mu.Unlock()
	if f.fail {
		return channel.Outcome{Status: channel.StatusFailed, ErrorMessage: "provider unavailable"}
	}
	return channel.Outcome{Status: channel.StatusSent}
}

func (f *fakeDispatcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

// --- fixture -------------------------------------------------------------

type fixture struct {
	svc      *Service
	rules    *fakeRuleStore
	logStore *fakeDeliveryLog
	email    *fakeDispatcher
	whatsapp *fakeDispatcher
	member   ports.Member
}

func newFixture(t *testing.T, rules []repository.Rule, members []ports.Member, snapshots map[uuid.UUID]ports.BillingSnapshot) *fixture {
	t.Helper()
	ruleStore := &fakeRuleStore{rules: rules}
	logStore := newFakeDeliveryLog()
	email := &fakeDispatcher{kind: channel.KindEmail}
	whatsapp := &fakeDispatcher{kind: channel.KindWhatsApp}

	cfg := &config.Config{
		Timezone:        "UTC",
		DispatchWorkers: 2,
		DispatchTimeout: time.Second,
		DefaultLocale:   "pt-BR",
	}
	svc, err := NewService(
		ruleStore, logStore,
		&fakeDirectory{members: members},
		&fakeBilling{snapshots: snapshots},
		[]channel.Dispatcher{email, whatsapp},
		cfg, logger.New("development"),
	)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	// Pin the batch day to 2025-03-15.
	svc.now = func() time.Time {
		return time.Date(2025, time.March, 15, 10, 0, 0, 0, time.UTC)
	}

	f := &fixture{svc: svc, rules: ruleStore, logStore: logStore, email: email, whatsapp: whatsapp}
	if len(members) > 0 {
		f.member = members[0]
	}
	return f
}

func reminderRule(offset int, viaEmail, viaWhatsapp bool) repository.Rule {
	return repository.Rule{
		ID:              uuid.New(),
		Name:            "Lembrete de dízimo",
		EventTrigger:    repository.TriggerDueReminder,
		DaysOffset:      offset,
		MessageTemplate: "Olá {nome_usuario}, seu dízimo de {valor_transacao} vence em {data_vencimento}.",
		SendViaEmail:    viaEmail,
		SendViaWhatsapp: viaWhatsapp,
		IsActive:        true,
	}
}

func fullMember() ports.Member {
	return ports.Member{
		ID:             uuid.New(),
		Name:           "Maria Silva",
		Email:          "maria@example.com",
		Phone:          "+5511988887777",
		ChurchName:     "Igreja Central",
		PaymentLinkURL: "https://pay.example.com/maria",
	}
}

func dueOn(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

// --- tests ---------------------------------------------------------------

func TestRunBatchDispatchesEligibleRecipient(t *testing.T) {
	m := fullMember()
	f := newFixture(t,
		[]repository.Rule{reminderRule(5, true, false)},
		[]ports.Member{m},
		map[uuid.UUID]ports.BillingSnapshot{
			m.ID: {NextDueDate: dueOn(2025, time.March, 20), AmountCents: 15000},
		},
	)

	summary, err := f.svc.RunBatch(context.Background())
	if err != nil {
		t.Fatalf("RunBatch: %v", err)
	}
	if summary.Sent != 1 || summary.Skipped != 0 || summary.Failed != 0 {
		t.Fatalf("summary = %+v, want {1 0 0}", summary)
	}
	if f.email.callCount() != 1 {
		t.Fatalf("expected 1 email dispatch, got %d", f.email.callCount())
	}
	msg := f.email.sent[0]
	if !strings.Contains(msg.Body, "Olá Maria Silva") {
		t.Fatalf("rendered body missing user name: %q", msg.Body)
	}
	if msg.PaymentLink != m.PaymentLinkURL {
		t.Fatalf("reminder email must carry the payment link for the QR attachment")
	}
}

func TestRunBatchIsIdempotentWithinTheDay(t *testing.T) {
	m := fullMember()
	f := newFixture(t,
		[]repository.Rule{reminderRule(5, true, true)},
		[]ports.Member{m},
		map[uuid.UUID]ports.BillingSnapshot{
			m.ID: {NextDueDate: dueOn(2025, time.March, 20), AmountCents: 15000},
		},
	)

	first, err := f.svc.RunBatch(context.Background())
	if err != nil {
		t.Fatalf("first RunBatch: %v", err)
	}
	if first.Sent != 2 {
		t.Fatalf("first run sent = %d, want 2", first.Sent)
	}

	second, err := f.svc.RunBatch(context.Background())
	if err != nil {
		t.Fatalf("second RunBatch: %v", err)
	}
	if second.Sent != 0 || second.Skipped != 2 || second.Failed != 0 {
		t.Fatalf("second run summary = %+v, want {0 2 0}", second)
	}
	if f.email.callCount() != 1 || f.whatsapp.callCount() != 1 {
		t.Fatalf("duplicate run must not reach the dispatchers")
	}
}

func TestRunBatchChannelsFailIndependently(t *testing.T) {
	m := fullMember()
	f := newFixture(t,
		[]repository.Rule{reminderRule(5, true, true)},
		[]ports.Member{m},
		map[uuid.UUID]ports.BillingSnapshot{
			m.ID: {NextDueDate: dueOn(2025, time.March, 20), AmountCents: 15000},
		},
	)
	f.email.fail = true

	summary, err := f.svc.RunBatch(context.Background())
	if err != nil {
		t.Fatalf("RunBatch: %v", err)
	}
	if summary.Sent != 1 || summary.Failed != 1 {
		t.Fatalf("summary = %+v, want sent 1 failed 1", summary)
	}

	logs, _, _ := f.logStore.List(context.Background(), repository.LogFilter{})
	statuses := map[channel.Kind]repository.LogStatus{}
	for _, e := range logs {
		statuses[e.Channel] = e.Status
	}
	if statuses[channel.KindEmail] != repository.LogStatusFailed {
		t.Fatalf("email attempt must finalize as failed")
	}
	if statuses[channel.KindWhatsApp] != repository.LogStatusSent {
		t.Fatalf("whatsapp attempt must finalize as sent")
	}
}

func TestRunBatchEmptyTemplateIsLoggedAsFailed(t *testing.T) {
	m := fullMember()
	rule := reminderRule(5, true, true)
	rule.MessageTemplate = "   "
	f := newFixture(t,
		[]repository.Rule{rule},
		[]ports.Member{m},
		map[uuid.UUID]ports.BillingSnapshot{
			m.ID: {NextDueDate: dueOn(2025, time.March, 20), AmountCents: 15000},
		},
	)

	summary, err := f.svc.RunBatch(context.Background())
	if err != nil {
		t.Fatalf("RunBatch: %v", err)
	}
	if summary.Sent != 0 || summary.Failed != 2 {
		t.Fatalf("summary = %+v, want both channels failed", summary)
	}
	if f.email.callCount() != 0 || f.whatsapp.callCount() != 0 {
		t.Fatalf("misconfigured rule must never reach the dispatchers")
	}

	logs, _, _ := f.logStore.List(context.Background(), repository.LogFilter{})
	if len(logs) != 2 {
		t.Fatalf("expected one failed row per channel, got %d", len(logs))
	}
	for _, e := range logs {
		if e.Status != repository.LogStatusFailed {
			t.Fatalf("%s attempt status = %s, want failed", e.Channel, e.Status)
		}
		if e.ErrorMessage == nil || !strings.Contains(*e.ErrorMessage, "empty message template") {
			t.Fatalf("%s attempt must record the configuration error, got %v", e.Channel, e.ErrorMessage)
		}
	}

	// The failed rows occupy the day's slots like any other attempt.
	second, err := f.svc.RunBatch(context.Background())
	if err != nil {
		t.Fatalf("second RunBatch: %v", err)
	}
	if second.Failed != 0 || second.Skipped != 2 {
		t.Fatalf("second run summary = %+v, want {0 2 0}", second)
	}
}

func TestRunBatchFailedAttemptStillBlocksRetrySameDay(t *testing.T) {
	m := fullMember()
	f := newFixture(t,
		[]repository.Rule{reminderRule(5, true, false)},
		[]ports.Member{m},
		map[uuid.UUID]ports.BillingSnapshot{
			m.ID: {NextDueDate: dueOn(2025, time.March, 20), AmountCents: 15000},
		},
	)
	f.email.fail = true

	if _, err := f.svc.RunBatch(context.Background()); err != nil {
		t.Fatalf("first RunBatch: %v", err)
	}
	f.email.fail = false

	second, err := f.svc.RunBatch(context.Background())
	if err != nil {
		t.Fatalf("second RunBatch: %v", err)
	}
	if second.Sent != 0 || second.Skipped != 1 {
		t.Fatalf("failed attempt must still occupy the day's slot, got %+v", second)
	}
}

func TestRunBatchExcludesMembersWithoutDueDate(t *testing.T) {
	m := fullMember()
	f := newFixture(t,
		[]repository.Rule{reminderRule(5, true, false)},
		[]ports.Member{m},
		map[uuid.UUID]ports.BillingSnapshot{}, // no billing rows at all
	)

	summary, err := f.svc.RunBatch(context.Background())
	if err != nil {
		t.Fatalf("RunBatch: %v", err)
	}
	if summary != (Summary{}) {
		t.Fatalf("member without due date must not appear in any bucket, got %+v", summary)
	}
	if f.email.callCount() != 0 {
		t.Fatalf("nothing should have been dispatched")
	}
}

func TestRunBatchSkipsChannelWithoutContact(t *testing.T) {
	m := fullMember()
	m.Phone = ""
	f := newFixture(t,
		[]repository.Rule{reminderRule(5, true, true)},
		[]ports.Member{m},
		map[uuid.UUID]ports.BillingSnapshot{
			m.ID: {NextDueDate: dueOn(2025, time.March, 20), AmountCents: 15000},
		},
	)

	summary, err := f.svc.RunBatch(context.Background())
	if err != nil {
		t.Fatalf("RunBatch: %v", err)
	}
	if summary.Sent != 1 || summary.Skipped != 1 {
		t.Fatalf("summary = %+v, want email sent and whatsapp skipped", summary)
	}
	if f.whatsapp.callCount() != 0 {
		t.Fatalf("whatsapp dispatcher must not be called without a phone")
	}
}

func TestRunBatchAbortsOnLogStoreFailure(t *testing.T) {
	m := fullMember()
	f := newFixture(t,
		[]repository.Rule{reminderRule(5, true, false)},
		[]ports.Member{m},
		map[uuid.UUID]ports.BillingSnapshot{
			m.ID: {NextDueDate: dueOn(2025, time.March, 20), AmountCents: 15000},
		},
	)
	f.logStore.beginErr = errors.New("connection refused")

	if _, err := f.svc.RunBatch(context.Background()); err == nil {
		t.Fatalf("log store failure must abort the batch")
	}
}

func TestRunBatchEmptyRuleSetIsZeroSummary(t *testing.T) {
	f := newFixture(t, nil, nil, nil)

	summary, err := f.svc.RunBatch(context.Background())
	if err != nil {
		t.Fatalf("RunBatch: %v", err)
	}
	if summary != (Summary{}) {
		t.Fatalf("empty rule set must yield an all-zero summary, got %+v", summary)
	}
}

func TestHandlePaymentConfirmedRendersEventAmount(t *testing.T) {
	m := fullMember()
	rule := repository.Rule{
		ID:              uuid.New(),
		Name:            "Pagamento recebido",
		EventTrigger:    repository.TriggerPaymentReceived,
		MessageTemplate: "Obrigado {nome_usuario}! Recebemos {valor_transacao}.",
		SendViaEmail:    true,
		IsActive:        true,
	}
	f := newFixture(t, []repository.Rule{rule}, []ports.Member{m}, nil)

	summary, err := f.svc.HandlePaymentConfirmed(context.Background(), events.PaymentConfirmed{
		UserID:      m.ID,
		AmountCents: 25050,
		PaidAt:      time.Now(),
	})
	if err != nil {
		t.Fatalf("HandlePaymentConfirmed: %v", err)
	}
	if summary.Sent != 1 {
		t.Fatalf("summary = %+v, want 1 sent", summary)
	}
	body := f.email.sent[0].Body
	if !strings.Contains(body, "250") {
		t.Fatalf("event amount not rendered into the template: %q", body)
	}
}

func TestHandleUserRegisteredUnknownMemberIsNoop(t *testing.T) {
	rule := repository.Rule{
		ID:              uuid.New(),
		Name:            "Boas-vindas",
		EventTrigger:    repository.TriggerUserRegistered,
		MessageTemplate: "Bem-vindo {nome_usuario}!",
		SendViaEmail:    true,
		IsActive:        true,
	}
	f := newFixture(t, []repository.Rule{rule}, nil, nil)

	summary, err := f.svc.HandleUserRegistered(context.Background(), events.UserRegistered{UserID: uuid.New()})
	if err != nil {
		t.Fatalf("missing member must not error: %v", err)
	}
	if summary != (Summary{}) {
		t.Fatalf("missing member must yield a zero summary, got %+v", summary)
	}
}

func TestResendBypassesDedupGate(t *testing.T) {
	m := fullMember()
	f := newFixture(t,
		[]repository.Rule{reminderRule(5, true, false)},
		[]ports.Member{m},
		map[uuid.UUID]ports.BillingSnapshot{
			m.ID: {NextDueDate: dueOn(2025, time.March, 20), AmountCents: 15000},
		},
	)

	if _, err := f.svc.RunBatch(context.Background()); err != nil {
		t.Fatalf("RunBatch: %v", err)
	}
	logs, _, _ := f.logStore.List(context.Background(), repository.LogFilter{})
	if len(logs) != 1 {
		t.Fatalf("expected 1 automatic log row, got %d", len(logs))
	}
	original := logs[0]

	for i := 0; i < 2; i++ {
		result, err := f.svc.Resend(context.Background(), original.ID)
		if err != nil {
			t.Fatalf("Resend %d: %v", i, err)
		}
		if result.Status != repository.LogStatusSent {
			t.Fatalf("Resend %d status = %s", i, result.Status)
		}
	}

	if n := f.logStore.countByOrigin(repository.OriginManual); n != 2 {
		t.Fatalf("expected 2 manual rows, got %d", n)
	}
	if f.email.callCount() != 3 {
		t.Fatalf("expected original + 2 resends = 3 dispatches, got %d", f.email.callCount())
	}

	// Resends reuse the stored content byte for byte.
	last := f.email.sent[len(f.email.sent)-1]
	if last.Body != original.MessageContent {
		t.Fatalf("resend body diverged from stored content")
	}
}

func TestResendUnknownLogEntry(t *testing.T) {
	f := newFixture(t, nil, nil, nil)

	if _, err := f.svc.Resend(context.Background(), uuid.New()); err == nil {
		t.Fatalf("resend of a missing log entry must fail")
	}
}
