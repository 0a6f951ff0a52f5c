package resolver

import (
	"testing"
	"time"

	"dizimo_backend/internal/automation/ports"
	"dizimo_backend/internal/automation/repository"

	"github.com/google/uuid"
)

func member(name, email, phone string) ports.Member {
	return ports.Member{
		ID:    uuid.New(),
		Name:  name,
		Email: email,
		Phone: phone,
	}
}

func TestResolveDropsUnreachableMembers(t *testing.T) {
	rule := repository.Rule{
		EventTrigger: repository.TriggerUserRegistered,
		SendViaEmail: true,
	}

	reachable := member("Ana", "ana@example.com", "")
	noContact := member("Bruno", "", "+5511999990000") // whatsapp disabled on this rule

	got := Resolve(rule, []ports.Member{reachable, noContact}, nil)
	if len(got) != 1 {
		t.Fatalf("expected 1 recipient, got %d", len(got))
	}
	if got[0].Member.ID != reachable.ID {
		t.Fatalf("expected %s to be resolved, got %s", reachable.Name, got[0].Member.Name)
	}
}

func TestResolveWhatsappOnlyRule(t *testing.T) {
	rule := repository.Rule{
		EventTrigger:    repository.TriggerUserRegistered,
		SendViaWhatsapp: true,
	}

	emailOnly := member("Carla", "carla@example.com", "")
	withPhone := member("Davi", "", "+5511988887777")

	got := Resolve(rule, []ports.Member{emailOnly, withPhone}, nil)
	if len(got) != 1 || got[0].Member.ID != withPhone.ID {
		t.Fatalf("expected only the member with a phone, got %d recipients", len(got))
	}
}

func TestResolveDedupesByMemberID(t *testing.T) {
	rule := repository.Rule{
		EventTrigger: repository.TriggerUserRegistered,
		SendViaEmail: true,
	}

	m := member("Elisa", "elisa@example.com", "")

	got := Resolve(rule, []ports.Member{m, m, m}, nil)
	if len(got) != 1 {
		t.Fatalf("expected duplicates collapsed to 1 recipient, got %d", len(got))
	}
}

func TestResolveDateDrivenRequiresDueDate(t *testing.T) {
	rule := repository.Rule{
		EventTrigger: repository.TriggerDueReminder,
		DaysOffset:   5,
		SendViaEmail: true,
	}

	withDue := member("Fábio", "fabio@example.com", "")
	withoutDue := member("Gabi", "gabi@example.com", "")

	due := time.Date(2025, 3, 20, 0, 0, 0, 0, time.UTC)
	snapshots := map[uuid.UUID]ports.BillingSnapshot{
		withDue.ID: {NextDueDate: &due, AmountCents: 15000},
	}

	got := Resolve(rule, []ports.Member{withDue, withoutDue}, snapshots)
	if len(got) != 1 {
		t.Fatalf("expected 1 recipient, got %d", len(got))
	}
	if got[0].Member.ID != withDue.ID {
		t.Fatalf("member without a due date must be excluded from date-driven rules")
	}
	if got[0].Billing.NextDueDate == nil || !got[0].Billing.NextDueDate.Equal(due) {
		t.Fatalf("billing snapshot not carried through resolution")
	}
}

func TestResolveEventDrivenIgnoresMissingSnapshot(t *testing.T) {
	rule := repository.Rule{
		EventTrigger: repository.TriggerPaymentReceived,
		SendViaEmail: true,
	}

	m := member("Heitor", "heitor@example.com", "")

	got := Resolve(rule, []ports.Member{m}, nil)
	if len(got) != 1 {
		t.Fatalf("event-driven rules must not require billing data, got %d recipients", len(got))
	}
}
