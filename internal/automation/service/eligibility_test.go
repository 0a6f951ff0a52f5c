package service

import (
	"testing"
	"time"

	"dizimo_backend/internal/automation/repository"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestEligibleOnDueReminderWindow(t *testing.T) {
	rule := repository.Rule{
		EventTrigger: repository.TriggerDueReminder,
		DaysOffset:   5,
	}
	due := day(2025, time.March, 20)

	tests := []struct {
		name string
		day  time.Time
		want bool
	}{
		{"five days before due", day(2025, time.March, 15), true},
		{"four days before due", day(2025, time.March, 16), false},
		{"six days before due", day(2025, time.March, 14), false},
		{"due date itself", day(2025, time.March, 20), false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := eligibleOn(rule, due, tc.day); got != tc.want {
				t.Fatalf("eligibleOn(%s) = %v, want %v", tc.day.Format("2006-01-02"), got, tc.want)
			}
		})
	}
}

func TestEligibleOnOverdueWindow(t *testing.T) {
	rule := repository.Rule{
		EventTrigger: repository.TriggerOverdue,
		DaysOffset:   3,
	}
	due := day(2025, time.March, 20)

	if !eligibleOn(rule, due, day(2025, time.March, 23)) {
		t.Fatalf("overdue rule with offset 3 must fire three days after the due date")
	}
	if eligibleOn(rule, due, day(2025, time.March, 20)) {
		t.Fatalf("overdue rule must not fire on the due date")
	}
	if eligibleOn(rule, due, day(2025, time.March, 24)) {
		t.Fatalf("overdue rule must fire on exactly one day")
	}
}

func TestEligibleOnNegativeOffsetNormalized(t *testing.T) {
	rule := repository.Rule{
		EventTrigger: repository.TriggerDueReminder,
		DaysOffset:   -5,
	}
	due := day(2025, time.March, 20)

	if !eligibleOn(rule, due, day(2025, time.March, 15)) {
		t.Fatalf("offset -5 must behave like offset 5 for reminders")
	}
}

func TestEligibleOnZeroOffsetFiresOnDueDate(t *testing.T) {
	reminder := repository.Rule{EventTrigger: repository.TriggerDueReminder, DaysOffset: 0}
	overdue := repository.Rule{EventTrigger: repository.TriggerOverdue, DaysOffset: 0}
	due := day(2025, time.March, 20)

	if !eligibleOn(reminder, due, due) || !eligibleOn(overdue, due, due) {
		t.Fatalf("offset 0 must fire on the due date for both trigger kinds")
	}
}

func TestEligibleOnMonthBoundary(t *testing.T) {
	rule := repository.Rule{
		EventTrigger: repository.TriggerDueReminder,
		DaysOffset:   5,
	}
	due := day(2025, time.March, 3)

	if !eligibleOn(rule, due, day(2025, time.February, 26)) {
		t.Fatalf("offset arithmetic must cross month boundaries")
	}
}

func TestEligibleOnEventTriggersNeverDateEligible(t *testing.T) {
	for _, trigger := range []repository.Trigger{repository.TriggerUserRegistered, repository.TriggerPaymentReceived} {
		rule := repository.Rule{EventTrigger: trigger, DaysOffset: 5}
		if eligibleOn(rule, day(2025, time.March, 20), day(2025, time.March, 15)) {
			t.Fatalf("%s must not participate in date-driven eligibility", trigger)
		}
	}
}

func TestCivilDateCollapsesToMidnightUTC(t *testing.T) {
	saoPaulo := time.FixedZone("America/Sao_Paulo", -3*3600)
	late := time.Date(2025, time.March, 15, 23, 30, 0, 0, saoPaulo)

	got := civilDate(late)
	want := day(2025, time.March, 15)
	if !got.Equal(want) {
		t.Fatalf("civilDate(%v) = %v, want %v", late, got, want)
	}
}
