package service

import (
	"time"

	"dizimo_backend/internal/automation/repository"
)

// normalizeOffset treats the rule offset as a magnitude; the trigger kind
// decides the direction. Admin UIs have stored both "5" and "-5" for "five
// days before" over time.
func normalizeOffset(days int) int {
	if days < 0 {
		return -days
	}
	return days
}

// targetSendDate returns the calendar day a date-driven rule fires for the
// given due date. Event-driven rules have no send window; ok is false.
// Due dates are date-only values; the offset is applied with AddDate so
// month boundaries and DST transitions cannot shift the day.
func targetSendDate(rule repository.Rule, dueDate time.Time) (time.Time, bool) {
	offset := normalizeOffset(rule.DaysOffset)
	switch rule.EventTrigger {
	case repository.TriggerDueReminder:
		return dueDate.AddDate(0, 0, -offset), true
	case repository.TriggerOverdue:
		return dueDate.AddDate(0, 0, offset), true
	}
	return time.Time{}, false
}

// sameCalendarDay compares the civil dates of a and b, ignoring wall clock
// and location. Callers must already have shifted "now" into the operator
// timezone; due dates are compared as stored.
func sameCalendarDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// eligibleOn reports whether the rule fires for dueDate on the given day.
// Exactly one day matches per (rule, due date): the window does not stretch.
func eligibleOn(rule repository.Rule, dueDate, day time.Time) bool {
	target, ok := targetSendDate(rule, dueDate)
	if !ok {
		return false
	}
	return sameCalendarDay(target, day)
}

// civilDate collapses t to midnight UTC of its calendar date, the value
// stored in the send_date column.
func civilDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
