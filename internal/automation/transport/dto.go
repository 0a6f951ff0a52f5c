// Package transport defines the request and response shapes of the
// automation engine's HTTP surface.
package transport

import (
	"strings"
	"time"

	"dizimo_backend/internal/automation/repository"
)

// ListLogsQuery binds the delivery log listing filters.
type ListLogsQuery struct {
	Search     string `form:"search" validate:"omitempty,max=200"`
	Channel    string `form:"channel" validate:"omitempty,oneof=email whatsapp"`
	Status     string `form:"status" validate:"omitempty,oneof=pending sent failed"`
	TypePrefix string `form:"typePrefix" validate:"omitempty,max=50"`
	From       string `form:"from" validate:"omitempty,datetime=2006-01-02"`
	To         string `form:"to" validate:"omitempty,datetime=2006-01-02"`
	Page       int    `form:"page,default=1" validate:"omitempty,min=1"`
	Limit      int    `form:"limit,default=20" validate:"omitempty,min=1,max=100"`
}

// ToFilter converts the validated query into a repository filter. The `to`
// bound is inclusive of its whole day.
func (q ListLogsQuery) ToFilter() repository.LogFilter {
	f := repository.LogFilter{
		Search:     strings.TrimSpace(q.Search),
		Channel:    q.Channel,
		Status:     q.Status,
		TypePrefix: strings.TrimSpace(q.TypePrefix),
		Page:       q.Page,
		Limit:      q.Limit,
	}
	if q.From != "" {
		if from, err := time.Parse("2006-01-02", q.From); err == nil {
			f.From = &from
		}
	}
	if q.To != "" {
		if to, err := time.Parse("2006-01-02", q.To); err == nil {
			end := to.AddDate(0, 0, 1).Add(-time.Nanosecond)
			f.To = &end
		}
	}
	return f
}

// ListLogsResponse is one page of the delivery log.
type ListLogsResponse struct {
	Items []repository.LogEntry `json:"items"`
	Total int                   `json:"total"`
	Page  int                   `json:"page"`
	Limit int                   `json:"limit"`
}

// ResendResponse reports the outcome of an operator resend.
type ResendResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// ListRulesResponse wraps the read-only rule listing.
type ListRulesResponse struct {
	Items []repository.Rule `json:"items"`
}
