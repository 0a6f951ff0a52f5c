package transport

import (
	"testing"
	"time"
)

func TestToFilterParsesDateRange(t *testing.T) {
	q := ListLogsQuery{From: "2025-03-01", To: "2025-03-31", Page: 2, Limit: 50}
	f := q.ToFilter()

	if f.From == nil || !f.From.Equal(time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("from bound wrong: %v", f.From)
	}
	if f.To == nil || f.To.Before(time.Date(2025, time.March, 31, 23, 59, 59, 0, time.UTC)) {
		t.Fatalf("to bound must cover the whole day: %v", f.To)
	}
	if f.Page != 2 || f.Limit != 50 {
		t.Fatalf("pagination not carried: page=%d limit=%d", f.Page, f.Limit)
	}
}

func TestToFilterTrimsSearch(t *testing.T) {
	q := ListLogsQuery{Search: "  maria  ", TypePrefix: " rem_ "}
	f := q.ToFilter()
	if f.Search != "maria" || f.TypePrefix != "rem_" {
		t.Fatalf("search terms not trimmed: %q %q", f.Search, f.TypePrefix)
	}
}

func TestToFilterEmptyDatesStayNil(t *testing.T) {
	f := ListLogsQuery{}.ToFilter()
	if f.From != nil || f.To != nil {
		t.Fatalf("empty dates must stay nil")
	}
}
