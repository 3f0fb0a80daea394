package domain

import "time"

// ============================================================
// Planner
// ============================================================

// EventType is the kind of appointment on the planner.
type EventType string

const (
	EventMeasurement EventType = "Site Measurement"
	EventDesign      EventType = "Design Appointment"
	EventDelivery    EventType = "Delivery"
	EventInstall     EventType = "Installation"
	EventService     EventType = "Service"
	EventInternal    EventType = "Internal Task"
)

// Valid reports whether t is a known event type.
func (t EventType) Valid() bool {
	switch t {
	case EventMeasurement, EventDesign, EventDelivery, EventInstall, EventService, EventInternal:
		return true
	}
	return false
}

// EventStatus is the state of a planner event.
type EventStatus string

const (
	EventScheduled   EventStatus = "Scheduled"
	EventCompleted   EventStatus = "Completed"
	EventCancelled   EventStatus = "Cancelled"
	EventRescheduled EventStatus = "Rescheduled"
)

// Valid reports whether s is a known event status.
func (s EventStatus) Valid() bool {
	switch s {
	case EventScheduled, EventCompleted, EventCancelled, EventRescheduled:
		return true
	}
	return false
}

// PlannerEvent is a scheduled appointment. Date is a calendar date
// (YYYY-MM-DD) and Time an optional wall-clock time (HH:MM).
type PlannerEvent struct {
	Meta
	Type         EventType   `json:"type"`
	CustomerID   string      `json:"customerId,omitempty"`
	CustomerName string      `json:"customerName,omitempty"`
	Date         string      `json:"date"`
	Time         string      `json:"time,omitempty"`
	Address      string      `json:"address"`
	AssignedTo   string      `json:"assignedTo,omitempty"`
	Notes        string      `json:"notes"`
	Status       EventStatus `json:"status"`
}

func (PlannerEvent) Kind() Kind { return KindPlanner }

// SortTime is the scheduled instant; unparsable dates sort first.
func (e PlannerEvent) SortTime() time.Time {
	day, err := ParseEventDate(e.Date)
	if err != nil {
		return time.Time{}
	}
	if e.Time != "" {
		if clock, err := time.Parse("15:04", e.Time); err == nil {
			day = day.Add(time.Duration(clock.Hour())*time.Hour + time.Duration(clock.Minute())*time.Minute)
		}
	}
	return day
}

// ParseEventDate accepts a calendar date or a full RFC 3339 timestamp.
func ParseEventDate(s string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}
