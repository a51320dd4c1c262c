// Package model holds the scheduling domain types shared across the service.
package model

import "time"

// Appointment is a booked interval on a provider's calendar. EndTime is
// always derived from the service duration at write time, never stored
// independently of it.
type Appointment struct {
	ID           string
	ProviderID   string
	ServiceID    string
	StartTime    time.Time
	EndTime      time.Time
	Status       Status
	ClientName   string
	ClientEmail  string
	ClientPhone  string
	Notes        string
	CustomFields map[string]any
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Service is the bookable offering. The scheduling engine only reads it;
// service management lives outside this service.
type Service struct {
	ID              string
	ProviderID      string
	Name            string
	DurationMinutes int
	IsActive        bool
}

func (s Service) Duration() time.Duration {
	return time.Duration(s.DurationMinutes) * time.Minute
}

// Provider carries the subset of a provider account the engine needs.
type Provider struct {
	ID    string
	Plan  Plan
	Hours WorkingHours
}

type Plan string

const (
	PlanFree  Plan = "free"
	PlanBasic Plan = "basic"
	PlanPro   Plan = "pro"
)

func ParsePlan(s string) (Plan, bool) {
	switch Plan(s) {
	case PlanFree, PlanBasic, PlanPro:
		return Plan(s), true
	}
	return "", false
}
