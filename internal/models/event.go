package models

import (
	"time"

	"github.com/google/uuid"
)

type FaceEventType string

const (
	EventRegistered FaceEventType = "face_registered"
	EventVerified   FaceEventType = "face_verified"
)

// FaceEvent is published after a successful registration or verification.
type FaceEvent struct {
	ID         uuid.UUID     `json:"id" db:"id"`
	Type       FaceEventType `json:"type" db:"type"`
	EmployeeID string        `json:"employee_id" db:"employee_id"`
	Match      *bool         `json:"match,omitempty" db:"match"`
	Distance   *float64      `json:"distance,omitempty" db:"distance"`
	Threshold  *float64      `json:"threshold,omitempty" db:"threshold"`
	Timestamp  time.Time     `json:"timestamp" db:"timestamp"`
}

func NewRegisteredEvent(employeeID string, at time.Time) FaceEvent {
	return FaceEvent{
		ID:         uuid.New(),
		Type:       EventRegistered,
		EmployeeID: employeeID,
		Timestamp:  at,
	}
}

func NewVerifiedEvent(employeeID string, match bool, distance, threshold float64, at time.Time) FaceEvent {
	return FaceEvent{
		ID:         uuid.New(),
		Type:       EventVerified,
		EmployeeID: employeeID,
		Match:      &match,
		Distance:   &distance,
		Threshold:  &threshold,
		Timestamp:  at,
	}
}
