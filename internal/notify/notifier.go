// Package notify dispatches booking lifecycle events to interested
// consumers. Delivery is best effort: a booking must never fail or roll
// back because its notification did.
package notify

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/mindmate/scheduling/pkg/logging"
)

type EventType string

const (
	EventHoldCreated            EventType = "hold.created"
	EventHoldExpired            EventType = "hold.expired"
	EventAppointmentScheduled   EventType = "appointment.scheduled"
	EventAppointmentConfirmed   EventType = "appointment.confirmed"
	EventAppointmentCancelled   EventType = "appointment.cancelled"
	EventAppointmentRescheduled EventType = "appointment.rescheduled"
	EventAppointmentCompleted   EventType = "appointment.completed"
)

type Event struct {
	Type          EventType
	AppointmentID uuid.UUID
	SlotID        uuid.UUID
	PatientID     uuid.UUID
	SpecialistID  uuid.UUID
	At            time.Time
	Detail        string
}

// Notifier delivers events. Implementations must swallow their own
// failures (log and move on).
type Notifier interface {
	Publish(ctx context.Context, ev Event)
}

// LogNotifier writes events to the log. It is the fallback when no
// external sink is configured.
type LogNotifier struct {
	logger *logging.Logger
}

func NewLogNotifier(logger *logging.Logger) *LogNotifier {
	if logger == nil {
		logger = logging.Default()
	}
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Publish(ctx context.Context, ev Event) {
	n.logger.Info("booking event",
		"type", string(ev.Type),
		"appointment_id", ev.AppointmentID,
		"slot_id", ev.SlotID,
		"patient_id", ev.PatientID,
		"specialist_id", ev.SpecialistID,
		"detail", ev.Detail,
	)
}
