package models

import "slices"

// NsLcmOperationOccurrenceNotification is the notification type emitted for
// every observed operation state change.
const NsLcmOperationOccurrenceNotification = "NsLcmOperationOccurrenceNotification"

// Subscription registers a callback for the notifications of one NS instance.
//
// Example:
//
//	sub := &Subscription{
//	    NsInstanceID:      "ns-1",
//	    NotificationTypes: []string{NsLcmOperationOccurrenceNotification},
//	    CallbackURI:       "https://consumer.example.com/callback",
//	}
type Subscription struct {
	// ID is assigned by the repository on creation.
	ID string `json:"id"`

	// OrchestratorID is the orchestrator the subscription was created under.
	OrchestratorID string `json:"nfvoId,omitempty"`

	// NsInstanceID is the NS instance whose events are delivered.
	NsInstanceID string `json:"nsInstanceId" validate:"required"`

	// NotificationTypes filters the delivered notification types.
	NotificationTypes []string `json:"notificationTypes" validate:"required,min=1,dive,required"`

	// CallbackURI receives the notifications via HTTP POST.
	CallbackURI string `json:"callbackUri" validate:"required,url"`
}

// Accepts reports whether the subscription wants notificationType.
func (s *Subscription) Accepts(notificationType string) bool {
	return slices.Contains(s.NotificationTypes, notificationType)
}

// Notification is the event delivered to subscribers.
type Notification struct {
	NsInstanceID     string `json:"nsInstanceId" validate:"required"`
	NsLcmOpOccID     string `json:"nsLcmOpOccId,omitempty"`
	Operation        string `json:"operation" validate:"required"`
	NotificationType string `json:"notificationType"`
	Timestamp        string `json:"timestamp,omitempty"`
	OperationState   string `json:"operationState" validate:"required"`
}
