package model

import (
	"net/http"
)

type PolarSetClientRequest struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
}

type PolarSetClientResponse struct{}

type PolarSetStateRequest struct {
	State string `json:"state"`
}

type PolarSetStateResponse struct{}

type PolarLinkRequest struct {
	State string `json:"state"`
	Code  string `json:"code"`
}

type PolarLinkResponse struct {
	UserID string `json:"user_id"`
}

type PolarUnlinkRequest struct{}

type PolarUnlinkResponse struct{}

// PolarWebhookRequest binds itself so the handler receives the exact raw
// bytes the signature was computed over.
type PolarWebhookRequest struct {
	Signature string
	Event     string
	RawBody   []byte
}

func (r *PolarWebhookRequest) Bind(req *http.Request, body []byte) error {
	r.Signature = req.Header.Get("Polar-Webhook-Signature")
	r.Event = req.Header.Get("Polar-Webhook-Event")
	r.RawBody = body
	return nil
}

type PolarWebhookResponse struct {
	Detail string `json:"detail"`
}

// PolarWebhookPayload is the parsed webhook body. Unknown extra fields are
// allowed and ignored.
type PolarWebhookPayload struct {
	Event     string  `json:"event"`
	UserID    *int64  `json:"user_id"`
	EntityID  *string `json:"entity_id"`
	Timestamp string  `json:"timestamp"`
	URL       string  `json:"url"`
	Date      string  `json:"date"`
}

// ExerciseNotification is the pack published for background processing of an
// EXERCISE webhook.
type ExerciseNotification struct {
	PolarUserID int64  `json:"polar_user_id"`
	ExerciseID  string `json:"exercise_id"`
	URL         string `json:"url,omitempty"`
}

// ActivityCreatedEvent is emitted on the notification topic after an import.
type ActivityCreatedEvent struct {
	UserID     string `json:"user_id"`
	ActivityID string `json:"activity_id"`
	Source     string `json:"source"`
}
