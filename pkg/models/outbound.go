package models

import "github.com/go-playground/validator/v10"

var validate = validator.New()

// OutboundMessage is the transport-facing view of an outgoing message record.
// It is what gets handed to the WhatsApp client directly or published to the
// outbound queue for the worker.
type OutboundMessage struct {
	MessageID string `json:"message_id" validate:"required"`
	UserID    string `json:"user_id" validate:"required"`
	To        string `json:"to" validate:"required"`
	Type      string `json:"type" validate:"omitempty,oneof=text image video audio document"`
	Content   string `json:"content,omitempty"`
	MediaURL  string `json:"media_url,omitempty"`
	Caption   string `json:"caption,omitempty"`
}

// Validate checks the fields every transport relies on.
func (m *OutboundMessage) Validate() error {
	return validate.Struct(m)
}

// DeliveryResult is what the transport reports back for an accepted send.
type DeliveryResult struct {
	ExternalID string `json:"external_id,omitempty"`
	Queued     bool   `json:"queued,omitempty"`
}
