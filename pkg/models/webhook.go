package models

// WebhookPayload represents the incoming JSON payload from WhatsApp
type WebhookPayload struct {
	Object string `json:"object"`
	Entry  []struct {
		ID      string `json:"id"`
		Changes []struct {
			Value struct {
				MessagingProduct string `json:"messaging_product"`
				Metadata         struct {
					DisplayPhoneNumber string `json:"display_phone_number"`
					PhoneNumberID      string `json:"phone_number_id"`
				} `json:"metadata"`
				Contacts []struct {
					Profile struct {
						Name string `json:"name"`
					} `json:"profile"`
					WaID string `json:"wa_id"`
				} `json:"contacts,omitempty"`
				Messages []IncomingMessage `json:"messages,omitempty"`
				Statuses []struct {
					ID          string `json:"id"`
					Status      string `json:"status"`
					Timestamp   string `json:"timestamp"`
					RecipientId string `json:"recipient_id"`
				} `json:"statuses,omitempty"`
			} `json:"value"`
			Field string `json:"field"`
		} `json:"changes"`
	} `json:"entry"`
}

// MediaMessage represents a media attachment in a WhatsApp message
type MediaMessage struct {
	ID       string `json:"id"`
	MimeType string `json:"mime_type"`
	SHA256   string `json:"sha256,omitempty"`
	Caption  string `json:"caption,omitempty"`
	Filename string `json:"filename,omitempty"`
}

// IncomingMessage is a single inbound message inside a webhook change.
type IncomingMessage struct {
	From      string `json:"from"`
	ID        string `json:"id"`
	Timestamp string `json:"timestamp"`
	Text      struct {
		Body string `json:"body"`
	} `json:"text,omitempty"`
	Image    *MediaMessage `json:"image,omitempty"`
	Video    *MediaMessage `json:"video,omitempty"`
	Audio    *MediaMessage `json:"audio,omitempty"`
	Document *MediaMessage `json:"document,omitempty"`
	Type     string        `json:"type"`
}

// Content flattens the message into the string stored on the message record.
// Media messages become "[type]:id[:caption]".
func (m IncomingMessage) Content() string {
	switch m.Type {
	case "text":
		return m.Text.Body
	case "image":
		return mediaContent("image", m.Image, true)
	case "video":
		return mediaContent("video", m.Video, true)
	case "audio":
		return mediaContent("audio", m.Audio, false)
	case "document":
		if m.Document == nil {
			return ""
		}
		content := "[document]:" + m.Document.ID
		if m.Document.Filename != "" {
			content += ":" + m.Document.Filename
		}
		return content
	default:
		return "[" + m.Type + "]"
	}
}

func mediaContent(kind string, media *MediaMessage, withCaption bool) string {
	if media == nil {
		return ""
	}
	content := "[" + kind + "]:" + media.ID
	if withCaption && media.Caption != "" {
		content += ":" + media.Caption
	}
	return content
}
