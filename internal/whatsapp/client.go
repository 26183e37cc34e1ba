package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"chatflow/internal/config"
	"chatflow/internal/models"
	pkgmodels "chatflow/pkg/models"
)

// Client talks to the WhatsApp Cloud API messages endpoint.
type Client struct {
	baseURL       string
	token         string
	phoneNumberID string
	http          *http.Client
}

func NewClient(cfg *config.Config) *Client {
	return &Client{
		baseURL:       strings.TrimRight(cfg.WhatsAppAPIURL, "/"),
		token:         cfg.WhatsAppToken,
		phoneNumberID: cfg.PhoneNumberID,
		http:          &http.Client{Timeout: 15 * time.Second},
	}
}

// --- Message Structures ---

type GenericMessage struct {
	MessagingProduct string    `json:"messaging_product"`
	To               string    `json:"to"`
	Type             string    `json:"type"`
	RecipientType    string    `json:"recipient_type,omitempty"`
	Text             *TextObj  `json:"text,omitempty"`
	Image            *MediaObj `json:"image,omitempty"`
	Video            *MediaObj `json:"video,omitempty"`
	Audio            *MediaObj `json:"audio,omitempty"`
	Document         *MediaObj `json:"document,omitempty"`
}

type TextObj struct {
	Body       string `json:"body"`
	PreviewUrl bool   `json:"preview_url,omitempty"`
}

type MediaObj struct {
	ID      string `json:"id,omitempty"`
	Link    string `json:"link,omitempty"`
	Caption string `json:"caption,omitempty"`
}

type sendResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
}

// --- Helper Functions ---

func (c *Client) sendRequest(ctx context.Context, method, url string, body interface{}) ([]byte, error) {
	var bodyReader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		bodyReader = bytes.NewBuffer(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= 400 {
		return respBody, fmt.Errorf("API error: %s - %s", resp.Status, string(respBody))
	}
	return respBody, nil
}

// --- Messaging Methods ---

// SendRawMessage posts msg and returns the message id WhatsApp assigned.
func (c *Client) SendRawMessage(ctx context.Context, msg GenericMessage) (string, error) {
	if c.phoneNumberID == "" {
		return "", fmt.Errorf("whatsapp phone number id is not configured")
	}
	url := fmt.Sprintf("%s/%s/messages", c.baseURL, c.phoneNumberID)
	raw, err := c.sendRequest(ctx, http.MethodPost, url, msg)
	if err != nil {
		return "", err
	}

	var resp sendResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", fmt.Errorf("decode send response: %w", err)
	}
	if len(resp.Messages) == 0 {
		return "", nil
	}
	return resp.Messages[0].ID, nil
}

func (c *Client) SendText(ctx context.Context, to, body string) (string, error) {
	return c.SendRawMessage(ctx, GenericMessage{
		MessagingProduct: "whatsapp",
		To:               to,
		Type:             string(models.MessageText),
		Text:             &TextObj{Body: body},
	})
}

// SendMedia sends an image, video, audio or document by public link.
func (c *Client) SendMedia(ctx context.Context, to string, mediaType models.MessageType, link, caption string) (string, error) {
	msg := GenericMessage{
		MessagingProduct: "whatsapp",
		To:               to,
		Type:             string(mediaType),
	}
	obj := &MediaObj{Link: link, Caption: caption}
	switch mediaType {
	case models.MessageImage:
		msg.Image = obj
	case models.MessageVideo:
		msg.Video = obj
	case models.MessageAudio:
		// audio messages do not carry captions
		obj.Caption = ""
		msg.Audio = obj
	case models.MessageDocument:
		msg.Document = obj
	default:
		return "", fmt.Errorf("unsupported media type %q", mediaType)
	}
	return c.SendRawMessage(ctx, msg)
}

// Dispatch delivers an outbound message record, choosing the payload by type.
func (c *Client) Dispatch(ctx context.Context, msg pkgmodels.OutboundMessage) (pkgmodels.DeliveryResult, error) {
	var (
		id  string
		err error
	)
	msgType := models.MessageType(msg.Type)
	if msgType == "" || msgType == models.MessageText {
		id, err = c.SendText(ctx, msg.To, msg.Content)
	} else {
		if msg.MediaURL == "" {
			return pkgmodels.DeliveryResult{}, fmt.Errorf("%s message without media url", msgType)
		}
		caption := msg.Caption
		if caption == "" {
			caption = msg.Content
		}
		id, err = c.SendMedia(ctx, msg.To, msgType, msg.MediaURL, caption)
	}
	if err != nil {
		return pkgmodels.DeliveryResult{}, err
	}
	return pkgmodels.DeliveryResult{ExternalID: id}, nil
}
