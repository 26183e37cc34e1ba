package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIncomingMessageContent(t *testing.T) {
	text := IncomingMessage{Type: "text"}
	text.Text.Body = "What is the price?"
	assert.Equal(t, "What is the price?", text.Content())

	img := IncomingMessage{Type: "image", Image: &MediaMessage{ID: "m1", Caption: "menu"}}
	assert.Equal(t, "[image]:m1:menu", img.Content())

	audio := IncomingMessage{Type: "audio", Audio: &MediaMessage{ID: "a1", Caption: "ignored"}}
	assert.Equal(t, "[audio]:a1", audio.Content())

	doc := IncomingMessage{Type: "document", Document: &MediaMessage{ID: "d1", Filename: "terms.pdf"}}
	assert.Equal(t, "[document]:d1:terms.pdf", doc.Content())

	assert.Equal(t, "[sticker]", IncomingMessage{Type: "sticker"}.Content())
	assert.Equal(t, "", IncomingMessage{Type: "video"}.Content())
}

func TestWebhookPayloadDecode(t *testing.T) {
	raw := `{"object":"whatsapp_business_account","entry":[{"id":"1","changes":[{"field":"messages","value":{
		"messaging_product":"whatsapp",
		"contacts":[{"profile":{"name":"Ana"},"wa_id":"5511999"}],
		"messages":[{"from":"5511999","id":"wamid.1","timestamp":"1700000000","type":"text","text":{"body":"hello"}}]}}]}]}`

	var p WebhookPayload
	require.NoError(t, json.Unmarshal([]byte(raw), &p))
	value := p.Entry[0].Changes[0].Value
	require.Len(t, value.Messages, 1)
	assert.Equal(t, "hello", value.Messages[0].Content())
	assert.Equal(t, "Ana", value.Contacts[0].Profile.Name)
}
