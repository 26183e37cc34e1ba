package whatsapp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"chatflow/internal/config"
	pkgmodels "chatflow/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(&config.Config{WhatsAppAPIURL: srv.URL + "/", WhatsAppToken: "tok", PhoneNumberID: "123"})
}

func TestDispatchText(t *testing.T) {
	var got GenericMessage
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/123/messages", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"messages":[{"id":"wamid.ABC"}]}`))
	})

	res, err := client.Dispatch(context.Background(), pkgmodels.OutboundMessage{To: "+15550001", Type: "text", Content: "Hello"})
	require.NoError(t, err)
	assert.Equal(t, "wamid.ABC", res.ExternalID)
	assert.Equal(t, "text", got.Type)
	require.NotNil(t, got.Text)
	assert.Equal(t, "Hello", got.Text.Body)
}

func TestDispatchMedia(t *testing.T) {
	var got GenericMessage
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"messages":[{"id":"wamid.IMG"}]}`))
	})

	res, err := client.Dispatch(context.Background(), pkgmodels.OutboundMessage{
		To: "+15550001", Type: "image", MediaURL: "https://cdn/x.png", Caption: "Menu",
	})
	require.NoError(t, err)
	assert.Equal(t, "wamid.IMG", res.ExternalID)
	require.NotNil(t, got.Image)
	assert.Equal(t, "https://cdn/x.png", got.Image.Link)
	assert.Equal(t, "Menu", got.Image.Caption)
}

func TestDispatchMediaWithoutURL(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected")
	})
	_, err := client.Dispatch(context.Background(), pkgmodels.OutboundMessage{To: "+1", Type: "video"})
	assert.Error(t, err)
}

func TestDispatchAPIError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"message":"bad number"}}`))
	})
	_, err := client.Dispatch(context.Background(), pkgmodels.OutboundMessage{To: "x", Content: "hi"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad number")
}
