package handlers

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Wikid82/proxybot/internal/commands"
	"github.com/Wikid82/proxybot/internal/discord"
)

type interactorFunc func(ctx context.Context, in discord.Interaction) (discord.InteractionResponse, error)

func (f interactorFunc) Handle(ctx context.Context, in discord.Interaction) (discord.InteractionResponse, error) {
	return f(ctx, in)
}

func interactionsRouter(interactor Interactor, key ed25519.PublicKey) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewInteractionsHandler(interactor, key).RegisterRoutes(r)
	return r
}

func post(r http.Handler, body []byte, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/interactions", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func signed(priv ed25519.PrivateKey, body []byte) map[string]string {
	ts := "1700000000"
	sig := ed25519.Sign(priv, append([]byte(ts), body...))
	return map[string]string{signatureHeader: hex.EncodeToString(sig), timestampHeader: ts}
}

func TestInteractions_PingWithRealHandler(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	h := discord.NewHandler(commands.NewRegistry(nil), nil, "")
	r := interactionsRouter(h, pub)

	body := []byte(`{"id":"1","type":1,"token":"tok"}`)
	w := post(r, body, signed(priv, body))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"type":1}`, w.Body.String())
}

func TestInteractions_SignatureRejected(t *testing.T) {
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	_, other, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	called := false
	r := interactionsRouter(interactorFunc(func(context.Context, discord.Interaction) (discord.InteractionResponse, error) {
		called = true
		return discord.InteractionResponse{}, nil
	}), pub)

	body := []byte(`{"type":1}`)
	assert.Equal(t, http.StatusUnauthorized, post(r, body, nil).Code)
	assert.Equal(t, http.StatusUnauthorized, post(r, body, signed(other, body)).Code)

	tampered := signed(other, body)
	assert.Equal(t, http.StatusUnauthorized, post(r, []byte(`{"type":2}`), tampered).Code)
	assert.False(t, called)
}

func TestInteractions_NoKeySkipsVerification(t *testing.T) {
	var got discord.Interaction
	r := interactionsRouter(interactorFunc(func(_ context.Context, in discord.Interaction) (discord.InteractionResponse, error) {
		got = in
		return discord.InteractionResponse{Type: discord.ResponseChannelMessage, Data: discord.MessageData{Content: "hi"}}, nil
	}), nil)

	w := post(r, []byte(`{"id":"9","type":2,"user":{"id":"42"},"token":"t"}`), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "42", got.UserID())
	assert.JSONEq(t, `{"type":4,"data":{"content":"hi"}}`, w.Body.String())
}

func TestInteractions_BadPayload(t *testing.T) {
	r := interactionsRouter(interactorFunc(func(context.Context, discord.Interaction) (discord.InteractionResponse, error) {
		return discord.InteractionResponse{}, errors.New("unsupported interaction type 99")
	}), nil)

	assert.Equal(t, http.StatusBadRequest, post(r, []byte(`not json`), nil).Code)

	w := post(r, []byte(`{"type":99}`), nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "unsupported interaction type")
}

func TestInteractions_BodyTooLarge(t *testing.T) {
	r := interactionsRouter(interactorFunc(func(context.Context, discord.Interaction) (discord.InteractionResponse, error) {
		return discord.InteractionResponse{}, nil
	}), nil)

	body := []byte(`{"data":"` + strings.Repeat("a", maxInteractionBody) + `"}`)
	assert.Equal(t, http.StatusRequestEntityTooLarge, post(r, body, nil).Code)
}
