package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/satriahrh/cocoa-relay/domain"
)

type fakeReplier struct {
	got []domain.InboundMessage
}

func (f *fakeReplier) Reply(_ context.Context, msg domain.InboundMessage) (string, bool) {
	f.got = append(f.got, msg)
	if msg.Text == "" {
		return "", false
	}
	return "reply to " + msg.Text, true
}

type fakeTranscriber struct {
	text string
	err  error
}

func (f fakeTranscriber) Transcribe(context.Context, []byte) (string, error) { return f.text, f.err }

type fakeSynthesizer struct{}

func (fakeSynthesizer) Synthesize(_ context.Context, text string) ([]byte, error) {
	return []byte("mp3:" + text), nil
}

func newTestServer(t *testing.T, opts Options) (*echo.Echo, *fakeReplier) {
	t.Helper()
	if opts.JWTSecret == nil {
		opts.JWTSecret = []byte("test-secret")
	}
	opts.ClientKey = "key"
	opts.ClientSecret = "secret"

	replier := &fakeReplier{}
	e := echo.New()
	NewRelayHandler(replier, opts).Register(e.Group("/api/v1"))
	return e, replier
}

func issueToken(t *testing.T, e *echo.Echo) string {
	t.Helper()
	body := `{"user_id":"u-7","display_name":"Budi","device_id":"dev-1"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/token", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", "key")
	req.Header.Set("X-API-Secret", "secret")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var out map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Equal(t, "Bearer", out["type"])
	return out["token"]
}

func TestHealthCheck(t *testing.T) {
	e, _ := newTestServer(t, Options{})
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"healthy"`)
	assert.Contains(t, rec.Body.String(), `"voice":false`)
}

func TestGenerateJWT_RejectsBadCredentials(t *testing.T) {
	e, _ := newTestServer(t, Options{})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/token", strings.NewReader(`{}`))
	req.Header.Set("X-API-Key", "key")
	req.Header.Set("X-API-Secret", "wrong")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestPostMessage(t *testing.T) {
	e, replier := newTestServer(t, Options{})
	token := issueToken(t, e)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/messages", strings.NewReader(`{"text":"halo"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var out MessageResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, "reply to halo", out.Reply)
	assert.Equal(t, "http:dev-1", out.ChannelID)

	require.Len(t, replier.got, 1)
	assert.Equal(t, domain.InboundMessage{
		Source:      Source,
		AuthorID:    "u-7",
		ChannelID:   "http:dev-1",
		Text:        "halo",
		DisplayName: "Budi",
	}, replier.got[0])
}

func TestPostMessage_ChannelScopedToCaller(t *testing.T) {
	e, replier := newTestServer(t, Options{})
	token := issueToken(t, e)

	for _, requested := range []string{"123456", "ws:dev-2", "http:dev-2"} {
		body := `{"channel_id":"` + requested + `","text":"halo"}`
		req := httptest.NewRequest(http.MethodPost, "/api/v1/messages", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	}

	require.Len(t, replier.got, 3)
	assert.Equal(t, "http:dev-1/123456", replier.got[0].ChannelID)
	assert.Equal(t, "http:dev-1/ws:dev-2", replier.got[1].ChannelID)
	assert.Equal(t, "http:dev-1/http:dev-2", replier.got[2].ChannelID)
	for _, msg := range replier.got {
		assert.Equal(t, Source, msg.Source)
	}
}

func TestPostMessage_RequiresToken(t *testing.T) {
	e, replier := newTestServer(t, Options{})

	for _, auth := range []string{"", "Token abc", "Bearer not-a-jwt"} {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/messages", strings.NewReader(`{"text":"halo"}`))
		req.Header.Set("Content-Type", "application/json")
		if auth != "" {
			req.Header.Set("Authorization", auth)
		}
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, auth)
	}
	assert.Empty(t, replier.got)
}

func TestPostMessage_RejectsBlank(t *testing.T) {
	e, _ := newTestServer(t, Options{})
	token := issueToken(t, e)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/messages", strings.NewReader(`{"text":"  "}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPostVoice(t *testing.T) {
	e, replier := newTestServer(t, Options{
		Transcriber: fakeTranscriber{text: "apa kabar"},
		Synthesizer: fakeSynthesizer{},
	})
	token := issueToken(t, e)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/voice?channel_id=kitchen", bytes.NewReader([]byte{0, 1, 2, 3}))
	req.Header.Set("Content-Type", "audio/l16")
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "audio/mpeg", rec.Header().Get("Content-Type"))
	assert.Equal(t, "mp3:reply to apa kabar", rec.Body.String())
	assert.Equal(t, "apa kabar", rec.Header().Get("X-Transcript"))
	require.Len(t, replier.got, 1)
	assert.Equal(t, "http:dev-1/kitchen", replier.got[0].ChannelID)
}

func TestPostVoice_TranscriptionFailure(t *testing.T) {
	e, replier := newTestServer(t, Options{
		Transcriber: fakeTranscriber{err: errors.New("speech down")},
		Synthesizer: fakeSynthesizer{},
	})
	token := issueToken(t, e)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/voice", bytes.NewReader([]byte{1}))
	req.Header.Set("Content-Type", "audio/l16")
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Empty(t, replier.got)
}

func TestPostVoice_DisabledWithoutAdapters(t *testing.T) {
	e, _ := newTestServer(t, Options{})
	token := issueToken(t, e)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/voice", bytes.NewReader([]byte{1}))
	req.Header.Set("Content-Type", "audio/l16")
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Contains(t, []int{http.StatusNotFound, http.StatusMethodNotAllowed}, rec.Code)
}
