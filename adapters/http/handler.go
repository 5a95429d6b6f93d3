package http

import (
	"context"
	"crypto/subtle"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/satriahrh/cocoa-relay/domain"
	"github.com/satriahrh/cocoa-relay/utils/log"
)

const (
	Source = "http"

	JWTExpiry = 24 * time.Hour

	// Rate limiting
	MaxConcurrent = 10

	// Voice settings
	MaxAudioBytes = 10 * 1024 * 1024
	VoiceTimeout  = 60 * time.Second
)

// Replier is the synchronous side of the orchestrator.
type Replier interface {
	Reply(ctx context.Context, msg domain.InboundMessage) (string, bool)
}

type Options struct {
	JWTSecret    []byte
	ClientKey    string
	ClientSecret string

	// Transcriber and Synthesizer enable POST /voice when both are set.
	Transcriber domain.Transcriber
	Synthesizer domain.Synthesizer
}

type RelayHandler struct {
	replier Replier
	opts    Options
}

type TokenRequest struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
	DeviceID    string `json:"device_id"`
}

type MessageRequest struct {
	ChannelID string `json:"channel_id"`
	Text      string `json:"text"`
}

type MessageResponse struct {
	ChannelID string `json:"channel_id"`
	Reply     string `json:"reply"`
}

type JWTClaims struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
	DeviceID    string `json:"device_id"`
	jwt.RegisteredClaims
}

func NewRelayHandler(replier Replier, opts Options) *RelayHandler {
	return &RelayHandler{replier: replier, opts: opts}
}

// Register mounts the API under g. The caller mounts /ws with JWTMiddleware.
func (h *RelayHandler) Register(g *echo.Group) {
	g.GET("/health", h.HealthCheck)
	g.POST("/auth/token", h.GenerateJWT)

	authed := g.Group("", h.JWTMiddleware, h.RateLimitMiddleware)
	authed.POST("/messages", h.PostMessage)
	if h.VoiceEnabled() {
		authed.POST("/voice", h.PostVoice)
	}
}

func (h *RelayHandler) VoiceEnabled() bool {
	return h.opts.Transcriber != nil && h.opts.Synthesizer != nil
}

// GenerateJWT issues a token to clients presenting the configured API key pair.
func (h *RelayHandler) GenerateJWT(c echo.Context) error {
	key := c.Request().Header.Get("X-API-Key")
	secret := c.Request().Header.Get("X-API-Secret")

	if h.opts.ClientKey == "" || h.opts.ClientSecret == "" ||
		subtle.ConstantTimeCompare([]byte(key), []byte(h.opts.ClientKey)) != 1 ||
		subtle.ConstantTimeCompare([]byte(secret), []byte(h.opts.ClientSecret)) != 1 {
		return echo.NewHTTPError(http.StatusUnauthorized, "Invalid credentials")
	}

	var req TokenRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid token request")
	}
	if req.UserID == "" || req.DeviceID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "user_id and device_id are required")
	}

	now := time.Now()
	claims := &JWTClaims{
		UserID:      req.UserID,
		DisplayName: req.DisplayName,
		DeviceID:    req.DeviceID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(JWTExpiry)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    "cocoa-relay",
			Subject:   req.UserID,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(h.opts.JWTSecret)
	if err != nil {
		log.WithCtx(c.Request().Context()).Error("❌ Error signing JWT", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to generate token")
	}

	return c.JSON(http.StatusOK, map[string]string{
		"token": tokenString,
		"type":  "Bearer",
	})
}

// JWTMiddleware authenticates the request and stores a domain.Caller.
func (h *RelayHandler) JWTMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		authHeader := c.Request().Header.Get("Authorization")
		if authHeader == "" {
			return echo.NewHTTPError(http.StatusUnauthorized, "Missing authorization header")
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenString == authHeader {
			return echo.NewHTTPError(http.StatusUnauthorized, "Invalid authorization format")
		}

		token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return h.opts.JWTSecret, nil
		})
		if err != nil {
			log.WithCtx(c.Request().Context()).Debug("JWT validation error", zap.Error(err))
			return echo.NewHTTPError(http.StatusUnauthorized, "Invalid token")
		}

		if claims, ok := token.Claims.(*JWTClaims); ok && token.Valid {
			c.Set(domain.CallerContextKey, domain.Caller{
				UserID:      claims.UserID,
				DisplayName: claims.DisplayName,
				DeviceID:    claims.DeviceID,
			})
			return next(c)
		}

		return echo.NewHTTPError(http.StatusUnauthorized, "Invalid token claims")
	}
}

// RateLimitMiddleware bounds concurrent authenticated requests.
func (h *RelayHandler) RateLimitMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	semaphore := make(chan struct{}, MaxConcurrent)
	return func(c echo.Context) error {
		select {
		case semaphore <- struct{}{}:
			defer func() { <-semaphore }()
			return next(c)
		default:
			return echo.NewHTTPError(http.StatusTooManyRequests, "Too many concurrent requests")
		}
	}
}

// PostMessage relays one message and answers with the reply. It bypasses the
// dispatcher queues: concurrent requests on one channel are serialized but
// not answered in arrival order. Clients that need ordering wait for each
// reply before sending the next message.
func (h *RelayHandler) PostMessage(c echo.Context) error {
	caller := callerFrom(c)

	var req MessageRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid message")
	}
	if strings.TrimSpace(req.Text) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "text is required")
	}

	msg := h.inbound(caller, req.ChannelID, req.Text)
	reply, ok := h.replier.Reply(withRequestFields(c.Request().Context(), msg), msg)
	if !ok {
		return c.NoContent(http.StatusNoContent)
	}
	return c.JSON(http.StatusOK, MessageResponse{ChannelID: msg.ChannelID, Reply: reply})
}

// PostVoice transcribes a LINEAR16 clip, relays it and answers with MP3 audio.
func (h *RelayHandler) PostVoice(c echo.Context) error {
	caller := callerFrom(c)

	contentType := c.Request().Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "audio/") && !strings.HasPrefix(contentType, "application/octet-stream") {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid content type. Expected audio/* or application/octet-stream")
	}

	audio, err := io.ReadAll(io.LimitReader(c.Request().Body, MaxAudioBytes+1))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Failed to read audio")
	}
	if len(audio) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "Empty audio")
	}
	if len(audio) > MaxAudioBytes {
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, "Audio too large")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), VoiceTimeout)
	defer cancel()

	msg := h.inbound(caller, c.QueryParam("channel_id"), "")
	ctx = withRequestFields(ctx, msg)

	text, err := h.opts.Transcriber.Transcribe(ctx, audio)
	if err != nil {
		log.WithCtx(ctx).Error("❌ Transcription failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadGateway, "Failed to transcribe audio")
	}
	msg.Text = text

	reply, ok := h.replier.Reply(ctx, msg)
	if !ok {
		return c.NoContent(http.StatusNoContent)
	}

	speech, err := h.opts.Synthesizer.Synthesize(ctx, reply)
	if err != nil {
		log.WithCtx(ctx).Error("❌ Synthesis failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadGateway, "Failed to synthesize reply")
	}

	c.Response().Header().Set("X-Transcript", sanitizeHeader(text))
	return c.Blob(http.StatusOK, "audio/mpeg", speech)
}

// HealthCheck endpoint
func (h *RelayHandler) HealthCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"service":   "cocoa-relay",
		"voice":     h.VoiceEnabled(),
	})
}

// inbound scopes every HTTP channel to the caller's device. A requested
// channel_id only selects a sub-conversation of that device.
func (h *RelayHandler) inbound(caller domain.Caller, requested, text string) domain.InboundMessage {
	channelID := "http:" + caller.DeviceID
	if requested = strings.TrimSpace(requested); requested != "" {
		channelID += "/" + requested
	}
	return domain.InboundMessage{
		Source:      Source,
		AuthorID:    caller.UserID,
		ChannelID:   channelID,
		Text:        text,
		DisplayName: caller.DisplayName,
	}
}

func withRequestFields(ctx context.Context, msg domain.InboundMessage) context.Context {
	ctx = log.NewContext(ctx, log.SourceKey, Source)
	ctx = log.NewContext(ctx, log.ChannelIDKey, msg.ChannelID)
	return log.NewContext(ctx, log.AuthorIDKey, msg.AuthorID)
}

func callerFrom(c echo.Context) domain.Caller {
	caller, _ := c.Get(domain.CallerContextKey).(domain.Caller)
	return caller
}

func sanitizeHeader(s string) string {
	return strings.Map(func(r rune) rune {
		if r < 0x20 || r > 0x7e {
			return ' '
		}
		return r
	}, s)
}
