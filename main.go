package main

import (
	"context"
	"crypto/rand"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/subosito/gotenv"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/satriahrh/cocoa-relay/adapters/discord"
	"github.com/satriahrh/cocoa-relay/adapters/hasher"
	httpadapter "github.com/satriahrh/cocoa-relay/adapters/http"
	"github.com/satriahrh/cocoa-relay/adapters/llm"
	"github.com/satriahrh/cocoa-relay/adapters/message_broker"
	"github.com/satriahrh/cocoa-relay/adapters/speech"
	"github.com/satriahrh/cocoa-relay/adapters/tts"
	"github.com/satriahrh/cocoa-relay/adapters/websocket"
	"github.com/satriahrh/cocoa-relay/config"
	"github.com/satriahrh/cocoa-relay/domain"
	"github.com/satriahrh/cocoa-relay/usecase"
	"github.com/satriahrh/cocoa-relay/utils/log"
)

const shutdownTimeout = 10 * time.Second

func main() {
	gotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.L().Fatal("❌ Invalid configuration", zap.Error(err))
	}
	log.Configure(cfg.Debug)
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.L().Fatal("❌ Relay stopped", zap.Error(err))
	}
	log.L().Info("👋 Relay stopped")
}

func run(ctx context.Context, cfg config.Config) error {
	persona, err := config.LoadPersona(cfg.PersonaFile)
	if err != nil {
		return err
	}

	provider, err := newProvider(ctx, cfg)
	if err != nil {
		return err
	}

	history := usecase.NewHistoryStore(persona)
	svc := usecase.NewChatService(persona, history, provider, hasher.New())

	broker := message_broker.NewChannelMessageBroker()
	defer broker.Close()

	bot, err := discord.New(cfg.DiscordToken, broker)
	if err != nil {
		return err
	}
	wsServer := websocket.NewServer(broker)

	dispatcher := usecase.NewDispatcher(broker, svc, map[string]domain.ReplySink{
		discord.Source:   bot,
		websocket.Source: wsServer.GetHub(),
	}, cfg.InboundQueueSize)

	opts := httpadapter.Options{
		JWTSecret:    jwtSecret(cfg.JWTSecret),
		ClientKey:    cfg.ClientKey,
		ClientSecret: cfg.ClientSecret,
	}
	if opts.ClientKey == "" || opts.ClientSecret == "" {
		log.L().Warn("⚠️ API_CLIENT_KEY/API_CLIENT_SECRET not set, token issuance disabled")
	}
	if cfg.VoiceEnabled {
		googleSpeech, err := speech.NewGoogleSpeech(ctx, persona.PrimaryLanguage())
		if err != nil {
			return err
		}
		defer googleSpeech.Close()
		googleTTS, err := tts.NewGoogleTTS(ctx, persona.PrimaryLanguage())
		if err != nil {
			return err
		}
		defer googleTTS.Close()
		opts.Transcriber, opts.Synthesizer = googleSpeech, googleTTS
	}
	relay := httpadapter.NewRelayHandler(svc, opts)

	e := newEcho(relay, wsServer)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return dispatcher.Run(gctx) })
	g.Go(func() error { return bot.Run(gctx) })
	g.Go(func() error {
		log.L().Info("🚀 Starting server", zap.String("addr", cfg.HTTPAddr), zap.Bool("voice", relay.VoiceEnabled()))
		if err := e.Start(cfg.HTTPAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		wsServer.GetHub().CloseAll()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return e.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func newProvider(ctx context.Context, cfg config.Config) (domain.CompletionProvider, error) {
	if cfg.Provider == config.ProviderOpenAI {
		return llm.NewOpenAIClient(cfg.OpenAIAPIKey, cfg.OpenAIModel, cfg.CompletionTimeout), nil
	}
	return llm.NewGeminiClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, cfg.CompletionTimeout)
}

func newEcho(relay *httpadapter.RelayHandler, wsServer *websocket.Server) *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.Secure())
	e.Use(middleware.RateLimiter(middleware.NewRateLimiterMemoryStore(20)))
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{echo.GET, echo.POST, echo.OPTIONS},
		AllowHeaders: []string{
			echo.HeaderOrigin,
			echo.HeaderContentType,
			echo.HeaderAccept,
			echo.HeaderAuthorization,
			"X-API-Key",
			"X-API-Secret",
		},
		ExposeHeaders: []string{"X-Transcript"},
		MaxAge:        86400,
	}))
	e.Use(middleware.BodyLimit("10MB"))

	ws := e.Group("/ws")
	ws.Use(relay.JWTMiddleware)
	ws.GET("", wsServer.Handler)

	relay.Register(e.Group("/api/v1"))
	return e
}

// jwtSecret falls back to a per-process random key, so tokens do not
// survive a restart.
func jwtSecret(configured string) []byte {
	if configured != "" {
		return []byte(configured)
	}
	log.L().Warn("⚠️ JWT_SECRET not set, using a random per-process secret")
	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		log.L().Fatal("❌ Failed to generate JWT secret", zap.Error(err))
	}
	return secret
}
