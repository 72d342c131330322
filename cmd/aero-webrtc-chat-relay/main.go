package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/wilsonzlin/aero/proxy/webrtc-chat-relay/internal/admin"
	"github.com/wilsonzlin/aero/proxy/webrtc-chat-relay/internal/config"
	"github.com/wilsonzlin/aero/proxy/webrtc-chat-relay/internal/httpserver"
	"github.com/wilsonzlin/aero/proxy/webrtc-chat-relay/internal/metrics"
	"github.com/wilsonzlin/aero/proxy/webrtc-chat-relay/internal/relay"
	"github.com/wilsonzlin/aero/proxy/webrtc-chat-relay/internal/session"
	"github.com/wilsonzlin/aero/proxy/webrtc-chat-relay/internal/signaling"
	"github.com/wilsonzlin/aero/proxy/webrtc-chat-relay/internal/webrtcpeer"
)

var (
	// Set via -ldflags at build time. Values may be empty in local/dev builds.
	buildCommit = ""
	buildTime   = ""
)

func main() {
	// A missing .env is normal outside local development.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintln(os.Stderr, "load .env:", err)
		os.Exit(2)
	}

	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	logger, err := config.NewLogger(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	slog.SetDefault(logger)

	// Construct the WebRTC API early so misconfigurations are caught on startup.
	// No sockets are opened until the first PeerConnection.
	api, err := webrtcpeer.NewAPI(cfg, logger)
	if err != nil {
		logger.Error("failed to configure webrtc", "err", err)
		os.Exit(2)
	}

	logger.Info("starting aero-webrtc-chat-relay",
		"listen_addr", cfg.ListenAddr,
		"mode", cfg.Mode,
		"tls", cfg.TLSEnabled(),
		"ice_servers", len(cfg.ICEServers),
		"max_sessions", cfg.MaxSessions,
		"max_chat_message_bytes", cfg.MaxChatMessageBytes,
		"negotiation_timeout", cfg.NegotiationTimeout,
		"webrtc_sctp_max_receive_buffer_bytes", cfg.WebRTCSCTPMaxReceiveBufferBytes,
		"admin_console", cfg.AdminConsole,
	)

	logStartupSecurityWarnings(logger, cfg)

	ln, err := net.Listen("tcp", cfg.ListenAddr)
	if err != nil {
		logger.Error("failed to listen", "err", err)
		os.Exit(1)
	}

	commit, built := resolveBuildInfo(buildCommit, buildTime)

	m := metrics.New()
	registry := session.NewRegistry(cfg.MaxSessions, m)
	broadcaster := relay.New(registry, logger, m)

	srv := httpserver.New(cfg, logger, httpserver.BuildInfo{Commit: commit, BuildTime: built}, m)
	sig := signaling.NewServer(signaling.Config{
		Registry:                      registry,
		Broadcaster:                   broadcaster,
		NewEstablisher:                signaling.PeerEstablisher(api, cfg.ICEServers, logger),
		AllowedOrigins:                cfg.AllowedOrigins,
		SessionSendQueueBytes:         cfg.SessionSendQueueBytes,
		MaxChatMessageBytes:           cfg.MaxChatMessageBytes,
		NegotiationTimeout:            cfg.NegotiationTimeout,
		MaxSignalingMessageBytes:      cfg.MaxSignalingMessageBytes,
		MaxSignalingMessagesPerSecond: cfg.MaxSignalingMessagesPerSecond,
		IdleTimeout:                   cfg.SignalingWSIdleTimeout,
		PingInterval:                  cfg.SignalingWSPingInterval,
		Logger:                        logger,
		Metrics:                       m,
	})
	sig.RegisterRoutes(srv.Mux())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.AdminConsole {
		console, err := admin.NewConsole(admin.Config{
			Registry:     registry,
			Broadcaster:  broadcaster,
			Nickname:     cfg.AdminNickname,
			In:           os.Stdin,
			Out:          os.Stdout,
			MaxLineBytes: cfg.MaxChatMessageBytes,
			Color:        true,
			Logger:       logger,
			Metrics:      m,
		})
		if err != nil {
			logger.Error("failed to start admin console", "err", err)
			os.Exit(2)
		}
		defer console.Close()
		go func() {
			if err := console.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Warn("admin console stopped", "err", err)
			}
		}()
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		sig.Close()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server exited", "err", err)
			os.Exit(1)
		}
		return
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown failed", "err", err)
	}
	// Hijacked signaling connections are not covered by Shutdown.
	sig.Close()

	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("http server exited after shutdown", "err", err)
		os.Exit(1)
	}
}

func resolveBuildInfo(commit, buildTime string) (string, string) {
	// Prefer ldflags-injected values but fall back to the Go build info, which
	// is what `go run` and dev builds carry.
	if bi, ok := debug.ReadBuildInfo(); ok {
		for _, s := range bi.Settings {
			switch s.Key {
			case "vcs.revision":
				if commit == "" {
					commit = s.Value
				}
			case "vcs.time":
				if buildTime == "" {
					buildTime = s.Value
				}
			}
		}
	}

	return commit, buildTime
}
