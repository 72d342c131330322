package main

import (
	"log/slog"
	"slices"
	"time"

	"github.com/wilsonzlin/aero/proxy/webrtc-chat-relay/internal/config"
)

func logStartupSecurityWarnings(logger *slog.Logger, cfg config.Config) {
	if logger == nil {
		logger = slog.Default()
	}

	if cfg.Mode == config.ModeProd && !cfg.TLSEnabled() {
		logger.Warn("startup security warning: TLS is disabled while --mode=prod (browsers require a secure context for WebRTC unless a TLS proxy fronts the relay)",
			"warning_code", "tls_disabled_in_prod",
			"mode", cfg.Mode,
		)
	}

	if slices.Contains(cfg.AllowedOrigins, "*") {
		logger.Warn("startup security warning: ALLOWED_ORIGINS contains '*' (allows any origin)",
			"warning_code", "allowed_origins_wildcard",
			"allowed_origins", cfg.AllowedOrigins,
			"mode", cfg.Mode,
		)
	}

	if cfg.Mode == config.ModeProd && cfg.MaxSessions <= 0 {
		logger.Warn("startup security warning: MAX_SESSIONS is unset/0 (unlimited) while --mode=prod",
			"warning_code", "max_sessions_unlimited_in_prod",
			"max_sessions", cfg.MaxSessions,
			"mode", cfg.Mode,
		)
	}

	if cfg.MaxChatMessageBytes <= 0 {
		logger.Warn("startup security warning: MAX_CHAT_MESSAGE_BYTES is 0 (chat messages are only bounded by transport limits)",
			"warning_code", "max_chat_message_unlimited",
			"mode", cfg.Mode,
		)
	}

	if cfg.WebRTCSCTPMaxReceiveBufferBytes > 8<<20 { // 8MiB
		logger.Warn("startup security warning: WEBRTC_SCTP_MAX_RECEIVE_BUFFER_BYTES is very large (increases receive-side buffering per session)",
			"warning_code", "webrtc_sctp_max_receive_buffer_large",
			"webrtc_sctp_max_receive_buffer_bytes", cfg.WebRTCSCTPMaxReceiveBufferBytes,
			"mode", cfg.Mode,
		)
	}

	if cfg.NegotiationTimeout <= 0 || cfg.NegotiationTimeout > 2*time.Minute {
		logger.Warn("startup security warning: NEGOTIATION_TIMEOUT is disabled or very large (half-open WebRTC sessions hold resources longer)",
			"warning_code", "negotiation_timeout_large",
			"negotiation_timeout", cfg.NegotiationTimeout,
			"mode", cfg.Mode,
		)
	}
}
