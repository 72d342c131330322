package config

import (
	"flag"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pion/webrtc/v4"

	"github.com/wilsonzlin/aero/proxy/webrtc-chat-relay/internal/origin"
)

const (
	envVarListenAddr      = "CHAT_RELAY_LISTEN_ADDR"
	envVarMode            = "CHAT_RELAY_MODE"
	envVarLogFormat       = "CHAT_RELAY_LOG_FORMAT"
	envVarLogLevel        = "CHAT_RELAY_LOG_LEVEL"
	envVarShutdownTimeout = "CHAT_RELAY_SHUTDOWN_TIMEOUT"
	envVarTLSCertFile     = "CHAT_RELAY_TLS_CERT_FILE"
	envVarTLSKeyFile      = "CHAT_RELAY_TLS_KEY_FILE"
	envVarAllowedOrigins  = "ALLOWED_ORIGINS"

	// Session registry and relay knobs.
	envVarMaxSessions           = "MAX_SESSIONS"
	envVarSessionSendQueueBytes = "SESSION_SEND_QUEUE_BYTES"
	envVarMaxChatMessageBytes   = "MAX_CHAT_MESSAGE_BYTES"
	envVarNegotiationTimeout    = "NEGOTIATION_TIMEOUT"

	// Signaling WebSocket hardening.
	envVarSignalingWSIdleTimeout        = "SIGNALING_WS_IDLE_TIMEOUT"
	envVarSignalingWSPingInterval       = "SIGNALING_WS_PING_INTERVAL"
	envVarMaxSignalingMessageBytes      = "MAX_SIGNALING_MESSAGE_BYTES"
	envVarMaxSignalingMessagesPerSecond = "MAX_SIGNALING_MESSAGES_PER_SECOND"

	// Operator console.
	envVarAdminConsole  = "ADMIN_CONSOLE"
	envVarAdminNickname = "ADMIN_NICKNAME"

	envVarWebRTCUDPPortMin                = "WEBRTC_UDP_PORT_MIN"
	envVarWebRTCUDPPortMax                = "WEBRTC_UDP_PORT_MAX"
	envVarWebRTCNAT1To1IPs                = "WEBRTC_NAT_1TO1_IPS"
	envVarWebRTCUDPListenIP               = "WEBRTC_UDP_LISTEN_IP"
	envVarWebRTCSCTPMaxReceiveBufferBytes = "WEBRTC_SCTP_MAX_RECEIVE_BUFFER_BYTES"
)

const (
	DefaultListenAddr                         = ":8999"
	DefaultShutdown                           = 15 * time.Second
	DefaultMode                          Mode = ModeDev
	DefaultSessionSendQueueBytes              = 256 << 10
	DefaultMaxChatMessageBytes                = 4096
	DefaultNegotiationTimeout                 = 30 * time.Second
	DefaultSignalingWSIdleTimeout             = 60 * time.Second
	DefaultSignalingWSPingInterval            = 20 * time.Second
	DefaultMaxSignalingMessageBytes           = int64(64 * 1024)
	DefaultMaxSignalingMessagesPerSecond      = 50
	DefaultAdminNickname                      = "Admin"
	DefaultWebRTCUDPListenIP                  = "0.0.0.0"
)

// pion/sctp rejects receive windows smaller than one MTU during INIT.
const minWebRTCSCTPReceiveBufferBytes = 1500

type Mode string

const (
	ModeDev  Mode = "dev"
	ModeProd Mode = "prod"
)

type LogFormat string

const (
	LogFormatText LogFormat = "text"
	LogFormatJSON LogFormat = "json"
)

type UDPPortRange struct {
	Min uint16
	Max uint16
}

type Config struct {
	ListenAddr      string
	Mode            Mode
	LogFormat       LogFormat
	LogLevel        slog.Level
	ShutdownTimeout time.Duration

	// TLSCertFile and TLSKeyFile enable HTTPS/WSS when both are set.
	TLSCertFile string
	TLSKeyFile  string

	// AllowedOrigins lists browser origins allowed to open the signaling
	// WebSocket. Empty means same host only; "*" allows any origin.
	AllowedOrigins []string

	// MaxSessions caps concurrently registered sessions (0 = unlimited).
	MaxSessions int
	// SessionSendQueueBytes bounds each session's outbound chat queue. Messages
	// that do not fit are dropped for that recipient only.
	SessionSendQueueBytes int
	MaxChatMessageBytes   int
	// NegotiationTimeout bounds how long an offer may stay unanswered by an
	// open DataChannel before the session is closed.
	NegotiationTimeout time.Duration

	SignalingWSIdleTimeout        time.Duration
	SignalingWSPingInterval       time.Duration
	MaxSignalingMessageBytes      int64
	MaxSignalingMessagesPerSecond int

	AdminConsole  bool
	AdminNickname string

	ICEServers []webrtc.ICEServer

	// WebRTCUDPPortRange restricts the UDP ports used for ICE. When nil, pion uses
	// its defaults.
	WebRTCUDPPortRange *UDPPortRange
	// WebRTCNAT1To1IPs are advertised as host candidates when the relay is
	// behind a 1:1 NAT.
	WebRTCNAT1To1IPs []string
	// WebRTCUDPListenIP restricts which local address ICE binds to. 0.0.0.0 means
	// all interfaces.
	WebRTCUDPListenIP               net.IP
	WebRTCSCTPMaxReceiveBufferBytes int
}

// TLSEnabled reports whether both certificate and key files are configured.
func (c Config) TLSEnabled() bool {
	return c.TLSCertFile != "" && c.TLSKeyFile != ""
}

func Load(args []string) (Config, error) {
	return load(os.LookupEnv, args)
}

func load(lookup func(string) (string, bool), args []string) (Config, error) {
	modeDefault := envOrDefault(lookup, envVarMode, string(DefaultMode))

	envLogFormat := envOrDefault(lookup, envVarLogFormat, "")
	envLogLevel := envOrDefault(lookup, envVarLogLevel, "")

	listenAddr := envOrDefault(lookup, envVarListenAddr, DefaultListenAddr)
	tlsCertFile := envOrDefault(lookup, envVarTLSCertFile, "")
	tlsKeyFile := envOrDefault(lookup, envVarTLSKeyFile, "")
	allowedOriginsStr := envOrDefault(lookup, envVarAllowedOrigins, "")
	adminNickname := envOrDefault(lookup, envVarAdminNickname, DefaultAdminNickname)

	iceServersJSON := envOrDefault(lookup, envICEServersJSON, "")
	stunURLs := envOrDefault(lookup, envStunURLs, "")
	turnURLs := envOrDefault(lookup, envTurnURLs, "")
	turnUsername := envOrDefault(lookup, envTurnUsername, "")
	turnCredential := envOrDefault(lookup, envTurnCredential, "")

	shutdownTimeout, err := envDurationOrDefault(lookup, envVarShutdownTimeout, DefaultShutdown)
	if err != nil {
		return Config{}, err
	}
	negotiationTimeout, err := envDurationOrDefault(lookup, envVarNegotiationTimeout, DefaultNegotiationTimeout)
	if err != nil {
		return Config{}, err
	}
	signalingWSIdleTimeout, err := envDurationOrDefault(lookup, envVarSignalingWSIdleTimeout, DefaultSignalingWSIdleTimeout)
	if err != nil {
		return Config{}, err
	}
	signalingWSPingInterval, err := envDurationOrDefault(lookup, envVarSignalingWSPingInterval, DefaultSignalingWSPingInterval)
	if err != nil {
		return Config{}, err
	}

	maxSessions, err := envIntOrDefault(lookup, envVarMaxSessions, 0)
	if err != nil {
		return Config{}, err
	}
	sessionSendQueueBytes, err := envIntOrDefault(lookup, envVarSessionSendQueueBytes, DefaultSessionSendQueueBytes)
	if err != nil {
		return Config{}, err
	}
	maxChatMessageBytes, err := envIntOrDefault(lookup, envVarMaxChatMessageBytes, DefaultMaxChatMessageBytes)
	if err != nil {
		return Config{}, err
	}
	maxSignalingMessagesPerSecond, err := envIntOrDefault(lookup, envVarMaxSignalingMessagesPerSecond, DefaultMaxSignalingMessagesPerSecond)
	if err != nil {
		return Config{}, err
	}
	webrtcSCTPMaxReceiveBufferBytes, err := envIntOrDefault(lookup, envVarWebRTCSCTPMaxReceiveBufferBytes, 0)
	if err != nil {
		return Config{}, err
	}

	maxSignalingMessageBytes := DefaultMaxSignalingMessageBytes
	if raw, ok := lookup(envVarMaxSignalingMessageBytes); ok && strings.TrimSpace(raw) != "" {
		n, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s %q: %w", envVarMaxSignalingMessageBytes, raw, err)
		}
		maxSignalingMessageBytes = n
	}

	adminConsole := true
	if raw, ok := lookup(envVarAdminConsole); ok && strings.TrimSpace(raw) != "" {
		v, err := strconv.ParseBool(strings.TrimSpace(raw))
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s %q: %w", envVarAdminConsole, raw, err)
		}
		adminConsole = v
	}

	var webrtcUDPPortMin, webrtcUDPPortMax uint
	if raw, ok := lookup(envVarWebRTCUDPPortMin); ok && strings.TrimSpace(raw) != "" {
		p, err := parsePortString(raw)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s %q: %w", envVarWebRTCUDPPortMin, raw, err)
		}
		webrtcUDPPortMin = uint(p)
	}
	if raw, ok := lookup(envVarWebRTCUDPPortMax); ok && strings.TrimSpace(raw) != "" {
		p, err := parsePortString(raw)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s %q: %w", envVarWebRTCUDPPortMax, raw, err)
		}
		webrtcUDPPortMax = uint(p)
	}
	webrtcUDPListenIPStr := envOrDefault(lookup, envVarWebRTCUDPListenIP, DefaultWebRTCUDPListenIP)
	webrtcNAT1To1IPsStr := envOrDefault(lookup, envVarWebRTCNAT1To1IPs, "")

	fs := flag.NewFlagSet("aero-webrtc-chat-relay", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var (
		modeStr      string
		logFormatStr string
		logLevelStr  string
	)

	fs.StringVar(&listenAddr, "listen-addr", listenAddr, "HTTP(S) listen address (host:port)")
	fs.StringVar(&modeStr, "mode", modeDefault, "Run mode: dev or prod")
	fs.StringVar(&logFormatStr, "log-format", envLogFormat, "Log format: text or json (default depends on --mode)")
	fs.StringVar(&logLevelStr, "log-level", envLogLevel, "Log level: debug, info, warn, error (default depends on --mode)")
	fs.DurationVar(&shutdownTimeout, "shutdown-timeout", shutdownTimeout, "Graceful shutdown timeout (e.g. 15s)")
	fs.StringVar(&tlsCertFile, "tls-cert-file", tlsCertFile, "TLS certificate chain (PEM); enables wss:// together with --tls-key-file (env "+envVarTLSCertFile+")")
	fs.StringVar(&tlsKeyFile, "tls-key-file", tlsKeyFile, "TLS private key (PEM) (env "+envVarTLSKeyFile+")")
	fs.StringVar(&allowedOriginsStr, "allowed-origins", allowedOriginsStr, "Comma-separated list of allowed browser origins (env "+envVarAllowedOrigins+")")

	fs.IntVar(&maxSessions, "max-sessions", maxSessions, "Maximum concurrent sessions (0 = unlimited)")
	fs.IntVar(&sessionSendQueueBytes, "session-send-queue-bytes", sessionSendQueueBytes, "Max queued outbound chat bytes per session before dropping (env "+envVarSessionSendQueueBytes+")")
	fs.IntVar(&maxChatMessageBytes, "max-chat-message-bytes", maxChatMessageBytes, "Max inbound chat message size in bytes (env "+envVarMaxChatMessageBytes+")")
	fs.DurationVar(&negotiationTimeout, "negotiation-timeout", negotiationTimeout, "Close sessions whose DataChannel does not open this long after an offer (0 = disabled; env "+envVarNegotiationTimeout+")")

	fs.DurationVar(&signalingWSIdleTimeout, "signaling-ws-idle-timeout", signalingWSIdleTimeout, "Close idle signaling WebSocket connections after this duration (env "+envVarSignalingWSIdleTimeout+")")
	fs.DurationVar(&signalingWSPingInterval, "signaling-ws-ping-interval", signalingWSPingInterval, "Send ping frames on signaling WebSocket connections at this interval (must be < --signaling-ws-idle-timeout; env "+envVarSignalingWSPingInterval+")")
	fs.Int64Var(&maxSignalingMessageBytes, "max-signaling-message-bytes", maxSignalingMessageBytes, "Max inbound signaling WS message size in bytes (env "+envVarMaxSignalingMessageBytes+")")
	fs.IntVar(&maxSignalingMessagesPerSecond, "max-signaling-messages-per-second", maxSignalingMessagesPerSecond, "Max inbound signaling WS messages per second (env "+envVarMaxSignalingMessagesPerSecond+")")

	fs.BoolVar(&adminConsole, "admin-console", adminConsole, "Read operator commands and broadcasts from stdin (env "+envVarAdminConsole+")")
	fs.StringVar(&adminNickname, "admin-nickname", adminNickname, "Initial nickname of the operator session (env "+envVarAdminNickname+")")

	fs.StringVar(&iceServersJSON, "ice-servers-json", iceServersJSON, "ICE server JSON config ("+envICEServersJSON+")")
	fs.StringVar(&stunURLs, "stun-urls", stunURLs, "comma-separated STUN URLs ("+envStunURLs+")")
	fs.StringVar(&turnURLs, "turn-urls", turnURLs, "comma-separated TURN URLs ("+envTurnURLs+")")
	fs.StringVar(&turnUsername, "turn-username", turnUsername, "TURN username ("+envTurnUsername+")")
	fs.StringVar(&turnCredential, "turn-credential", turnCredential, "TURN credential ("+envTurnCredential+")")

	fs.UintVar(&webrtcUDPPortMin, "webrtc-udp-port-min", webrtcUDPPortMin, "Min UDP port for WebRTC ICE (0 = unset; env "+envVarWebRTCUDPPortMin+")")
	fs.UintVar(&webrtcUDPPortMax, "webrtc-udp-port-max", webrtcUDPPortMax, "Max UDP port for WebRTC ICE (0 = unset; env "+envVarWebRTCUDPPortMax+")")
	fs.StringVar(&webrtcUDPListenIPStr, "webrtc-udp-listen-ip", webrtcUDPListenIPStr, "Local listen IP for WebRTC ICE UDP sockets (env "+envVarWebRTCUDPListenIP+")")
	fs.StringVar(&webrtcNAT1To1IPsStr, "webrtc-nat-1to1-ips", webrtcNAT1To1IPsStr, "Comma-separated public IPs to advertise for WebRTC ICE (env "+envVarWebRTCNAT1To1IPs+")")
	fs.IntVar(&webrtcSCTPMaxReceiveBufferBytes, "webrtc-sctp-max-receive-buffer-bytes", webrtcSCTPMaxReceiveBufferBytes, "Max SCTP receive buffer size in bytes (0 = pion default; env "+envVarWebRTCSCTPMaxReceiveBufferBytes+")")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	mode, err := parseMode(modeStr)
	if err != nil {
		return Config{}, err
	}
	if logFormatStr == "" {
		logFormatStr = defaultLogFormatForMode(mode)
	}
	if logLevelStr == "" {
		logLevelStr = defaultLogLevelForMode(mode)
	}
	logFormat, err := parseLogFormat(logFormatStr)
	if err != nil {
		return Config{}, err
	}
	level, err := parseLogLevel(logLevelStr)
	if err != nil {
		return Config{}, err
	}

	if (tlsCertFile == "") != (tlsKeyFile == "") {
		return Config{}, fmt.Errorf("--tls-cert-file and --tls-key-file must be set together (or both unset)")
	}
	if shutdownTimeout <= 0 {
		return Config{}, fmt.Errorf("--shutdown-timeout must be > 0")
	}
	if negotiationTimeout < 0 {
		return Config{}, fmt.Errorf("--negotiation-timeout must be >= 0")
	}
	if maxSessions < 0 {
		return Config{}, fmt.Errorf("--max-sessions must be >= 0")
	}
	if sessionSendQueueBytes <= 0 {
		return Config{}, fmt.Errorf("--session-send-queue-bytes must be > 0")
	}
	if maxChatMessageBytes <= 0 {
		return Config{}, fmt.Errorf("--max-chat-message-bytes must be > 0")
	}
	if maxSignalingMessageBytes <= 0 {
		return Config{}, fmt.Errorf("--max-signaling-message-bytes must be > 0")
	}
	if maxSignalingMessagesPerSecond <= 0 {
		return Config{}, fmt.Errorf("--max-signaling-messages-per-second must be > 0")
	}
	if signalingWSIdleTimeout <= 0 || signalingWSPingInterval <= 0 {
		return Config{}, fmt.Errorf("--signaling-ws-idle-timeout and --signaling-ws-ping-interval must be > 0")
	}
	if signalingWSPingInterval >= signalingWSIdleTimeout {
		return Config{}, fmt.Errorf("--signaling-ws-ping-interval (%s) must be < --signaling-ws-idle-timeout (%s)", signalingWSPingInterval, signalingWSIdleTimeout)
	}
	if strings.TrimSpace(adminNickname) == "" {
		return Config{}, fmt.Errorf("--admin-nickname must not be empty")
	}
	if webrtcSCTPMaxReceiveBufferBytes < 0 {
		return Config{}, fmt.Errorf("--webrtc-sctp-max-receive-buffer-bytes must be >= 0")
	}
	if webrtcSCTPMaxReceiveBufferBytes != 0 && webrtcSCTPMaxReceiveBufferBytes < minWebRTCSCTPReceiveBufferBytes {
		return Config{}, fmt.Errorf("--webrtc-sctp-max-receive-buffer-bytes must be 0 or >= %d", minWebRTCSCTPReceiveBufferBytes)
	}

	var portRange *UDPPortRange
	if webrtcUDPPortMin != 0 || webrtcUDPPortMax != 0 {
		if webrtcUDPPortMin == 0 || webrtcUDPPortMax == 0 {
			return Config{}, fmt.Errorf("--webrtc-udp-port-min and --webrtc-udp-port-max must be set together (or both unset)")
		}
		minPort, err := parsePortUint(webrtcUDPPortMin)
		if err != nil {
			return Config{}, fmt.Errorf("invalid --webrtc-udp-port-min: %w", err)
		}
		maxPort, err := parsePortUint(webrtcUDPPortMax)
		if err != nil {
			return Config{}, fmt.Errorf("invalid --webrtc-udp-port-max: %w", err)
		}
		if minPort > maxPort {
			return Config{}, fmt.Errorf("--webrtc-udp-port-min (%d) must be <= --webrtc-udp-port-max (%d)", minPort, maxPort)
		}
		portRange = &UDPPortRange{Min: minPort, Max: maxPort}
	}

	listenIP := net.ParseIP(strings.TrimSpace(webrtcUDPListenIPStr))
	if listenIP == nil {
		return Config{}, fmt.Errorf("invalid --webrtc-udp-listen-ip %q", webrtcUDPListenIPStr)
	}

	nat1To1IPs, err := parseIPList(webrtcNAT1To1IPsStr)
	if err != nil {
		return Config{}, fmt.Errorf("invalid --webrtc-nat-1to1-ips: %w", err)
	}

	allowedOrigins, err := parseAllowedOrigins(allowedOriginsStr)
	if err != nil {
		return Config{}, fmt.Errorf("invalid --allowed-origins: %w", err)
	}

	iceServers, err := parseICEServersFromValues(iceServersJSON, stunURLs, turnURLs, turnUsername, turnCredential)
	if err != nil {
		return Config{}, err
	}

	return Config{
		ListenAddr:      listenAddr,
		Mode:            mode,
		LogFormat:       logFormat,
		LogLevel:        level,
		ShutdownTimeout: shutdownTimeout,
		TLSCertFile:     tlsCertFile,
		TLSKeyFile:      tlsKeyFile,
		AllowedOrigins:  allowedOrigins,

		MaxSessions:           maxSessions,
		SessionSendQueueBytes: sessionSendQueueBytes,
		MaxChatMessageBytes:   maxChatMessageBytes,
		NegotiationTimeout:    negotiationTimeout,

		SignalingWSIdleTimeout:        signalingWSIdleTimeout,
		SignalingWSPingInterval:       signalingWSPingInterval,
		MaxSignalingMessageBytes:      maxSignalingMessageBytes,
		MaxSignalingMessagesPerSecond: maxSignalingMessagesPerSecond,

		AdminConsole:  adminConsole,
		AdminNickname: strings.TrimSpace(adminNickname),

		ICEServers:                      iceServers,
		WebRTCUDPPortRange:              portRange,
		WebRTCNAT1To1IPs:                nat1To1IPs,
		WebRTCUDPListenIP:               listenIP,
		WebRTCSCTPMaxReceiveBufferBytes: webrtcSCTPMaxReceiveBufferBytes,
	}, nil
}

func NewLogger(cfg Config) (*slog.Logger, error) {
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}

	var handler slog.Handler
	switch cfg.LogFormat {
	case LogFormatText:
		handler = slog.NewTextHandler(os.Stdout, opts)
	case LogFormatJSON:
		handler = slog.NewJSONHandler(os.Stdout, opts)
	default:
		return nil, fmt.Errorf("unsupported log format %q", cfg.LogFormat)
	}

	return slog.New(handler), nil
}

func envOrDefault(lookup func(string) (string, bool), key, fallback string) string {
	if v, ok := lookup(key); ok && v != "" {
		return v
	}
	return fallback
}

func envIntOrDefault(lookup func(string) (string, bool), key string, fallback int) (int, error) {
	raw, ok := lookup(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return n, nil
}

func envDurationOrDefault(lookup func(string) (string, bool), key string, fallback time.Duration) (time.Duration, error) {
	raw, ok := lookup(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return d, nil
}

func defaultLogFormatForMode(mode Mode) string {
	if mode == ModeProd {
		return string(LogFormatJSON)
	}
	return string(LogFormatText)
}

func defaultLogLevelForMode(mode Mode) string {
	if mode == ModeProd {
		return "info"
	}
	return "debug"
}

func parseMode(raw string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case string(ModeDev), "development":
		return ModeDev, nil
	case string(ModeProd), "production":
		return ModeProd, nil
	default:
		return "", fmt.Errorf("invalid mode %q (expected dev or prod)", raw)
	}
}

func parseLogFormat(raw string) (LogFormat, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case string(LogFormatText):
		return LogFormatText, nil
	case string(LogFormatJSON):
		return LogFormatJSON, nil
	default:
		return "", fmt.Errorf("invalid log format %q (expected text or json)", raw)
	}
}

func parseLogLevel(raw string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid log level %q (expected debug, info, warn, error)", raw)
	}
}

// IsUnspecifiedIP reports whether ip is nil or 0.0.0.0/::.
func IsUnspecifiedIP(ip net.IP) bool {
	return ip == nil || ip.IsUnspecified()
}

func parsePortString(s string) (uint16, error) {
	n, err := strconv.ParseUint(strings.TrimSpace(s), 10, 16)
	if err != nil {
		return 0, err
	}
	return parsePortUint(uint(n))
}

func parsePortUint(v uint) (uint16, error) {
	if v == 0 || v > 65535 {
		return 0, fmt.Errorf("port %d out of range (1-65535)", v)
	}
	return uint16(v), nil
}

func parseIPList(s string) ([]string, error) {
	parts := splitCommaSeparated(s)
	for _, part := range parts {
		if net.ParseIP(part) == nil {
			return nil, fmt.Errorf("%q is not a literal IP address", part)
		}
	}
	return parts, nil
}

func parseAllowedOrigins(s string) ([]string, error) {
	parts := splitCommaSeparated(s)
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if part == "*" {
			out = append(out, part)
			continue
		}
		normalized, _, ok := origin.Normalize(part)
		if !ok {
			return nil, fmt.Errorf("%q is not an origin (expected scheme://host[:port], \"null\" or \"*\")", part)
		}
		out = append(out, normalized)
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out, nil
}
