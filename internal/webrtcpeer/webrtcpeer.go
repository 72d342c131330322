package webrtcpeer

import (
	"fmt"
	"log/slog"
	"net"

	"github.com/pion/webrtc/v4"

	"github.com/wilsonzlin/aero/proxy/webrtc-chat-relay/internal/config"
)

// SettingEngineOption adjusts the SettingEngine after the configured network
// settings are applied. Tests use it to attach a virtual network.
type SettingEngineOption func(*webrtc.SettingEngine)

func NewAPI(cfg config.Config, logger *slog.Logger, opts ...SettingEngineOption) (*webrtc.API, error) {
	se := webrtc.SettingEngine{
		LoggerFactory: NewLoggerFactory(logger),
	}
	if err := ApplyNetworkSettings(&se, cfg); err != nil {
		return nil, err
	}
	if cfg.WebRTCSCTPMaxReceiveBufferBytes > 0 {
		se.SetSCTPMaxReceiveBufferSize(uint32(cfg.WebRTCSCTPMaxReceiveBufferBytes))
	}
	for _, opt := range opts {
		opt(&se)
	}
	return webrtc.NewAPI(webrtc.WithSettingEngine(se)), nil
}

func ApplyNetworkSettings(se *webrtc.SettingEngine, cfg config.Config) error {
	if cfg.WebRTCUDPPortRange != nil {
		if err := se.SetEphemeralUDPPortRange(cfg.WebRTCUDPPortRange.Min, cfg.WebRTCUDPPortRange.Max); err != nil {
			return fmt.Errorf("set ephemeral udp port range: %w", err)
		}
	}

	if len(cfg.WebRTCNAT1To1IPs) > 0 {
		se.SetNAT1To1IPs(cfg.WebRTCNAT1To1IPs, webrtc.ICECandidateTypeHost)
	}

	// There is no bind-address setting; restricting gathering with an IP filter
	// has the same effect.
	if !config.IsUnspecifiedIP(cfg.WebRTCUDPListenIP) {
		listenIP := cfg.WebRTCUDPListenIP
		se.SetIPFilter(func(ip net.IP) bool {
			return ip.Equal(listenIP)
		})
	}

	return nil
}
