package webrtcpeer_test

import (
	"testing"

	"github.com/pion/logging"
	"github.com/pion/transport/v4/vnet"
	"github.com/pion/webrtc/v4"
)

// newVNetPair starts a virtual router with two hosts and returns a SettingEngine
// hook for each side.
func newVNetPair(t *testing.T) (client, server func(*webrtc.SettingEngine)) {
	t.Helper()

	router, err := vnet.NewRouter(&vnet.RouterConfig{
		CIDR:          "10.0.0.0/24",
		LoggerFactory: logging.NewDefaultLoggerFactory(),
	})
	if err != nil {
		t.Fatalf("new router: %v", err)
	}

	netClient, err := vnet.NewNet(&vnet.NetConfig{StaticIPs: []string{"10.0.0.1"}})
	if err != nil {
		t.Fatalf("new client net: %v", err)
	}
	netServer, err := vnet.NewNet(&vnet.NetConfig{StaticIPs: []string{"10.0.0.2"}})
	if err != nil {
		t.Fatalf("new server net: %v", err)
	}
	if err := router.AddNet(netClient); err != nil {
		t.Fatalf("add client net: %v", err)
	}
	if err := router.AddNet(netServer); err != nil {
		t.Fatalf("add server net: %v", err)
	}
	if err := router.Start(); err != nil {
		t.Fatalf("start router: %v", err)
	}
	t.Cleanup(func() { _ = router.Stop() })

	return func(se *webrtc.SettingEngine) { se.SetNet(netClient) },
		func(se *webrtc.SettingEngine) { se.SetNet(netServer) }
}

func newClientPC(t *testing.T, opt func(*webrtc.SettingEngine)) *webrtc.PeerConnection {
	t.Helper()
	se := webrtc.SettingEngine{}
	opt(&se)
	pc, err := webrtc.NewAPI(webrtc.WithSettingEngine(se)).NewPeerConnection(webrtc.Configuration{})
	if err != nil {
		t.Fatalf("new client pc: %v", err)
	}
	t.Cleanup(func() { _ = pc.Close() })
	return pc
}
