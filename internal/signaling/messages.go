package signaling

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/pion/webrtc/v4"
)

type messageType string

const (
	messageTypeOffer     messageType = "offer"
	messageTypeAnswer    messageType = "answer"
	messageTypeCandidate messageType = "candidate"
	messageTypeBye       messageType = "bye"
	messageTypeTerminate messageType = "terminate"
)

var (
	errProtocol    = errors.New("signaling protocol error")
	errNegotiation = errors.New("negotiation failed")
)

type candidate struct {
	Candidate        string  `json:"candidate"`
	SDPMid           *string `json:"sdpMid,omitempty"`
	SDPMLineIndex    *uint16 `json:"sdpMLineIndex,omitempty"`
	UsernameFragment *string `json:"usernameFragment,omitempty"`
}

func candidateFromPion(init webrtc.ICECandidateInit) candidate {
	return candidate{
		Candidate:        init.Candidate,
		SDPMid:           init.SDPMid,
		SDPMLineIndex:    init.SDPMLineIndex,
		UsernameFragment: init.UsernameFragment,
	}
}

func (c candidate) ToPion() webrtc.ICECandidateInit {
	return webrtc.ICECandidateInit{
		Candidate:        c.Candidate,
		SDPMid:           c.SDPMid,
		SDPMLineIndex:    c.SDPMLineIndex,
		UsernameFragment: c.UsernameFragment,
	}
}

// signalMessage is the JSON envelope exchanged on the WebSocket. Offers and
// answers carry the SDP as a plain string, the shape browsers produce when an
// RTCSessionDescription is serialized.
type signalMessage struct {
	Type      messageType `json:"type"`
	SDP       string      `json:"sdp,omitempty"`
	Candidate *candidate  `json:"candidate,omitempty"`
}

// isSignalFrame reports whether a text frame should be parsed as a signaling
// envelope. Anything that does not look like a JSON object is chat.
func isSignalFrame(data []byte) bool {
	trimmed := bytes.TrimSpace(data)
	return len(trimmed) >= 2 && trimmed[0] == '{' && trimmed[len(trimmed)-1] == '}'
}

// parseSignalMessage decodes an envelope. Unknown fields are tolerated so
// clients can forward browser objects as-is.
func parseSignalMessage(data []byte) (signalMessage, error) {
	var msg signalMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return signalMessage{}, fmt.Errorf("%w: %v", errProtocol, err)
	}
	switch msg.Type {
	case messageTypeOffer, messageTypeCandidate, messageTypeBye, messageTypeTerminate:
		return msg, nil
	case "":
		return signalMessage{}, fmt.Errorf("%w: missing type", errProtocol)
	default:
		return signalMessage{}, fmt.Errorf("%w: unsupported message type %q", errProtocol, msg.Type)
	}
}

func answerMessage(sdp string) signalMessage {
	return signalMessage{Type: messageTypeAnswer, SDP: sdp}
}

func candidateMessage(init webrtc.ICECandidateInit) signalMessage {
	c := candidateFromPion(init)
	return signalMessage{Type: messageTypeCandidate, Candidate: &c}
}
