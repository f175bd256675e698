package signal

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pion/webrtc/v3"

	"supermock/internal/core/domain"
	"supermock/pkg/config"
)

// Inbound message types.
const (
	msgJoinRoom  = "join_room"
	msgLeaveRoom = "leave_room"
	msgChat      = string(domain.EventChatMessage)
	msgOffer     = string(domain.EventWebRTCOffer)
	msgAnswer    = string(domain.EventWebRTCAnswer)
	msgICE       = string(domain.EventWebRTCICE)
)

// Outbound types that are not domain events.
const (
	typeRoomJoined domain.EventType = "room_joined"
	typeRoomLeft   domain.EventType = "room_left"
	typeError      domain.EventType = "error"
)

// Error codes sent back to the client.
const (
	codeJoinDenied  = "join_denied"
	codeNotInRoom   = "not_in_room"
	codeBadMessage  = "bad_message"
	codeRateLimited = "rate_limited"
	codeInternal    = "internal_error"
)

// SignalMessage is a client request.
type SignalMessage struct {
	Type      string           `json:"type" validate:"required,oneof=join_room leave_room chat_message webrtc_offer webrtc_answer webrtc_ice"`
	SessionID domain.SessionID `json:"session_id" validate:"required,max=128,id"`
	// Target narrows a WebRTC relay to one user.
	Target  domain.UserID   `json:"target,omitempty" validate:"omitempty,max=128,id"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type ChatRequest struct {
	Message string `json:"message"`
	Name    string `json:"name,omitempty"`
}

type RoomJoinedPayload struct {
	SessionID  domain.SessionID   `json:"sessionId"`
	Members    []domain.UserID    `json:"members"`
	ICEServers []webrtc.ICEServer `json:"iceServers"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ICEServers converts configured STUN/TURN entries to the WebRTC type
// handed to browsers.
func ICEServers(servers []config.ICEServer) []webrtc.ICEServer {
	out := make([]webrtc.ICEServer, 0, len(servers))
	for _, s := range servers {
		ice := webrtc.ICEServer{URLs: s.URLs, Username: s.Username}
		if s.Credential != "" {
			ice.Credential = s.Credential
			ice.CredentialType = webrtc.ICECredentialTypePassword
		}
		out = append(out, ice)
	}
	return out
}

// checkSignalPayload keeps relayed payloads opaque, but an offer or answer
// that states its SDP type must state the matching one.
func checkSignalPayload(kind string, payload json.RawMessage) error {
	if len(payload) == 0 || !json.Valid(payload) {
		return fmt.Errorf("payload must be valid JSON")
	}

	var expected webrtc.SDPType
	switch kind {
	case msgOffer:
		expected = webrtc.SDPTypeOffer
	case msgAnswer:
		expected = webrtc.SDPTypeAnswer
	default:
		return nil
	}

	var desc struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(payload, &desc); err != nil || desc.Type == "" {
		return nil
	}
	if got := webrtc.NewSDPType(strings.ToLower(desc.Type)); got != expected {
		return fmt.Errorf("%s carries sdp type %q", kind, desc.Type)
	}
	return nil
}
