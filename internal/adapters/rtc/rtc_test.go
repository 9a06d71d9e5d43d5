package rtc

import (
	"context"
	"errors"
	"testing"

	"github.com/dkeye/Consult/internal/core"
	"github.com/pion/webrtc/v4"
)

func TestWebSocketURL(t *testing.T) {
	tests := []struct {
		base string
		want string
	}{
		{"http://localhost:8080", "ws://localhost:8080/api/ws/media"},
		{"https://relay.example.com/", "wss://relay.example.com/api/ws/media"},
		{"https://relay.example.com/consult", "wss://relay.example.com/consult/api/ws/media"},
		{"localhost:8080", "ws://localhost:8080/api/ws/media"},
		{"wss://relay.example.com", "wss://relay.example.com/api/ws/media"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.base, func(t *testing.T) {
			got, err := WebSocketURL(tt.base, "/api/ws/media")
			if err != nil {
				t.Fatalf("WebSocketURL: %v", err)
			}
			if got != tt.want {
				t.Errorf("WebSocketURL = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTransport_NotJoined(t *testing.T) {
	tr := NewTransport("http://localhost:1", webrtc.Configuration{})
	ctx := context.Background()

	if err := tr.Publish(ctx); !errors.Is(err, ErrNotJoined) {
		t.Errorf("Publish err = %v, want ErrNotJoined", err)
	}
	if err := tr.Unpublish(ctx); !errors.Is(err, ErrNotJoined) {
		t.Errorf("Unpublish err = %v, want ErrNotJoined", err)
	}
	stats, err := tr.Stats(ctx)
	if !errors.Is(err, ErrNotJoined) || stats.RTT != -1 {
		t.Errorf("Stats = %+v, %v, want RTT -1 and ErrNotJoined", stats, err)
	}
	if err := tr.Subscribe(ctx, core.RemoteParticipant{UserID: "u-expert"}, core.KindAudio); !errors.Is(err, ErrNoRemoteTrack) {
		t.Errorf("Subscribe err = %v, want ErrNoRemoteTrack", err)
	}
	if got := tr.ReceivedBytes("u-expert"); got != 0 {
		t.Errorf("ReceivedBytes = %d, want 0", got)
	}
	if err := tr.Leave(ctx); err != nil {
		t.Errorf("Leave without Join: %v", err)
	}
}

func TestConnection_AnswerAndClose(t *testing.T) {
	conn, err := NewConnection(webrtc.Configuration{}, "sid-1")
	if err != nil {
		t.Fatalf("NewConnection: %v", err)
	}
	closed := 0
	conn.OnClosed(func() { closed++ })
	if err := conn.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	client, err := webrtc.NewPeerConnection(webrtc.Configuration{})
	if err != nil {
		t.Fatalf("client pc: %v", err)
	}
	defer client.Close()
	if _, err := client.AddTransceiverFromKind(webrtc.RTPCodecTypeAudio,
		webrtc.RTPTransceiverInit{Direction: webrtc.RTPTransceiverDirectionRecvonly}); err != nil {
		t.Fatalf("AddTransceiverFromKind: %v", err)
	}
	offer, err := client.CreateOffer(nil)
	if err != nil {
		t.Fatalf("CreateOffer: %v", err)
	}
	if err := client.SetLocalDescription(offer); err != nil {
		t.Fatalf("SetLocalDescription: %v", err)
	}

	answer, err := conn.ApplyOfferAndCreateAnswer(offer)
	if err != nil {
		t.Fatalf("ApplyOfferAndCreateAnswer: %v", err)
	}
	if answer.Type != webrtc.SDPTypeAnswer || answer.SDP == "" {
		t.Errorf("answer = %v, want a non-empty answer", answer.Type)
	}
	if err := client.SetRemoteDescription(*answer); err != nil {
		t.Errorf("client SetRemoteDescription: %v", err)
	}

	conn.Close()
	conn.Close()
	if !conn.IsClosed() || closed != 1 {
		t.Errorf("IsClosed = %v, onClosed calls = %d, want true, 1", conn.IsClosed(), closed)
	}
}
