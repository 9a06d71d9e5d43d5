package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dkeye/Consult/internal/adapters/signal"
	"github.com/dkeye/Consult/internal/app"
	"github.com/dkeye/Consult/internal/app/orch"
	"github.com/dkeye/Consult/internal/app/sfu"
	"github.com/dkeye/Consult/internal/config"
	"github.com/dkeye/Consult/internal/core"
	"github.com/dkeye/Consult/internal/security"
	"github.com/gin-gonic/gin"
)

func newTestRouter(t *testing.T) (*gin.Engine, *orch.Orchestrator) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	cfg := &config.Config{Mode: "test", Secret: "test-secret", ChatRateLimit: 5, ChatRateInterval: time.Second}
	o := &orch.Orchestrator{
		Registry: app.NewRegistry(),
		Channels: app.NewChannelManager("consult"),
		Policy:   app.SimplePolicy{},
		Relays:   sfu.NewRelayManager(),
		Tokens:   security.NewTokenProvider(cfg.Secret, "consult", time.Minute),
	}
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return SetupRouter(ctx, cfg, o, signal.NewController(o, cfg)), o
}

func TestIssueTokens(t *testing.T) {
	r, o := newTestRouter(t)

	tests := []struct {
		name string
		body string
		want int
	}{
		{"client", `{"uid":"u-client","role":"client"}`, http.StatusOK},
		{"expert", `{"uid":"u-expert","role":"expert"}`, http.StatusOK},
		{"bad json", `{"uid":`, http.StatusBadRequest},
		{"missing uid", `{"role":"client"}`, http.StatusBadRequest},
		{"long uid", `{"uid":"` + strings.Repeat("x", 65) + `","role":"client"}`, http.StatusBadRequest},
		{"bad role", `{"uid":"u-client","role":"admin"}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/api/sessions/D-100/tokens", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			r.ServeHTTP(w, req)
			if w.Code != tt.want {
				t.Fatalf("status = %d, want %d (%s)", w.Code, tt.want, w.Body.String())
			}
			if tt.want != http.StatusOK {
				var e ErrorResponse
				if err := json.Unmarshal(w.Body.Bytes(), &e); err != nil || e.Error == "" {
					t.Errorf("error body = %q, want an error message", w.Body.String())
				}
				return
			}

			var tok core.Tokens
			if err := json.Unmarshal(w.Body.Bytes(), &tok); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if tok.AppID != "consult" || tok.Channel != "D-100" {
				t.Errorf("tokens = %+v, want consult/D-100", tok)
			}
			claims, err := o.Tokens.Consume(tok.MediaToken, security.PlaneMedia)
			if err != nil {
				t.Fatalf("Consume(media): %v", err)
			}
			if claims.Channel != "D-100" {
				t.Errorf("claims channel = %q, want D-100", claims.Channel)
			}
		})
	}
}

func TestHealthAndChannels(t *testing.T) {
	r, o := newTestRouter(t)
	o.Channels.GetOrCreate("D-100")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	var health HealthResponse
	if err := json.Unmarshal(w.Body.Bytes(), &health); err != nil {
		t.Fatalf("decode health: %v", err)
	}
	if w.Code != http.StatusOK || health.Status != "ok" || health.Channels != 1 {
		t.Errorf("health = %d %+v, want 200 ok/1", w.Code, health)
	}
	if !strings.Contains(w.Header().Get("Set-Cookie"), "ConsultSessions=") {
		t.Errorf("Set-Cookie = %q, want a ConsultSessions cookie", w.Header().Get("Set-Cookie"))
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/channels", nil))
	var list []core.ChannelInfo
	if err := json.Unmarshal(w.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode channels: %v", err)
	}
	if len(list) != 1 || list[0].ID != "D-100" {
		t.Errorf("channels = %+v, want [D-100]", list)
	}
}
