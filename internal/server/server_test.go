package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/congo-pay/multisig/internal/config"
	"github.com/congo-pay/multisig/internal/logging"
)

func TestNewServesHealthInDevelopment(t *testing.T) {
	srv, err := New(config.Config{AppName: "test", Env: "dev", JWTSecret: "x"}, nil, nil, logging.Discard())
	if err != nil {
		t.Fatalf("new server: %v", err)
	}

	resp, err := srv.App().Test(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.StatusCode)
	}
}
