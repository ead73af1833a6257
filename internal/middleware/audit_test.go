package middleware

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/multisig/internal/auth"
	"github.com/congo-pay/multisig/internal/principal"
)

func decodeRecords(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var rec map[string]any
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			t.Fatalf("decode log line %q: %v", line, err)
		}
		out = append(out, rec)
	}
	return out
}

func TestAuditRecordsCallerAndWallet(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	caller, err := principal.New()
	if err != nil {
		t.Fatalf("new address: %v", err)
	}
	wallet, err := principal.New()
	if err != nil {
		t.Fatalf("new address: %v", err)
	}

	app := fiber.New()
	app.Use(RequestID(), Audit(logger))
	app.Use(func(c *fiber.Ctx) error {
		auth.SetCaller(c, "u1", caller)
		return c.Next()
	})
	app.Get("/api/v1/multisig/:wallet/balance", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"amount": 0})
	})
	app.Post("/api/v1/multisig/:wallet/proposals", func(c *fiber.Ctx) error {
		return fiber.NewError(fiber.StatusForbidden, "caller is not an owner of the wallet")
	})

	req := httptest.NewRequest(fiber.MethodGet, "/api/v1/multisig/"+wallet.String()+"/balance", nil)
	req.Header.Set(requestIDHeader, "req-1")
	if _, err := app.Test(req); err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	req = httptest.NewRequest(fiber.MethodPost, "/api/v1/multisig/"+wallet.String()+"/proposals", nil)
	if _, err := app.Test(req); err != nil {
		t.Fatalf("app.Test: %v", err)
	}

	records := decodeRecords(t, &buf)
	if len(records) != 2 {
		t.Fatalf("expected 2 audit records, got %d: %s", len(records), buf.String())
	}
	ok, rejected := records[0], records[1]
	if ok["level"] != "INFO" || ok["request_id"] != "req-1" {
		t.Fatalf("unexpected success record: %v", ok)
	}
	if ok["caller"] != caller.String() || ok["wallet"] != wallet.String() {
		t.Fatalf("expected caller and wallet attributes, got %v", ok)
	}
	if rejected["level"] != "WARN" || rejected["status"] != float64(fiber.StatusForbidden) {
		t.Fatalf("unexpected rejection record: %v", rejected)
	}
	if rejected["reason"] != "caller is not an owner of the wallet" {
		t.Fatalf("expected rejection reason, got %v", rejected["reason"])
	}
}

func TestWalletFromPath(t *testing.T) {
	tests := map[string]string{
		"/api/v1/multisig/abc/proposals/1/approve": "abc",
		"/api/v1/multisig/abc":                     "abc",
		"/api/v1/multisig":                         "",
		"/api/v1/me":                               "",
	}
	for path, want := range tests {
		if got := walletFromPath(path); got != want {
			t.Fatalf("walletFromPath(%q) = %q, want %q", path, got, want)
		}
	}
}

func TestRequestIDReplacesOversizedValue(t *testing.T) {
	app := fiber.New()
	app.Use(RequestID())
	app.Get("/", func(c *fiber.Ctx) error {
		return c.SendString(RequestIDFrom(c))
	})

	req := httptest.NewRequest(fiber.MethodGet, "/", nil)
	req.Header.Set(requestIDHeader, strings.Repeat("x", maxRequestIDLen+1))
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	got := resp.Header.Get(requestIDHeader)
	if got == "" || len(got) > maxRequestIDLen {
		t.Fatalf("expected a generated request id, got %q", got)
	}

	req = httptest.NewRequest(fiber.MethodGet, "/", nil)
	req.Header.Set(requestIDHeader, "client-id")
	resp, err = app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if got := resp.Header.Get(requestIDHeader); got != "client-id" {
		t.Fatalf("expected echoed request id, got %q", got)
	}
}
