package infra

import (
	"context"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
)

func TestNewRedisClient(t *testing.T) {
	ctx := context.Background()
	if _, err := NewRedisClient(ctx, "", "multisig"); err == nil {
		t.Fatal("expected error for empty url")
	}
	if _, err := NewRedisClient(ctx, "://bad", "multisig"); err == nil {
		t.Fatal("expected error for malformed url")
	}

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	defer mr.Close()

	client, err := NewRedisClient(ctx, "redis://"+mr.Addr(), "")
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer client.Close()
	if err := client.Set(ctx, "k", "v", 0).Err(); err != nil {
		t.Fatalf("set: %v", err)
	}
	if got, _ := mr.Get("k"); got != "v" {
		t.Fatalf("expected v, got %q", got)
	}
}

func TestNewPostgresPoolRequiresURL(t *testing.T) {
	if _, err := NewPostgresPool(context.Background(), "", "multisig"); err == nil {
		t.Fatal("expected error for empty url")
	}
	if _, err := NewPostgresPool(context.Background(), "postgres://%zz", "multisig"); err == nil {
		t.Fatal("expected error for malformed url")
	}
}
