package httpapi

import (
	"context"
	"testing"
	"time"
)

func TestSetBaseContext_NilResetsToBackground(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	SetBaseContext(ctx)
	// nolint:staticcheck // SA1012: this test intentionally passes nil to verify fallback behavior
	SetBaseContext(nil)
	if serverBaseCtx != context.Background() {
		t.Fatalf("expected Background after nil")
	}
}

func TestJoinContexts_CancelsWhenEitherDone(t *testing.T) {
	a, ac := context.WithCancel(context.Background())
	b, bc := context.WithCancel(context.Background())
	defer bc()
	j, cancelJ := joinContexts(a, b)
	defer cancelJ()
	ac()
	select {
	case <-j.Done():
	case <-time.After(500 * time.Millisecond):
		t.Fatal("joined context did not cancel when first parent canceled")
	}
}

func TestGenerationContext_ShutdownCancels(t *testing.T) {
	base, stop := context.WithCancel(context.Background())
	SetBaseContext(base)
	defer SetBaseContext(nil)

	r := newFixtureRequest()
	ctx, cancel := generationContext(r, context.Background(), transportREST)
	defer cancel()
	stop()
	select {
	case <-ctx.Done():
	case <-time.After(500 * time.Millisecond):
		t.Fatal("generation context did not follow shutdown")
	}
}

func TestGenerationContext_AppliesTimeout(t *testing.T) {
	SetGenerateTimeoutSeconds(5)
	defer SetGenerateTimeoutSeconds(0)
	ctx, cancel := generationContext(newFixtureRequest(), context.Background(), transportREST)
	defer cancel()
	if _, ok := ctx.Deadline(); !ok {
		t.Fatal("expected a deadline")
	}
}
