package config

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func baseEnv() map[string]string {
	return map[string]string{
		"API_FIRESTORE_PROJECT_ID": "demo-project",
		"API_GATEWAY_API_KEY":      "key-123",
		"API_GATEWAY_API_SECRET":   "secret-456",
		"API_GATEWAY_MERCHANT_ID":  "merchant-789",
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(context.Background(),
		WithEnvMap(baseEnv()),
		WithoutSystemEnv(),
		WithEnvFile(""),
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != "8080" {
		t.Fatalf("expected default port 8080, got %s", cfg.Server.Port)
	}
	if cfg.Gateway.Timeout != 5*time.Second {
		t.Fatalf("expected default gateway timeout 5s, got %s", cfg.Gateway.Timeout)
	}
	if cfg.Gateway.BaseURL == "" {
		t.Fatalf("expected default gateway base URL")
	}
	if cfg.Events.ProjectID != "demo-project" {
		t.Fatalf("expected events project to fall back to firestore project, got %s", cfg.Events.ProjectID)
	}
	if cfg.Events.TopicID != "order-events" {
		t.Fatalf("expected default events topic, got %s", cfg.Events.TopicID)
	}
}

func TestLoadEnvMapTakesPrecedence(t *testing.T) {
	t.Setenv("API_SERVER_PORT", "9999")

	env := baseEnv()
	env["API_SERVER_PORT"] = "7070"

	cfg, err := Load(context.Background(), WithEnvMap(env), WithEnvFile(""))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Port != "7070" {
		t.Fatalf("expected explicit env map to win, got %s", cfg.Server.Port)
	}
}

func TestLoadParsesDurations(t *testing.T) {
	env := baseEnv()
	env["API_GATEWAY_TIMEOUT"] = "2s"
	env["API_SERVER_READ_TIMEOUT"] = "bogus"

	cfg, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Gateway.Timeout != 2*time.Second {
		t.Fatalf("expected 2s gateway timeout, got %s", cfg.Gateway.Timeout)
	}
	if cfg.Server.ReadTimeout != 15*time.Second {
		t.Fatalf("expected invalid duration to fall back to default, got %s", cfg.Server.ReadTimeout)
	}
}

func TestLoadReportsMissingFields(t *testing.T) {
	env := baseEnv()
	delete(env, "API_GATEWAY_API_SECRET")
	delete(env, "API_GATEWAY_MERCHANT_ID")

	_, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""))
	if err == nil {
		t.Fatalf("expected validation error")
	}

	var validation *ValidationError
	if !errors.As(err, &validation) {
		t.Fatalf("expected ValidationError, got %T", err)
	}
	fields := strings.Join(validation.Fields(), ",")
	if !strings.Contains(fields, "Gateway.APISecret") || !strings.Contains(fields, "Gateway.MerchantID") {
		t.Fatalf("expected missing gateway fields reported, got %s", fields)
	}
}

func TestLoadResolvesSecretReferences(t *testing.T) {
	env := baseEnv()
	env["API_GATEWAY_API_SECRET"] = "sm://projects/demo/secrets/gateway-secret/versions/latest"

	var requested string
	resolver := SecretResolverFunc(func(_ context.Context, ref string) (string, error) {
		requested = ref
		return "resolved-secret", nil
	})

	cfg, err := Load(context.Background(),
		WithEnvMap(env),
		WithoutSystemEnv(),
		WithEnvFile(""),
		WithSecretResolver(resolver),
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Gateway.APISecret != "resolved-secret" {
		t.Fatalf("expected resolved secret, got %s", cfg.Gateway.APISecret)
	}
	if !strings.HasPrefix(requested, "secret://") {
		t.Fatalf("expected sm:// reference normalised to secret://, got %s", requested)
	}
}

func TestLoadSecretResolutionFailure(t *testing.T) {
	env := baseEnv()
	env["API_GATEWAY_API_KEY"] = "secret://projects/demo/secrets/gateway-key/versions/1"

	resolver := SecretResolverFunc(func(context.Context, string) (string, error) {
		return "", errors.New("backend down")
	})

	_, err := Load(context.Background(),
		WithEnvMap(env),
		WithoutSystemEnv(),
		WithEnvFile(""),
		WithSecretResolver(resolver),
	)
	if err == nil {
		t.Fatalf("expected error")
	}
	var secretErr *SecretError
	if !errors.As(err, &secretErr) {
		t.Fatalf("expected SecretError, got %T", err)
	}
	if secretErr.Ref == "" {
		t.Fatalf("expected secret ref recorded")
	}
}
