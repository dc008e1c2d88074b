package secrets

import (
	"context"
	"errors"
	"testing"

	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/googleapis/gax-go/v2"
)

type fakeSecretManagerClient struct {
	calls    int
	lastName string
	payload  string
	err      error
}

func (f *fakeSecretManagerClient) AccessSecretVersion(_ context.Context, req *secretmanagerpb.AccessSecretVersionRequest, _ ...gax.CallOption) (*secretmanagerpb.AccessSecretVersionResponse, error) {
	f.calls++
	f.lastName = req.GetName()
	if f.err != nil {
		return nil, f.err
	}
	return &secretmanagerpb.AccessSecretVersionResponse{
		Name: req.GetName(),
		Payload: &secretmanagerpb.SecretPayload{
			Data: []byte(f.payload),
		},
	}, nil
}

func (f *fakeSecretManagerClient) Close() error { return nil }

func TestFetcherResolvesFullReference(t *testing.T) {
	client := &fakeSecretManagerClient{payload: "s3cret"}
	fetcher, err := NewFetcher(context.Background(), WithSecretManagerClient(client))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	value, err := fetcher.Resolve(context.Background(), "secret://projects/demo/secrets/gateway-key/versions/3")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if value != "s3cret" {
		t.Fatalf("expected payload, got %q", value)
	}
	if client.lastName != "projects/demo/secrets/gateway-key/versions/3" {
		t.Fatalf("unexpected canonical name %q", client.lastName)
	}
}

func TestFetcherAppendsLatestVersion(t *testing.T) {
	client := &fakeSecretManagerClient{payload: "v"}
	fetcher, err := NewFetcher(context.Background(), WithSecretManagerClient(client))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := fetcher.Resolve(context.Background(), "secret://projects/demo/secrets/gateway-key"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if client.lastName != "projects/demo/secrets/gateway-key/versions/latest" {
		t.Fatalf("unexpected canonical name %q", client.lastName)
	}
}

func TestFetcherShortReferenceUsesDefaultProject(t *testing.T) {
	client := &fakeSecretManagerClient{payload: "v"}
	fetcher, err := NewFetcher(context.Background(),
		WithSecretManagerClient(client),
		WithDefaultProject("demo"),
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := fetcher.Resolve(context.Background(), "secret://gateway-key"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if client.lastName != "projects/demo/secrets/gateway-key/versions/latest" {
		t.Fatalf("unexpected canonical name %q", client.lastName)
	}
}

func TestFetcherShortReferenceWithoutProjectFails(t *testing.T) {
	fetcher, err := NewFetcher(context.Background(), WithSecretManagerClient(&fakeSecretManagerClient{}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := fetcher.Resolve(context.Background(), "secret://gateway-key"); err == nil {
		t.Fatalf("expected error for short reference without default project")
	}
}

func TestFetcherCachesValues(t *testing.T) {
	client := &fakeSecretManagerClient{payload: "cached"}
	fetcher, err := NewFetcher(context.Background(), WithSecretManagerClient(client))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ref := "secret://projects/demo/secrets/gateway-key/versions/1"
	for i := 0; i < 3; i++ {
		if _, err := fetcher.Resolve(context.Background(), ref); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if client.calls != 1 {
		t.Fatalf("expected a single backend call, got %d", client.calls)
	}
}

func TestFetcherPropagatesBackendErrors(t *testing.T) {
	client := &fakeSecretManagerClient{err: errors.New("unavailable")}
	fetcher, err := NewFetcher(context.Background(), WithSecretManagerClient(client))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := fetcher.Resolve(context.Background(), "secret://projects/demo/secrets/x/versions/1"); err == nil {
		t.Fatalf("expected backend error to propagate")
	}
}
