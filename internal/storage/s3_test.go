package storage

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"errors"
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spec-kit/pet-registry/internal/config"
)

func TestNewS3StoreDisabledWithoutBucket(t *testing.T) {
	if _, err := NewS3Store(context.Background(), config.StorageConfig{}); !errors.Is(err, ErrDisabled) {
		t.Fatalf("expected ErrDisabled, got %v", err)
	}
}

func TestS3StorePresignGet(t *testing.T) {
	store, err := NewS3Store(context.Background(), config.StorageConfig{
		Endpoint:       "minio.local:9000",
		Region:         "us-east-1",
		AccessKey:      "access",
		SecretKey:      "secret",
		Bucket:         "pets",
		ForcePathStyle: true,
	})
	if err != nil {
		t.Fatalf("NewS3Store returned error: %v", err)
	}

	url, err := store.PresignGet(context.Background(), "pets/p1/photo.jpg", 15*time.Minute)
	if err != nil {
		t.Fatalf("PresignGet returned error: %v", err)
	}
	if !strings.HasPrefix(url, "https://minio.local:9000/pets/pets/p1/photo.jpg?") {
		t.Fatalf("unexpected presigned url %s", url)
	}
	if !strings.Contains(url, "X-Amz-Expires=900") {
		t.Fatalf("expected 900s expiry in %s", url)
	}
}

func TestNewS3StoreHonorsCustomCABundle(t *testing.T) {
	t.Setenv("AWS_CA_BUNDLE", writeTestCABundle(t))

	store, err := NewS3Store(context.Background(), config.StorageConfig{
		Endpoint:       "https://minio.internal:9000",
		Region:         "us-east-1",
		AccessKey:      "access",
		SecretKey:      "secret",
		Bucket:         "pets",
		ForcePathStyle: true,
	})
	if err != nil {
		t.Fatalf("NewS3Store with AWS_CA_BUNDLE returned error: %v", err)
	}
	if _, err := store.PresignGet(context.Background(), "pets/p1/photo.png", time.Minute); err != nil {
		t.Fatalf("PresignGet returned error: %v", err)
	}
}

func writeTestCABundle(t *testing.T) string {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	tmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: "pet-registry test ca"},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(time.Hour),
		IsCA:                  true,
		BasicConstraintsValid: true,
		KeyUsage:              x509.KeyUsageCertSign,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("create certificate: %v", err)
	}
	path := filepath.Join(t.TempDir(), "ca.pem")
	if err := os.WriteFile(path, pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}), 0o600); err != nil {
		t.Fatalf("write bundle: %v", err)
	}
	return path
}

func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore("http://localhost/blobs/")
	ctx := context.Background()

	if _, err := store.PresignGet(ctx, "missing", time.Minute); err == nil {
		t.Fatalf("expected error for missing object")
	}
	if err := store.Put(ctx, "k", "image/png", []byte{1, 2, 3}); err != nil {
		t.Fatalf("Put returned error: %v", err)
	}
	ct, body, ok := store.Object("k")
	if !ok || ct != "image/png" || len(body) != 3 {
		t.Fatalf("unexpected object %q %v %v", ct, body, ok)
	}
	url, _ := store.PresignGet(ctx, "k", time.Minute)
	if url != "http://localhost/blobs/k?expires=60" {
		t.Fatalf("unexpected url %s", url)
	}
}
