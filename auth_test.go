package main

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt"
)

func writeTestKey(t *testing.T, dir, deviceID string) *ecdsa.PrivateKey {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	der, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		t.Fatal(err)
	}
	block := pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: der})
	if err := os.WriteFile(filepath.Join(dir, deviceID+".key"), block, 0o600); err != nil {
		t.Fatal(err)
	}
	return key
}

func TestCreateJWTToken(t *testing.T) {
	dir := t.TempDir()
	want := writeTestKey(t, dir, "device-1")

	key, err := loadPrivateKey(dir, "device-1")
	if err != nil {
		t.Fatalf("loadPrivateKey: %v", err)
	}
	if !key.Equal(want) {
		t.Fatal("loaded key differs from the written one")
	}

	signed, err := createJWTToken(key, "device-1", time.Now(), 10*time.Minute)
	if err != nil {
		t.Fatalf("createJWTToken: %v", err)
	}

	claims := &jwt.StandardClaims{}
	token, err := jwt.ParseWithClaims(signed, claims, func(token *jwt.Token) (interface{}, error) {
		return &key.PublicKey, nil
	})
	if err != nil || !token.Valid {
		t.Fatalf("token does not verify: %v", err)
	}
	if token.Method != jwt.SigningMethodES256 {
		t.Errorf("method = %v", token.Method.Alg())
	}
	if claims.Subject != "device-1" {
		t.Errorf("subject = %q", claims.Subject)
	}
}

func TestLoadPrivateKeyErrors(t *testing.T) {
	dir := t.TempDir()
	if _, err := loadPrivateKey(dir, "absent"); err == nil {
		t.Fatal("missing key file accepted")
	}
	if err := os.WriteFile(filepath.Join(dir, "garbage.key"), []byte("not pem"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := loadPrivateKey(dir, "garbage"); err == nil {
		t.Fatal("garbage key accepted")
	}
}
