package main

import (
	"crypto/ecdsa"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/golang-jwt/jwt"
)

func loadPrivateKey(keyDir, deviceID string) (*ecdsa.PrivateKey, error) {
	privateKeyPath := filepath.Join(keyDir, deviceID+".key")
	privateKeyBytes, err := os.ReadFile(privateKeyPath)
	if err != nil {
		return nil, err
	}

	privateKey, err := jwt.ParseECPrivateKeyFromPEM(privateKeyBytes)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", privateKeyPath, err)
	}

	return privateKey, nil
}

// createJWTToken signs an ES256 token for deviceID that expires after ttl.
func createJWTToken(key *ecdsa.PrivateKey, deviceID string, now time.Time, ttl time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodES256, jwt.StandardClaims{
		Subject:   deviceID,
		ExpiresAt: now.Add(ttl).Unix(),
	})

	return token.SignedString(key)
}
