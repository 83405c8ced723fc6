package utils

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// GenerateSecret generates a cryptographically secure random hex secret
func GenerateSecret(bytes int) (string, error) {
	b := make([]byte, bytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// GeneratedSecrets are the values cmd/generate-secrets prints for a new deployment
type GeneratedSecrets struct {
	JWTSecret     string
	WebhookSecret string
}

// GenerateDeploymentSecrets generates the JWT signing key and the gateway webhook secret
func GenerateDeploymentSecrets() (*GeneratedSecrets, error) {
	jwtSecret, err := GenerateSecret(32) // 256-bit
	if err != nil {
		return nil, fmt.Errorf("failed to generate jwt secret: %w", err)
	}

	webhookSecret, err := GenerateSecret(24)
	if err != nil {
		return nil, fmt.Errorf("failed to generate webhook secret: %w", err)
	}

	return &GeneratedSecrets{JWTSecret: jwtSecret, WebhookSecret: webhookSecret}, nil
}
