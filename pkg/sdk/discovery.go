package sdk

import (
	"errors"
	"os"
)

// NewFromEnv builds a client from MEMBERGATE_ADDR and MEMBERGATE_TOKEN.
// MEMBERGATE_INSECURE_TLS=true accepts the daemon's self-signed certificate.
func NewFromEnv(opts ...Option) (*Client, error) {
	addr := os.Getenv("MEMBERGATE_ADDR")
	if addr == "" {
		addr = "http://localhost:7002"
	}
	token := os.Getenv("MEMBERGATE_TOKEN")
	if token == "" {
		return nil, errors.New("MEMBERGATE_TOKEN is not set")
	}
	if os.Getenv("MEMBERGATE_INSECURE_TLS") == "true" {
		opts = append(opts, WithInsecureTLS())
	}
	return Connect(addr, token, opts...)
}
