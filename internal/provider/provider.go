// Package provider integrates fuel-card providers. Each client
// normalizes a provider's transaction format into domain.Transaction;
// the Service pulls transactions through the clients into the
// repository and onto the event bus.
package provider

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fuelguard/fuelguard/internal/domain"
)

var (
	// ErrAuth indicates the provider rejected the credentials.
	ErrAuth = errors.New("provider authentication failed")

	// ErrUnknownProvider indicates an unrecognized provider name.
	ErrUnknownProvider = errors.New("unknown provider")
)

// Credentials holds provider-specific secrets (API keys, tokens).
type Credentials map[string]string

// Client is a fuel-card provider integration. Implementations fetch
// raw transactions and return them already normalized.
type Client interface {
	// Name returns the provider identifier (okq8, preem, shell, circlek).
	Name() string

	// ValidateCredentials checks the credentials against the provider.
	ValidateCredentials(ctx context.Context) error

	// FetchTransactions returns normalized transactions in [from, to].
	FetchTransactions(ctx context.Context, from, to time.Time) ([]domain.Transaction, error)
}

// New returns the client for a provider name.
func New(name string, creds Credentials) (Client, error) {
	switch name {
	case domain.ProviderOKQ8:
		return NewOKQ8Client(creds), nil
	case domain.ProviderPreem:
		return NewPreemClient(creds), nil
	case domain.ProviderShell:
		return NewShellClient(creds), nil
	case domain.ProviderCircleK:
		return NewCircleKClient(creds), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, name)
	}
}
