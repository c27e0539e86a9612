package auth

import (
	"crypto/tls"

	"github.com/couchbase/gocbcore/v10"
)

// PasswordProvider authenticates every endpoint with the same RBAC credentials.
type PasswordProvider struct {
	creds Credentials
}

// NewPasswordProvider creates a password provider.
//
// Example:
//
//	provider := auth.NewPasswordProvider("Administrator", "password")
func NewPasswordProvider(username, password string) *PasswordProvider {
	return &PasswordProvider{creds: Credentials{Username: username, Password: password}}
}

// Credentials returns the fixed pair regardless of endpoint.
func (p *PasswordProvider) Credentials(gocbcore.AuthCredsRequest) ([]gocbcore.UserPassPair, error) {
	return p.creds.pairs(), nil
}

func (p *PasswordProvider) SupportsTLS() bool    { return true }
func (p *PasswordProvider) SupportsNonTLS() bool { return true }

// Certificate returns nil: password auth presents no client certificate.
func (p *PasswordProvider) Certificate(gocbcore.AuthCertRequest) (*tls.Certificate, error) {
	return nil, nil
}
