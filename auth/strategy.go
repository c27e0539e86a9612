// Package auth provides gocbcore authentication providers for management
// connections.
//
// Three providers are available:
//
//   - Password: fixed RBAC username and password for every endpoint
//   - Certificate: a client certificate presented over TLS
//   - Rotating: credentials fetched on demand and cached per endpoint
//
// # Password
//
//	cluster, _ := client.Connect("couchbase://10.0.0.1", auth.NewPasswordProvider("Administrator", "password"))
//
// # Certificate
//
// Certificate authentication requires a couchbases:// connection string; the
// provider refuses non-TLS connections.
//
//	provider, err := auth.NewCertificateProvider("client.pem", "client.key")
//
// # Rotating
//
// Rotating credentials come from a secret store. They are fetched lazily,
// cached for a lifespan, and refetched after Invalidate.
//
//	provider := auth.NewRotatingProvider(func(ctx context.Context, endpoint string) (auth.Credentials, error) {
//	    return vault.Lookup(ctx, "couchbase/"+endpoint)
//	})
package auth

import (
	"github.com/couchbase/gocbcore/v10"
)

// Credentials is a username and password pair.
type Credentials struct {
	Username string
	Password string
}

func (c Credentials) pairs() []gocbcore.UserPassPair {
	return []gocbcore.UserPassPair{{Username: c.Username, Password: c.Password}}
}

var (
	_ gocbcore.AuthProvider = (*PasswordProvider)(nil)
	_ gocbcore.AuthProvider = (*CertificateProvider)(nil)
	_ gocbcore.AuthProvider = (*RotatingProvider)(nil)
)
