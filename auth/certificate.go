package auth

import (
	"crypto/tls"

	"github.com/cockroachdb/errors"
	"github.com/couchbase/gocbcore/v10"
)

// CertificateProvider authenticates with a client certificate over TLS.
type CertificateProvider struct {
	cert *tls.Certificate
}

// NewCertificateProvider loads a PEM certificate and key pair.
func NewCertificateProvider(certFile, keyFile string) (*CertificateProvider, error) {
	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return nil, errors.Wrapf(err, "load client certificate %s", certFile)
	}
	return &CertificateProvider{cert: &cert}, nil
}

// NewCertificateProviderFrom wraps an already loaded certificate.
func NewCertificateProviderFrom(cert *tls.Certificate) *CertificateProvider {
	return &CertificateProvider{cert: cert}
}

// Credentials returns a single empty pair; the server identifies the client by certificate.
func (p *CertificateProvider) Credentials(gocbcore.AuthCredsRequest) ([]gocbcore.UserPassPair, error) {
	return []gocbcore.UserPassPair{{}}, nil
}

func (p *CertificateProvider) SupportsTLS() bool    { return true }
func (p *CertificateProvider) SupportsNonTLS() bool { return false }

func (p *CertificateProvider) Certificate(gocbcore.AuthCertRequest) (*tls.Certificate, error) {
	return p.cert, nil
}
