// Package tlsutil loads TLS configuration for the HTTP server.
package tlsutil

import (
	"crypto/tls"

	"github.com/c360/reductionist/errors"
)

// LoadServerTLSConfig builds a *tls.Config from certificate and key files.
func LoadServerTLSConfig(certFile, keyFile string) (*tls.Config, error) {
	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return nil, errors.Wrap(err, errors.KindInternal, "tlsutil", "LoadServerTLSConfig",
			"load key pair")
	}
	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}, nil
}
