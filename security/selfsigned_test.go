// File: security/selfsigned_test.go
// License: Apache-2.0

package security

import (
	"crypto/tls"
	"crypto/x509"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelfSignedCertificate(t *testing.T) {
	cfg, err := SelfSigned()
	require.NoError(t, err)
	require.Len(t, cfg.Certificates, 1)

	cert, err := x509.ParseCertificate(cfg.Certificates[0].Certificate[0])
	require.NoError(t, err)
	assert.Equal(t, "localhost", cert.Subject.CommonName)
	assert.Contains(t, cert.DNSNames, "localhost")
	require.NoError(t, cert.VerifyHostname("127.0.0.1"))
}

func TestSelfSignedHandshake(t *testing.T) {
	cfg, err := SelfSigned()
	require.NoError(t, err)

	client, srv := net.Pipe()
	defer client.Close()
	defer srv.Close()

	errCh := make(chan error, 1)
	go func() {
		s := tls.Server(srv, cfg)
		errCh <- s.Handshake()
	}()

	c := tls.Client(client, &tls.Config{InsecureSkipVerify: true})
	require.NoError(t, c.Handshake())
	require.NoError(t, <-errCh)
}

func TestLoadKeyPairMissingFiles(t *testing.T) {
	_, err := LoadKeyPair("/does/not/exist.pem", "/does/not/exist.key")
	assert.Error(t, err)
}
