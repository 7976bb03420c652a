package tool

import (
	"crypto/tls"
	"crypto/x509"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateTlsCertificate(t *testing.T) {
	dir := t.TempDir()
	keyFilename := filepath.Join(dir, "key.pem")
	certFilename := filepath.Join(dir, "cert.pem")

	exists, err := IsFileExists(certFilename)
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, GenerateTlsCertificate("jypelle", "Vekidj Server", keyFilename, certFilename, []string{"dj.example", "10.0.0.2"}))

	exists, err = IsFileExists(certFilename)
	require.NoError(t, err)
	assert.True(t, exists)

	pair, err := tls.LoadX509KeyPair(certFilename, keyFilename)
	require.NoError(t, err)
	cert, err := x509.ParseCertificate(pair.Certificate[0])
	require.NoError(t, err)
	assert.Equal(t, "Vekidj Server", cert.Subject.CommonName)
	assert.ElementsMatch(t, []string{"localhost", "dj.example"}, cert.DNSNames)
	assert.Len(t, cert.IPAddresses, 2)
}
