package cert

import (
	"crypto/x509"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_GeneratesBundle(t *testing.T) {
	dir := t.TempDir()

	s, err := New(dir, &Options{KeyBits: 2048})
	require.NoError(t, err)

	for _, path := range []string{
		s.CACertPath(), s.CAKeyPath(),
		s.CertPath(RoleRegistry), s.KeyPath(RoleRegistry),
		s.CertPath(RoleAgent), s.KeyPath(RoleAgent),
		s.CertPath(RoleDispatcher), s.KeyPath(RoleDispatcher),
	} {
		assert.FileExists(t, path)
	}

	info, err := os.Stat(s.KeyPath(RoleAgent))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	caCert, _, err := loadCA(s.CACertPath(), s.CAKeyPath())
	require.NoError(t, err)
	assert.True(t, caCert.IsCA)
}

func TestNew_ReusesExistingCA(t *testing.T) {
	dir := t.TempDir()

	first, err := New(dir, &Options{KeyBits: 2048})
	require.NoError(t, err)
	before, err := os.ReadFile(first.CACertPath())
	require.NoError(t, err)

	second, err := New(dir, &Options{KeyBits: 2048})
	require.NoError(t, err)
	after, err := os.ReadFile(second.CACertPath())
	require.NoError(t, err)

	assert.Equal(t, before, after)
}

func TestGenerateLeaf_Usage(t *testing.T) {
	caCert, caKey, err := GenerateCA(2048)
	require.NoError(t, err)

	leaf, _, err := GenerateLeaf(caCert, caKey, 2048, LeafRequest{
		CommonName:  "orca-agent",
		DomainNames: []string{"localhost"},
		Usage:       UsageServer | UsageClient,
	})
	require.NoError(t, err)
	assert.ElementsMatch(t, []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth, x509.ExtKeyUsageClientAuth}, leaf.ExtKeyUsage)

	pool := x509.NewCertPool()
	pool.AddCert(caCert)
	_, err = leaf.Verify(x509.VerifyOptions{
		DNSName:   "localhost",
		Roots:     pool,
		KeyUsages: []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth},
	})
	assert.NoError(t, err)

	_, _, err = GenerateLeaf(caCert, caKey, 2048, LeafRequest{CommonName: "none"})
	assert.Error(t, err)
}
