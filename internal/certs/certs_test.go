package certs

import (
	"crypto/tls"
	"crypto/x509"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func leaf(t *testing.T, cert tls.Certificate) *x509.Certificate {
	t.Helper()
	require.Len(t, cert.Certificate, 1)
	parsed, err := x509.ParseCertificate(cert.Certificate[0])
	require.NoError(t, err)
	return parsed
}

func TestStore_GeneratesCertificate(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "certs")
	store := NewStore(dir)

	cert, err := store.Load()
	require.NoError(t, err)

	c := leaf(t, cert)
	assert.Equal(t, []string{"qflow"}, c.Subject.Organization)
	assert.Contains(t, c.DNSNames, "localhost")
	assert.Len(t, c.IPAddresses, 2)
	require.NoError(t, c.VerifyHostname("localhost"))
	require.NoError(t, c.VerifyHostname("127.0.0.1"))
	assert.WithinDuration(t, time.Now().Add(Validity), c.NotAfter, time.Minute)

	certFile, keyFile := store.Paths()
	info, err := os.Stat(keyFile)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
	assert.FileExists(t, certFile)
}

func TestStore_ReusesValidCertificate(t *testing.T) {
	dir := t.TempDir()

	first, err := NewStore(dir).Load()
	require.NoError(t, err)
	second, err := NewStore(dir).Load()
	require.NoError(t, err)

	assert.Equal(t, leaf(t, first).SerialNumber, leaf(t, second).SerialNumber)
}

func TestStore_Regenerates(t *testing.T) {
	tests := []struct {
		prepare func(t *testing.T, dir string) *Store
		name    string
	}{
		{
			name: "corrupt files",
			prepare: func(t *testing.T, dir string) *Store {
				t.Helper()
				require.NoError(t, os.WriteFile(filepath.Join(dir, certFileName), []byte("junk"), 0o600))
				require.NoError(t, os.WriteFile(filepath.Join(dir, keyFileName), []byte("junk"), 0o600))
				return NewStore(dir)
			},
		},
		{
			name: "expiring soon",
			prepare: func(t *testing.T, dir string) *Store {
				t.Helper()
				_, err := NewStore(dir).Load()
				require.NoError(t, err)
				later := NewStore(dir)
				later.now = func() time.Time { return time.Now().Add(Validity - RenewBefore/2) }
				return later
			},
		},
		{
			name: "new host",
			prepare: func(t *testing.T, dir string) *Store {
				t.Helper()
				_, err := NewStore(dir).Load()
				require.NoError(t, err)
				return NewStore(dir, "localhost", "queue.internal")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			store := tt.prepare(t, dir)
			before, err := os.ReadFile(filepath.Join(dir, certFileName))
			require.NoError(t, err)

			cert, err := store.Load()
			require.NoError(t, err)
			c := leaf(t, cert)
			for _, host := range store.hosts {
				assert.NoError(t, c.VerifyHostname(host))
			}

			after, err := os.ReadFile(filepath.Join(dir, certFileName))
			require.NoError(t, err)
			assert.NotEqual(t, before, after)
		})
	}
}
