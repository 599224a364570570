package vault

import (
	"crypto/x509"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testKey = []byte("thisis32byteslongsecretkey123456")

func TestSealOpen(t *testing.T) {
	plaintext := []byte(`{"username":"member"}`)

	sealed, err := Seal(plaintext, testKey)
	require.NoError(t, err)
	assert.NotContains(t, string(sealed), "member")

	opened, err := Open(sealed, testKey)
	require.NoError(t, err)
	assert.Equal(t, plaintext, opened)
}

func TestOpenWithWrongKey(t *testing.T) {
	sealed, err := Seal([]byte("secret"), testKey)
	require.NoError(t, err)

	_, err = Open(sealed, []byte("another32byteslongsecretkey65432"))
	assert.ErrorIs(t, err, ErrAuthentication)
}

func TestInvalidKeySize(t *testing.T) {
	_, err := Seal([]byte("test"), []byte("shortkey"))
	assert.ErrorIs(t, err, ErrKeySize)

	_, err = Open([]byte("0123456789abcdef"), []byte("shortkey"))
	assert.ErrorIs(t, err, ErrKeySize)
}

func TestOpenMalformed(t *testing.T) {
	_, err := Open([]byte("not-hex"), testKey)
	assert.Error(t, err)

	_, err = Open([]byte("abcdef"), testKey)
	assert.ErrorIs(t, err, ErrCiphertext)
}

func TestParseKey(t *testing.T) {
	key, err := ParseKey(strings.Repeat("ab", KeySize))
	require.NoError(t, err)
	assert.Len(t, key, KeySize)

	_, err = ParseKey("abcd")
	assert.ErrorIs(t, err, ErrKeySize)

	_, err = ParseKey("zz")
	assert.Error(t, err)
}

func TestGenerateSelfSignedCert(t *testing.T) {
	cert, err := GenerateSelfSignedCert("members.internal", "10.0.0.5")
	require.NoError(t, err)
	require.Len(t, cert.Certificate, 1)
	require.NotNil(t, cert.PrivateKey)

	parsed, err := x509.ParseCertificate(cert.Certificate[0])
	require.NoError(t, err)
	assert.Contains(t, parsed.DNSNames, "localhost")
	assert.Contains(t, parsed.DNSNames, "members.internal")
	assert.True(t, parsed.IPAddresses[len(parsed.IPAddresses)-1].Equal([]byte{10, 0, 0, 5}))
}
