package security

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/ulixee/payments-sub000/internal/domain"
)

func TestGeneratedBatchKeysAreConsistent(t *testing.T) {
	key, err := Ed25519KeyGenerator{}.Generate()
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(key.Identity, "id1"))
	require.True(t, strings.HasPrefix(key.Address, "ar1"))
	require.Len(t, key.Slug, 10)
	require.Equal(t, SlugFromIdentity(key.Identity), key.Slug)

	pub, err := PublicKeyFromIdentity(key.Identity)
	require.NoError(t, err)
	require.Equal(t, key.Address, AddressFromPublicKey(pub))
}

func TestRequestSignatures(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	identity := IdentityFromPublicKey(pub)
	body := []byte(`{"microgons":100}`)

	sig := SignRequest(priv, body)
	require.NoError(t, Ed25519Verifier{}.Verify(identity, body, sig))

	err = Ed25519Verifier{}.Verify(identity, []byte(`{"microgons":101}`), sig)
	require.True(t, errors.Is(err, domain.ErrUnauthorized))

	err = Ed25519Verifier{}.Verify("nope", body, sig)
	require.True(t, errors.Is(err, domain.ErrUnauthorized))
}

func TestBatchKeyEncryptionRoundTrip(t *testing.T) {
	key, err := Ed25519KeyGenerator{}.Generate()
	require.NoError(t, err)
	vault := NewAESGCMEncryption("seed")

	sealed, err := vault.Encrypt(key.Slug, key.PrivateKey)
	require.NoError(t, err)
	opened, err := vault.Decrypt(key.Slug, sealed)
	require.NoError(t, err)
	require.Equal(t, key.PrivateKey, opened)

	_, err = vault.Decrypt("otherslug", sealed)
	require.Error(t, err)

	sig, err := Ed25519Signer{}.Sign(opened, []byte("payload"))
	require.NoError(t, err)
	require.NotEmpty(t, sig)
}

func TestOperatorTokens(t *testing.T) {
	tokens, err := NewOperatorTokens("secret", "micronote-ledger")
	require.NoError(t, err)

	raw, err := tokens.Sign("ops@example", time.Minute)
	require.NoError(t, err)
	claims, err := tokens.ParseAndValidate(raw)
	require.NoError(t, err)
	require.Equal(t, "ops@example", claims.Subject)
	require.Equal(t, OperatorRole, claims.Role)

	other, err := NewOperatorTokens("different", "micronote-ledger")
	require.NoError(t, err)
	_, err = other.ParseAndValidate(raw)
	require.True(t, errors.Is(err, domain.ErrUnauthorized))

	expired, err := tokens.Sign("ops@example", -time.Minute)
	require.NoError(t, err)
	_, err = tokens.ParseAndValidate(expired)
	require.True(t, errors.Is(err, domain.ErrUnauthorized))
}
