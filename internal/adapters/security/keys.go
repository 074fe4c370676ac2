package security

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/mr-tron/base58"
	"github.com/ulixee/payments-sub000/internal/domain"
	"github.com/ulixee/payments-sub000/internal/ports"
	"golang.org/x/crypto/sha3"
)

const (
	identityPrefix = "id1"
	addressPrefix  = "ar1"
	slugLength     = 10
)

// IdentityFromPublicKey encodes an ed25519 public key as a batch or client identity.
func IdentityFromPublicKey(pub ed25519.PublicKey) string {
	return identityPrefix + base58.Encode(pub)
}

// PublicKeyFromIdentity reverses IdentityFromPublicKey.
func PublicKeyFromIdentity(identity string) (ed25519.PublicKey, error) {
	if !strings.HasPrefix(identity, identityPrefix) {
		return nil, fmt.Errorf("identity must start with %s", identityPrefix)
	}
	raw, err := base58.Decode(strings.TrimPrefix(identity, identityPrefix))
	if err != nil {
		return nil, fmt.Errorf("decode identity: %w", err)
	}
	if len(raw) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("identity key must be %d bytes", ed25519.PublicKeySize)
	}
	return ed25519.PublicKey(raw), nil
}

// AddressFromPublicKey derives the ledger address owned by a public key.
func AddressFromPublicKey(pub ed25519.PublicKey) string {
	sum := sha3.Sum256(pub)
	return addressPrefix + base58.Encode(sum[:20])
}

// SlugFromIdentity is the short identifier batches are addressed by.
func SlugFromIdentity(identity string) string {
	sum := sha3.Sum256([]byte(identity))
	return hex.EncodeToString(sum[:])[:slugLength]
}

type Ed25519KeyGenerator struct{}

func (Ed25519KeyGenerator) Generate() (ports.BatchKey, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return ports.BatchKey{}, fmt.Errorf("generate batch key: %w", err)
	}
	identity := IdentityFromPublicKey(pub)
	return ports.BatchKey{
		Identity:   identity,
		Address:    AddressFromPublicKey(pub),
		Slug:       SlugFromIdentity(identity),
		PrivateKey: priv,
	}, nil
}

// Ed25519Signer signs payout note hashes with a batch private key.
type Ed25519Signer struct{}

func (Ed25519Signer) Sign(privateKey []byte, message []byte) (string, error) {
	if len(privateKey) != ed25519.PrivateKeySize {
		return "", fmt.Errorf("batch private key must be %d bytes", ed25519.PrivateKeySize)
	}
	sig := ed25519.Sign(ed25519.PrivateKey(privateKey), message)
	return base58.Encode(sig), nil
}

// Ed25519Verifier checks request signatures over the sha3-256 digest of the
// request body against the key encoded in the caller's identity.
type Ed25519Verifier struct{}

func (Ed25519Verifier) Verify(identity string, payload []byte, signature string) error {
	pub, err := PublicKeyFromIdentity(identity)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrUnauthorized, err)
	}
	sig, err := base58.Decode(signature)
	if err != nil || len(sig) != ed25519.SignatureSize {
		return fmt.Errorf("%w: malformed signature", domain.ErrUnauthorized)
	}
	digest := sha3.Sum256(payload)
	if !ed25519.Verify(pub, digest[:], sig) {
		return fmt.Errorf("%w: signature does not match identity", domain.ErrUnauthorized)
	}
	return nil
}

// SignRequest produces the signature Ed25519Verifier expects for a body.
func SignRequest(privateKey ed25519.PrivateKey, body []byte) string {
	digest := sha3.Sum256(body)
	return base58.Encode(ed25519.Sign(privateKey, digest[:]))
}

func (Ed25519Verifier) Address(identity string) (string, error) {
	pub, err := PublicKeyFromIdentity(identity)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrUnauthorized, err)
	}
	return AddressFromPublicKey(pub), nil
}
