package ports

import (
	"context"
	"time"
)

// BatchKey is freshly generated keying material for a batch.
type BatchKey struct {
	Identity   string
	Address    string
	Slug       string
	PrivateKey []byte
}

type KeyGenerator interface {
	Generate() (BatchKey, error)
}

type Signer interface {
	Sign(privateKey []byte, message []byte) (string, error)
}

// SignatureVerifier checks a request signature asserted by identity and
// resolves the ledger address that identity controls.
type SignatureVerifier interface {
	Verify(identity string, payload []byte, signature string) error
	Address(identity string) (string, error)
}

type Encryption interface {
	Encrypt(keyID string, plaintext []byte) ([]byte, error)
	Decrypt(keyID string, payload []byte) ([]byte, error)
}

type OperatorClaims struct {
	Subject   string
	Role      string
	ExpiresAt time.Time
}

type OperatorTokenVerifier interface {
	ParseAndValidate(token string) (OperatorClaims, error)
}

// JobLock serializes batch jobs across worker processes. Release is
// returned only when the lock was acquired.
type JobLock interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(), acquired bool, err error)
}
