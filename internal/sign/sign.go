// Package sign implements Ed25519 signing and verification over canonical
// bytes. Keys are 32-byte raw seeds/public keys,
// transported as base64 at rest; callers always pass a canon.Value, never
// pre-serialized bytes, so there is never ambiguity about canonical form.
package sign

import (
	"crypto/ed25519"
	"encoding/base64"

	"github.com/lexintellectus/knowledgepack/internal/canon"
	"github.com/lexintellectus/knowledgepack/internal/errs"
)

const rawKeyLen = 32

// PrivateKey is a raw 32-byte Ed25519 seed.
type PrivateKey []byte

// PublicKey is a raw 32-byte Ed25519 public key.
type PublicKey []byte

// GenerateKeypair returns a fresh (private, public) Ed25519 raw keypair.
func GenerateKeypair() (PrivateKey, PublicKey, error) {
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		return nil, nil, errs.Wrap(errs.KindEncoding, "cannot generate ed25519 keypair", err)
	}
	seed := priv.Seed()
	return PrivateKey(seed), PublicKey(pub), nil
}

// DecodePrivateKeyB64 decodes a base64-encoded 32-byte raw seed.
func DecodePrivateKeyB64(s string) (PrivateKey, error) {
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, errs.Wrap(errs.KindEncoding, "invalid base64 private key", err)
	}
	if len(raw) != rawKeyLen {
		return nil, errs.Newf(errs.KindEncoding, "private key must decode to exactly %d bytes, got %d", rawKeyLen, len(raw))
	}
	return PrivateKey(raw), nil
}

// DecodePublicKeyB64 decodes a base64-encoded 32-byte raw public key.
func DecodePublicKeyB64(s string) (PublicKey, error) {
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, errs.Wrap(errs.KindEncoding, "invalid base64 public key", err)
	}
	if len(raw) != rawKeyLen {
		return nil, errs.Newf(errs.KindEncoding, "public key must decode to exactly %d bytes, got %d", rawKeyLen, len(raw))
	}
	return PublicKey(raw), nil
}

func (k PrivateKey) Base64() string { return base64.StdEncoding.EncodeToString(k) }
func (k PublicKey) Base64() string  { return base64.StdEncoding.EncodeToString(k) }

func (k PrivateKey) edKey() ed25519.PrivateKey {
	return ed25519.NewKeyFromSeed(k)
}

// Sign returns the Ed25519 signature of canon.Marshal(value).
func Sign(priv PrivateKey, value canon.Value) ([]byte, error) {
	if len(priv) != rawKeyLen {
		return nil, errs.Newf(errs.KindEncoding, "private key must be %d bytes", rawKeyLen)
	}
	data, err := canon.Marshal(value)
	if err != nil {
		return nil, err
	}
	return ed25519.Sign(priv.edKey(), data), nil
}

// Verify reports whether sig is a valid Ed25519 signature of
// canon.Marshal(value) under pub. It returns an error only for malformed
// keys; a signature mismatch returns (false, nil).
func Verify(pub PublicKey, value canon.Value, sig []byte) (bool, error) {
	if len(pub) != rawKeyLen {
		return false, errs.Newf(errs.KindEncoding, "public key must be %d bytes", rawKeyLen)
	}
	data, err := canon.Marshal(value)
	if err != nil {
		return false, err
	}
	return ed25519.Verify(ed25519.PublicKey(pub), data, sig), nil
}

// VerifyOrError is like Verify but returns a SignatureError instead of
// false when verification fails, for call sites that want to propagate
// directly.
func VerifyOrError(pub PublicKey, value canon.Value, sig []byte) error {
	ok, err := Verify(pub, value, sig)
	if err != nil {
		return err
	}
	if !ok {
		return errs.New(errs.KindSignature, "signature verification failed")
	}
	return nil
}
