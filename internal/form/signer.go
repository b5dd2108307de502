// internal/form/signer.go
//
// Forms subsystem: HMAC signing for CSRF tokens and round-tripped payloads,
// plus sealed (encrypted) payloads.
//
// Context
//   Two values leave the server and come back in a later POST: the CSRF
//   token and the preview stage's serialized primary form.  Both are
//   stateless and signed with one process-wide key:
//
//      token   = base64url( nonce | unixMicro | HMAC_SHA256(key, nonce+unixMicro) )
//      payload = base64url( data ) "." base64url( HMAC_SHA256(key, data) )
//      sealed  = base64url( nonce24 | secretbox(data, nonce24, SHA256("seal" | key)) )
//
//   •  nonce – 16 random bytes.  Prevents replay across users.
//   •  unixMicro – microseconds since Unix epoch, 8 bytes, big-endian.
//
//   Token validation checks the signature and ensures the timestamp is
//   within maxAge.  No server-side sessions are required, keeping the
//   system cache-friendly and multi-instance safe.
//
// Workflow
//   •  NewSigner(key)       → key from config.Views.SigningKey.
//   •  Token() / VerifyToken(tok)
//   •  Sign(data) / Unsign(payload)
//   •  Seal(data) / Open(sealed) for payloads that may carry secrets, such
//      as a preview form with a password field.
//
//------------------------------------------------------------------------------

package form

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/nacl/secretbox"
)

const (
	tokenBytes = 16 + 8 + sha256.Size // nonce + ts + sig
	maxAge     = 2 * time.Hour        // token valid window
)

// ErrBadSignature is returned by Unsign for any malformed or forged payload.
var ErrBadSignature = errors.New("form: bad signature")

// Signer holds the HMAC key and the derived secretbox key.
type Signer struct {
	key  []byte
	seal [32]byte
}

// NewSigner returns a Signer for key.  An empty key yields a random
// ephemeral key; signed values then die with the process.
func NewSigner(key string) *Signer {
	k := []byte(key)
	if key == "" {
		k = make([]byte, 32)
		_, _ = rand.Read(k)
		zap.S().Warn("views.signing_key not set, using random key")
	}
	return &Signer{key: k, seal: sha256.Sum256(append([]byte("seal"), k...))}
}

func (s *Signer) mac(parts ...[]byte) []byte {
	m := hmac.New(sha256.New, s.key)
	for _, p := range parts {
		m.Write(p)
	}
	return m.Sum(nil)
}

// Token creates a new CSRF token.  Call once per form render.
func (s *Signer) Token() (string, error) {
	nonce := make([]byte, 16)
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}

	ts := make([]byte, 8)
	binary.BigEndian.PutUint64(ts, uint64(time.Now().UnixMicro()))

	buf := make([]byte, 0, tokenBytes)
	buf = append(buf, nonce...)
	buf = append(buf, ts...)
	buf = append(buf, s.mac(nonce, ts)...)

	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// VerifyToken returns true if tok passes HMAC and age checks.
func (s *Signer) VerifyToken(tok string) bool {
	raw, err := base64.RawURLEncoding.DecodeString(tok)
	if err != nil || len(raw) != tokenBytes {
		return false
	}

	nonce := raw[:16]
	tsBytes := raw[16:24]
	sig := raw[24:]

	issued := time.UnixMicro(int64(binary.BigEndian.Uint64(tsBytes)))
	if time.Since(issued) > maxAge || time.Until(issued) > time.Minute {
		// Future timestamp (clock skew) or older than maxAge.
		return false
	}

	return hmac.Equal(sig, s.mac(nonce, tsBytes))
}

// Sign wraps data so Unsign can prove it came from this server.
func (s *Signer) Sign(data []byte) string {
	enc := base64.RawURLEncoding
	return enc.EncodeToString(data) + "." + enc.EncodeToString(s.mac(data))
}

// Unsign verifies and unwraps a payload produced by Sign.
func (s *Signer) Unsign(payload string) ([]byte, error) {
	enc := base64.RawURLEncoding
	body, sig, ok := strings.Cut(payload, ".")
	if !ok {
		return nil, ErrBadSignature
	}
	data, err := enc.DecodeString(body)
	if err != nil {
		return nil, ErrBadSignature
	}
	want, err := enc.DecodeString(sig)
	if err != nil || !hmac.Equal(want, s.mac(data)) {
		return nil, ErrBadSignature
	}
	return data, nil
}

// Seal encrypts and authenticates data.  Unlike Sign, the result does not
// reveal data to the client.
func (s *Signer) Seal(data []byte) (string, error) {
	var nonce [24]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return "", err
	}
	box := secretbox.Seal(nonce[:], data, &nonce, &s.seal)
	return base64.RawURLEncoding.EncodeToString(box), nil
}

// Open reverses Seal.  Any malformed or forged value is ErrBadSignature.
func (s *Signer) Open(sealed string) ([]byte, error) {
	raw, err := base64.RawURLEncoding.DecodeString(sealed)
	if err != nil || len(raw) < 24+secretbox.Overhead {
		return nil, ErrBadSignature
	}
	var nonce [24]byte
	copy(nonce[:], raw[:24])
	data, ok := secretbox.Open(nil, raw[24:], &nonce, &s.seal)
	if !ok {
		return nil, ErrBadSignature
	}
	return data, nil
}
