// Package attestation implements a reference switchyard.Attestor that signs
// apply summary bundles as DSSE envelopes, grounded on the teacher's
// internal/verifier.Attestor/InTotoEnvelopeSigner pair.
package attestation

import (
	"context"
	"crypto"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"

	"github.com/pkg/errors"
	"github.com/secure-systems-lab/go-securesystemslib/dsse"
	"github.com/veighnsche/switchyard/pkg/switchyard"
)

// statementType mirrors the in-toto predicate type used to tag apply-summary
// bundles; the bundle itself is an opaque JSON blob built by apply.go, not a
// full SLSA provenance statement, so only the DSSE envelope layer is reused.
const statementType = "https://switchyard.dev/attestation/apply-summary/v1"

// ed25519Signer implements dsse.SignVerifier over an in-process ed25519 key,
// the default algorithm original_source/src/adapters/attest.rs documents.
type ed25519Signer struct {
	priv  ed25519.PrivateKey
	keyID string
}

func (s *ed25519Signer) Sign(data []byte) ([]byte, error) {
	return ed25519.Sign(s.priv, data), nil
}

func (s *ed25519Signer) Verify(data, sig []byte) error {
	if !ed25519.Verify(s.priv.Public().(ed25519.PublicKey), data, sig) {
		return errors.New("ed25519 signature verification failed")
	}
	return nil
}

func (s *ed25519Signer) KeyID() (string, error) { return s.keyID, nil }

func (s *ed25519Signer) Public() crypto.PublicKey { return s.priv.Public() }

// Attestor signs apply summary bundles via a DSSE envelope over an in-process
// ed25519 key. Production deployments substitute a KMS-backed signer behind
// the same dsse.SignVerifier contract (as the teacher's pkg/kmsdsse does);
// this reference implementation keeps the key in memory for self-contained
// operation.
type Attestor struct {
	signer *dsse.EnvelopeSigner
	keyID  string
}

var _ switchyard.Attestor = (*Attestor)(nil)

// NewAttestor generates a fresh ed25519 keypair and wraps it in a DSSE
// envelope signer. keyID is an opaque label carried in the attestation's
// public_key_id field (spec.md §4.9 / original_source's attest.rs).
func NewAttestor(keyID string) (*Attestor, error) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, errors.Wrap(err, "generating ed25519 key")
	}
	signer, err := dsse.NewEnvelopeSigner(1, &ed25519Signer{priv: priv, keyID: keyID})
	if err != nil {
		return nil, errors.Wrap(err, "constructing envelope signer")
	}
	return &Attestor{signer: signer, keyID: keyID}, nil
}

// Sign wraps bundle in a DSSE envelope and returns the envelope's first
// signature: its hex-decoded bytes when Sig parses as hex, otherwise the
// bytes of the Sig string itself.
func (a *Attestor) Sign(bundle []byte) (switchyard.Signature, error) {
	env, err := a.signer.SignPayload(context.Background(), statementType, bundle)
	if err != nil {
		return nil, errors.Wrap(err, "signing apply summary bundle")
	}
	if len(env.Signatures) == 0 {
		return nil, errors.New("dsse envelope produced no signatures")
	}
	sig, err := hex.DecodeString(env.Signatures[0].Sig)
	if err != nil {
		return []byte(env.Signatures[0].Sig), nil
	}
	return sig, nil
}

// KeyID returns the opaque signer identity carried in attestation facts.
func (a *Attestor) KeyID() string { return a.keyID }

// Algorithm reports the signature scheme; ed25519 is the default per
// original_source/src/adapters/attest.rs.
func (a *Attestor) Algorithm() string { return "ed25519" }

// BundleHashHex hashes a summary bundle the same way apply.go does for its
// bundle_hash field, exposed here so integrators that build bundles outside
// the engine (e.g. for verification tooling) can reproduce it.
func BundleHashHex(bundle []byte) string {
	sum := sha256.Sum256(bundle)
	return hex.EncodeToString(sum[:])
}
