package state

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed hashes.
// Version suffix enables future algorithm migration.
const (
	DomainState    = "revlog/state/v1"
	DomainRevision = "revlog/revision/v1"
)

// hashWithDomain computes SHA-256 with domain separation.
// Format: SHA256(domain + 0x00 + data). The null byte separator prevents
// domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// Hash computes the content hash of a state object.
// Stored alongside each audit row so tampering or drift in the serialized
// state is detectable without re-parsing.
func Hash(obj Object) (string, error) {
	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("state hash: %w", err)
	}
	return hashWithDomain(DomainState, canonical), nil
}

// RevisionChecksum computes a checksum over a full revision payload:
// the ordered audit rows serialized canonically.
func RevisionChecksum(rows []Object) (string, error) {
	arr := make(Array, len(rows))
	for i, r := range rows {
		arr[i] = r
	}
	canonical, err := MarshalCanonical(arr)
	if err != nil {
		return "", fmt.Errorf("revision checksum: %w", err)
	}
	return hashWithDomain(DomainRevision, canonical), nil
}

// MustHash is like Hash but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustHash(obj Object) string {
	h, err := Hash(obj)
	if err != nil {
		panic(err)
	}
	return h
}
