package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"

	"github.com/cespare/xxhash/v2"
)

// Domain prefixes for domain-separated hashes.
// Version suffix enables future algorithm migration.
const (
	DomainConfig = "tmerge/config/v1"
	DomainPlan   = "tmerge/plan/v1"
)

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
// The null byte (0x00) separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// PayloadHash returns the content hash of a data payload.
// NULL entries are stripped first and keys are canonically ordered, so the
// hash is independent of key order and of absent-versus-NULL columns.
func PayloadHash(payload IRObject) (string, error) {
	canonical, err := MarshalCanonical(StripNulls(payload))
	if err != nil {
		return "", fmt.Errorf("PayloadHash: failed to marshal: %w", err)
	}
	return strconv.FormatUint(xxhash.Sum64(canonical), 16), nil
}

// ConfigHash computes the identity of a planning configuration.
// Any change to any input yields a different hash.
func ConfigHash(cfg IRObject) (string, error) {
	canonical, err := MarshalCanonical(cfg)
	if err != nil {
		return "", fmt.Errorf("ConfigHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainConfig, canonical), nil
}

// PlanDigest computes a digest over a canonical plan snapshot.
func PlanDigest(snapshot any) (string, error) {
	canonical, err := MarshalCanonical(snapshot)
	if err != nil {
		return "", fmt.Errorf("PlanDigest: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainPlan, canonical), nil
}

// MustPayloadHash is like PayloadHash but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustPayloadHash(payload IRObject) string {
	h, err := PayloadHash(payload)
	if err != nil {
		panic(err)
	}
	return h
}
