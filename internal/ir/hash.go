package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainStatement = "deduce/statement/v1"
	DomainRule      = "deduce/rule/v1"
	DomainRelation  = "deduce/relation/v1"
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

// StatementID computes the content-addressed ID of a statement.
// Identical statements always hash identically, regardless of where they
// came from (CUE, YAML, JSON or Go code).
func StatementID(s Statement) (string, error) {
	canonical, err := MarshalCanonical(EncodeStatement(s))
	if err != nil {
		return "", fmt.Errorf("StatementID: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainStatement, canonical), nil
}

// RuleID computes the content-addressed ID of a rule.
// Used by the clause store to deduplicate identical declarations.
func RuleID(r Rule) (string, error) {
	canonical, err := MarshalCanonical(EncodeRule(r))
	if err != nil {
		return "", fmt.Errorf("RuleID: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainRule, canonical), nil
}

// RelationHash computes a digest of a relation's tuples, so two answers can
// be compared without holding both in memory. A nil relation hashes the
// empty tuple list.
func RelationHash(r *Relation) (string, error) {
	rows := make([]any, 0, r.Len())
	for _, t := range r.Tuples() {
		rows = append(rows, t)
	}
	canonical, err := MarshalCanonical(rows)
	if err != nil {
		return "", fmt.Errorf("RelationHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainRelation, canonical), nil
}

// MustStatementID is like StatementID but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustStatementID(s Statement) string {
	id, err := StatementID(s)
	if err != nil {
		panic(err)
	}
	return id
}

// MustRuleID is like RuleID but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustRuleID(r Rule) string {
	id, err := RuleID(r)
	if err != nil {
		panic(err)
	}
	return id
}
