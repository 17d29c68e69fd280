// Package idgen generates record identifiers. Every stored record gets a
// UUIDv7 so that lexical order follows creation order, prefixed by its
// record type.
package idgen

import (
	"fmt"

	"github.com/google/uuid"
)

// Generator produces unique string identifiers.
type Generator func() string

// UUIDv7 returns a Generator of RFC 9562 version 7 UUIDs.
func UUIDv7() Generator {
	return func() string {
		return uuid.Must(uuid.NewV7()).String()
	}
}

// Prefixed prepends prefix to every ID produced by gen.
func Prefixed(prefix string, gen Generator) Generator {
	return func() string {
		return prefix + gen()
	}
}

// Default is the generator used by New.
var Default Generator = UUIDv7()

// Record-type generators.
var (
	Snapshot = Prefixed("snp_", Default)
	Summary  = Prefixed("sum_", Default)
	FetchLog = Prefixed("flg_", Default)
)

// New produces an unprefixed ID.
func New() string {
	return Default()
}

// Parse validates the UUID part of an ID, ignoring a type prefix.
func Parse(id string) (string, error) {
	raw := id
	if len(id) > 4 && id[3] == '_' {
		raw = id[4:]
	}
	if _, err := uuid.Parse(raw); err != nil {
		return "", fmt.Errorf("idgen: invalid id %q: %w", id, err)
	}
	return id, nil
}
