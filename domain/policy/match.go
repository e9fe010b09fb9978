// Package policy holds the configurable decisions of the negotiation:
// how offers match requests, what happens to duplicate offers and unknown
// permission types, and where denials are reported.
package policy

import (
	"fmt"

	"github.com/reglet-dev/reglet-broker/domain/entities"
)

// MatchPolicy decides whether an offered type satisfies a requested one.
type MatchPolicy interface {
	Matches(offered, requested entities.TypeDescriptor) bool
}

// ExactNamePolicy matches on type name only. Descriptions and any future
// descriptor fields are ignored.
type ExactNamePolicy struct{}

// Matches implements MatchPolicy.
func (ExactNamePolicy) Matches(offered, requested entities.TypeDescriptor) bool {
	return offered.Name == requested.Name
}

// MatchFunc adapts a function to MatchPolicy.
type MatchFunc func(offered, requested entities.TypeDescriptor) bool

// Matches implements MatchPolicy.
func (f MatchFunc) Matches(offered, requested entities.TypeDescriptor) bool {
	return f(offered, requested)
}

// DuplicatePolicy controls offers that repeat an existing (hostId, hostPermissionId).
type DuplicatePolicy string

const (
	// DuplicateAllow appends every offer, duplicates included.
	DuplicateAllow DuplicatePolicy = "allow"
	// DuplicateReject refuses an offer whose key is already registered.
	DuplicateReject DuplicatePolicy = "reject"
)

// ParseDuplicatePolicy parses a configured value; empty means allow.
func ParseDuplicatePolicy(s string) (DuplicatePolicy, error) {
	switch DuplicatePolicy(s) {
	case "", DuplicateAllow:
		return DuplicateAllow, nil
	case DuplicateReject:
		return DuplicateReject, nil
	}
	return "", fmt.Errorf("unknown duplicate policy %q (want allow or reject)", s)
}

// UnknownTypePolicy controls attenuation of permission types without an attenuator.
type UnknownTypePolicy string

const (
	// UnknownTypeFailClosed refuses to grant.
	UnknownTypeFailClosed UnknownTypePolicy = "fail-closed"
	// UnknownTypeDisclose grants the permission unattenuated after warning the user.
	UnknownTypeDisclose UnknownTypePolicy = "disclose"
)

// ParseUnknownTypePolicy parses a configured value; empty means fail-closed.
func ParseUnknownTypePolicy(s string) (UnknownTypePolicy, error) {
	switch UnknownTypePolicy(s) {
	case "", UnknownTypeFailClosed:
		return UnknownTypeFailClosed, nil
	case UnknownTypeDisclose:
		return UnknownTypeDisclose, nil
	}
	return "", fmt.Errorf("unknown type policy %q (want fail-closed or disclose)", s)
}
