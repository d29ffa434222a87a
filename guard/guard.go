// Package guard enforces the testnet-only safety policy for every
// state-mutating operation (hire, register, unregister).
//
// The checks are pure and the allowed values are compiled in on purpose:
// the downstream services accept Mainnet, so the only thing standing between
// a test deployment and a real-value transaction is this package. Making the
// network configurable would defeat that.
package guard

import (
	"fmt"
	"strings"
)

const (
	// AllowedNetwork is the single network label accepted for mutations.
	// Case-sensitive exact match; no mainnet value is ever accepted.
	AllowedNetwork = "Preprod"

	// TestNamePrefix is required on every agent name or identifier touched
	// by a mutating registry call.
	TestNamePrefix = "masumi-test-"
)

// NetworkError rejects a disallowed network label.
type NetworkError struct {
	Network string
}

func (e *NetworkError) Error() string {
	if e.Network == "Mainnet" {
		return "mainnet operations are not allowed"
	}
	return fmt.Sprintf("only the %s network is allowed, got %q", AllowedNetwork, e.Network)
}

// NamePrefixError rejects an agent name or identifier lacking the test prefix.
type NamePrefixError struct {
	Name string
}

func (e *NamePrefixError) Error() string {
	return fmt.Sprintf("agent name must start with %q, got %q", TestNamePrefix, e.Name)
}

// Network returns nil only for the exact allowed test network value.
func Network(network string) error {
	if network != AllowedNetwork {
		return &NetworkError{Network: network}
	}
	return nil
}

// AgentName returns nil only for names carrying the test prefix.
func AgentName(name string) error {
	if !strings.HasPrefix(name, TestNamePrefix) {
		return &NamePrefixError{Name: name}
	}
	return nil
}

// Mutation validates a mutating call: the network always, the name only when
// one is supplied (registration and unregistration pass one, hiring does not).
func Mutation(network, name string) error {
	if err := Network(network); err != nil {
		return err
	}
	if name != "" {
		return AgentName(name)
	}
	return nil
}
