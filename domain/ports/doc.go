// Package ports defines interfaces for host collaborators and infrastructure.
// Domain logic depends on these abstractions; the runtime, prompter and
// state store adapters implement them.
package ports
