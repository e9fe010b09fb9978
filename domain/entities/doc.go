// Package entities provides the core domain entities of the broker.
// These are the wire types exchanged between requesters, the kernel and
// permission providers, plus the dialog and negotiation models the kernel
// drives. Business meaning of a grant's data belongs to the provider that
// issues it.
package entities
