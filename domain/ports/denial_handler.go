package ports

// DenialHandler is called when a negotiation ends without a grant.
// Implementations can log, collect metrics, or take other actions.
type DenialHandler interface {
	// OnDenial is called once per declined negotiation or refused call.
	// kind: "no_match", "selection", "delegation", "unknown_type", "timeout", "unauthorized"
	// request: the request that was declined (type depends on kind)
	// reason: human-readable denial reason
	OnDenial(kind string, request interface{}, reason string)
}
