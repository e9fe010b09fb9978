package ports

import "github.com/reglet-dev/reglet-broker/domain/entities"

// OfferRegistry stores the permissions providers have offered.
type OfferRegistry interface {
	// Offer records an offer made by hostID and returns the stored record.
	Offer(hostID string, offer entities.PermissionOffer) (entities.PermissionRecord, error)

	// Match returns the records satisfying the descriptor, in registration order.
	Match(t entities.TypeDescriptor) []entities.PermissionRecord
}
