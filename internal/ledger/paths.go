package ledger

import "github.com/roach88/lotledger/internal/docstore"

// LotsCollection is the root collection of lot documents.
const LotsCollection = "lots"

// Field names of stored documents.
const (
	fieldName        = "name"
	fieldCapacity    = "capacity"
	fieldLatitude    = "latitude"
	fieldLongitude   = "longitude"
	fieldDescription = "description"

	fieldCountNow    = "count_now"
	fieldLastUpdated = "last_updated"

	fieldTimestamp  = "timestamp"
	fieldDirection  = "direction"
	fieldSource     = "source"
	fieldConfidence = "confidence"
)

// LotPath is the document path of a lot.
func LotPath(lotID string) string {
	return docstore.Join(LotsCollection, lotID)
}

// StatusPath is the document path of a lot's status.
func StatusPath(lotID string) string {
	return docstore.Join(LotsCollection, lotID, "_meta", "current_status")
}

// EventsCollection is the collection path of a lot's events.
func EventsCollection(lotID string) string {
	return docstore.Join(LotsCollection, lotID, "events")
}

func validateLotID(lotID string) error {
	if err := docstore.ValidateID(lotID); err != nil {
		return NewInvalidArgumentError("invalid lot id %q", lotID)
	}
	return nil
}
