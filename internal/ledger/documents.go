package ledger

import (
	"maps"

	"github.com/roach88/lotledger/internal/docstore"
)

var standardLotFields = map[string]bool{
	fieldName:        true,
	fieldCapacity:    true,
	fieldLatitude:    true,
	fieldLongitude:   true,
	fieldDescription: true,
}

// capacityOf returns the numeric capacity of a lot document, or nil.
func capacityOf(data docstore.Data) *int64 {
	c, ok := docstore.Int(data, fieldCapacity)
	if !ok {
		return nil
	}
	return &c
}

func lotFromSnapshot(snap *docstore.Snapshot) *Lot {
	lot := &Lot{ID: snap.ID, Capacity: capacityOf(snap.Data)}
	lot.Name, _ = docstore.String(snap.Data, fieldName)
	lot.Latitude, _ = docstore.Float(snap.Data, fieldLatitude)
	lot.Longitude, _ = docstore.Float(snap.Data, fieldLongitude)
	lot.Description, _ = docstore.String(snap.Data, fieldDescription)

	for k, v := range snap.Data {
		if standardLotFields[k] && !(k == fieldCapacity && lot.Capacity == nil) {
			continue
		}
		if lot.Extra == nil {
			lot.Extra = make(map[string]any)
		}
		lot.Extra[k] = v
	}
	return lot
}

// lotData is the stored form of a lot's standard attributes plus Extra.
func lotData(lot *Lot) docstore.Data {
	data := docstore.Data{}
	maps.Copy(data, lot.Extra)
	data[fieldName] = lot.Name
	data[fieldLatitude] = lot.Latitude
	data[fieldLongitude] = lot.Longitude
	data[fieldDescription] = lot.Description
	if lot.Capacity != nil {
		data[fieldCapacity] = *lot.Capacity
	}
	return data
}

func statusFromSnapshot(lotID string, snap *docstore.Snapshot) *Status {
	st := &Status{LotID: lotID}
	st.CountNow, _ = docstore.Int(snap.Data, fieldCountNow)
	st.LastUpdated, _ = docstore.Time(snap.Data, fieldLastUpdated)
	return st
}

func eventFromSnapshot(lotID string, snap *docstore.Snapshot) *Event {
	ev := &Event{ID: snap.ID, LotID: lotID}
	ev.Timestamp, _ = docstore.Time(snap.Data, fieldTimestamp)
	dir, _ := docstore.String(snap.Data, fieldDirection)
	ev.Direction = Direction(dir)
	ev.Source, _ = docstore.String(snap.Data, fieldSource)
	ev.Confidence, _ = docstore.Float(snap.Data, fieldConfidence)
	return ev
}
