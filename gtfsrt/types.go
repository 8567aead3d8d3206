package gtfsrt

import "encoding/json"

// FeedKind selects which entity payload a decode keeps.
type FeedKind string

const (
	TripUpdates      FeedKind = "trip_updates"
	VehiclePositions FeedKind = "vehicle_positions"
)

// TripUpdate is one normalized trip-update record. VehicleID and Delay are
// pointers because their absence upstream is meaningful: zero is a valid
// delay value.
type TripUpdate struct {
	TripID      string  `json:"trip_id"`
	RouteID     string  `json:"route_id"`
	DirectionID uint32  `json:"direction_id"`
	StartTime   string  `json:"start_time"`
	StartDate   string  `json:"start_date"`
	VehicleID   *string `json:"vehicle_id"`
	Timestamp   uint64  `json:"timestamp"`
	Delay       *int32  `json:"delay"`
}

// Position is the nested vehicle location, present only when the source
// entity supplied one.
type Position struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Bearing   float64 `json:"bearing"`
	Speed     float64 `json:"speed"`
}

// VehiclePosition is one normalized vehicle-position record.
type VehiclePosition struct {
	VehicleID           string    `json:"vehicle_id"`
	TripID              string    `json:"trip_id"`
	RouteID             string    `json:"route_id"`
	DirectionID         uint32    `json:"direction_id"`
	StartTime           string    `json:"start_time"`
	StartDate           string    `json:"start_date"`
	CurrentStopSequence uint32    `json:"current_stop_sequence"`
	CurrentStatus       string    `json:"current_status"`
	Timestamp           uint64    `json:"timestamp"`
	Position            *Position `json:"position"`
}

// FeedBatch is one decode result. The kind selects which record slice is
// populated; the other stays nil and is omitted from the JSON form, so a
// mixed batch cannot be serialized.
type FeedBatch struct {
	Kind             FeedKind
	Timestamp        uint64
	Version          string
	TripUpdates      []TripUpdate
	VehiclePositions []VehiclePosition
}

func (b *FeedBatch) MarshalJSON() ([]byte, error) {
	doc := map[string]any{
		"feed_type":             b.Kind,
		"timestamp":             b.Timestamp,
		"gtfs_realtime_version": b.Version,
	}
	switch b.Kind {
	case TripUpdates:
		doc["trip_updates"] = b.TripUpdates
	case VehiclePositions:
		doc["vehicle_positions"] = b.VehiclePositions
	}
	return json.Marshal(doc)
}
