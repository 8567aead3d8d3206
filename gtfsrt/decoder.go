package gtfsrt

import (
	"fmt"

	gtfsrtpb "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"google.golang.org/protobuf/proto"
)

// DecodeError reasons.
const (
	ReasonMalformed       = "malformed"
	ReasonUnsupportedKind = "unsupported_kind"
)

// DecodeError describes a failed decode of a GTFS-RT payload.
type DecodeError struct {
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("gtfsrt decode failed (%s): %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("gtfsrt decode failed (%s)", e.Reason)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Decode parses a GTFS-RT FeedMessage and projects its entities into
// normalized records for the requested kind. Entities carrying only the
// other payload type are skipped; they are not an error, since upstream
// feeds may mix entity types.
func Decode(data []byte, kind FeedKind) (*FeedBatch, error) {
	switch kind {
	case TripUpdates, VehiclePositions:
	default:
		return nil, &DecodeError{Reason: ReasonUnsupportedKind, Err: fmt.Errorf("unknown feed kind %q", kind)}
	}

	var fm gtfsrtpb.FeedMessage
	if err := proto.Unmarshal(data, &fm); err != nil {
		return nil, &DecodeError{Reason: ReasonMalformed, Err: err}
	}

	batch := &FeedBatch{Kind: kind}
	if fm.Header != nil {
		if fm.Header.Timestamp != nil {
			batch.Timestamp = *fm.Header.Timestamp
		}
		if fm.Header.GtfsRealtimeVersion != nil {
			batch.Version = *fm.Header.GtfsRealtimeVersion
		}
	}

	switch kind {
	case TripUpdates:
		batch.TripUpdates = decodeTripUpdates(fm.Entity)
	case VehiclePositions:
		batch.VehiclePositions = decodeVehiclePositions(fm.Entity)
	}
	return batch, nil
}

func decodeTripUpdates(entities []*gtfsrtpb.FeedEntity) []TripUpdate {
	updates := make([]TripUpdate, 0, len(entities))
	for _, e := range entities {
		if e.TripUpdate == nil {
			continue
		}
		tu := e.TripUpdate
		rec := TripUpdate{Timestamp: tu.GetTimestamp()}
		if tu.Trip != nil {
			rec.TripID = tu.Trip.GetTripId()
			rec.RouteID = tu.Trip.GetRouteId()
			rec.DirectionID = tu.Trip.GetDirectionId()
			rec.StartTime = tu.Trip.GetStartTime()
			rec.StartDate = tu.Trip.GetStartDate()
		}
		if tu.Vehicle != nil && tu.Vehicle.Id != nil {
			id := *tu.Vehicle.Id
			rec.VehicleID = &id
		}
		if tu.Delay != nil {
			d := *tu.Delay
			rec.Delay = &d
		}
		updates = append(updates, rec)
	}
	return updates
}

func decodeVehiclePositions(entities []*gtfsrtpb.FeedEntity) []VehiclePosition {
	positions := make([]VehiclePosition, 0, len(entities))
	for _, e := range entities {
		if e.Vehicle == nil {
			continue
		}
		v := e.Vehicle
		rec := VehiclePosition{
			CurrentStopSequence: v.GetCurrentStopSequence(),
			CurrentStatus:       v.GetCurrentStatus().String(),
			Timestamp:           v.GetTimestamp(),
		}
		if v.Vehicle != nil {
			rec.VehicleID = v.Vehicle.GetId()
		}
		if v.Trip != nil {
			rec.TripID = v.Trip.GetTripId()
			rec.RouteID = v.Trip.GetRouteId()
			rec.DirectionID = v.Trip.GetDirectionId()
			rec.StartTime = v.Trip.GetStartTime()
			rec.StartDate = v.Trip.GetStartDate()
		}
		if v.Position != nil {
			rec.Position = &Position{
				Latitude:  float64(v.Position.GetLatitude()),
				Longitude: float64(v.Position.GetLongitude()),
				Bearing:   float64(v.Position.GetBearing()),
				Speed:     float64(v.Position.GetSpeed()),
			}
		}
		positions = append(positions, rec)
	}
	return positions
}
