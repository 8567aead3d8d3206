// Package gtfsrt decodes GTFS-Realtime protobuf feeds into normalized
// records.
//
// It supports two feed kinds:
//   - Trip Updates: per-trip delay predictions
//   - Vehicle Positions: current vehicle locations
//
// Decode is data-source agnostic: it accepts raw protobuf bytes and returns
// a tagged FeedBatch. Fetching is handled by the transport package.
package gtfsrt
