// Package ingest orchestrates fetch→decode→persist cycles across the
// configured feed sources. It owns scheduling: inter-request pacing, cycle
// aggregation with per-source failure isolation, and the continuous loop.
// The transport, decoders, and store stay pure transformation/IO leaves.
package ingest
