// Package gtfsstatic unpacks GTFS static schedule bundles (zip archives of
// CSV tables) into in-memory row sets. It accepts raw zip bytes; it does NOT
// handle HTTP downloads or file paths.
package gtfsstatic
