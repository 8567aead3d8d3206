package gtfsstatic

import (
	"archive/zip"
	"bytes"
	"encoding/csv"
	"fmt"
	"log"
	"strings"
)

// ReasonBadArchive marks a bundle whose container could not be opened.
const ReasonBadArchive = "bad_archive"

// DecodeError describes an unreadable static bundle. Per-table parse errors
// never surface here; they degrade to logged warnings.
type DecodeError struct {
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("static bundle decode failed (%s): %v", e.Reason, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Row is one parsed CSV record, keyed by column name.
type Row map[string]string

// TableSet maps table name to its parsed rows. Tables absent from the
// archive are absent from the map.
type TableSet map[string][]Row

// TableNames lists the recognized schedule tables, without the .txt suffix.
var TableNames = []string{
	"agency", "stops", "routes", "trips", "stop_times", "calendar", "calendar_dates",
}

// DecodeBundle opens a GTFS static zip from memory and parses the recognized
// tables. One bad table does not fail the bundle: it is skipped with a
// warning and the remaining tables are still returned.
func DecodeBundle(data []byte) (TableSet, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, &DecodeError{Reason: ReasonBadArchive, Err: err}
	}

	byName := make(map[string]*zip.File, len(zr.File))
	for _, f := range zr.File {
		byName[strings.ToLower(f.Name)] = f
	}

	tables := TableSet{}
	for _, table := range TableNames {
		f, ok := byName[table+".txt"]
		if !ok {
			continue
		}
		rows, err := readTable(f)
		if err != nil {
			log.Printf("warning: skipping %s.txt: %v", table, err)
			continue
		}
		tables[table] = rows
		log.Printf("loaded %s.txt: %d records", table, len(rows))
	}
	return tables, nil
}

func readTable(f *zip.File) ([]Row, error) {
	r, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer func() { _ = r.Close() }()

	rec, err := csv.NewReader(r).ReadAll()
	if err != nil {
		return nil, err
	}
	if len(rec) == 0 {
		return []Row{}, nil
	}

	head := rec[0]
	if len(head) > 0 {
		// agencies commonly export with a UTF-8 BOM on the first header cell
		head[0] = strings.TrimPrefix(head[0], "\ufeff")
	}

	rows := make([]Row, 0, len(rec)-1)
	for _, line := range rec[1:] {
		row := make(Row, len(head))
		for i, col := range head {
			if i < len(line) {
				row[col] = line[i]
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}
