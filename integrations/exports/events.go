// Package exports renders archived ledger events for offline reconciliation.
package exports

import (
	"bytes"
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"encoding/json"
	"sort"
	"strconv"
	"strings"
	"time"

	"shopchain/integrations/archive"
)

var csvHeader = []string{"seq", "operation", "type", "at", "attributes"}

// EventsCSV builds a CSV export of the records and returns it with a
// SHA-256 checksum of the payload. Attributes are rendered as sorted
// key=value pairs separated by semicolons.
func EventsCSV(records []archive.Record) ([]byte, string, error) {
	buffer := &bytes.Buffer{}
	writer := csv.NewWriter(buffer)
	if err := writer.Write(csvHeader); err != nil {
		return nil, "", err
	}
	for _, rec := range records {
		attrs, err := rec.Attrs()
		if err != nil {
			return nil, "", err
		}
		row := []string{
			strconv.FormatUint(rec.Seq, 10),
			rec.Operation,
			rec.Type,
			rec.At.UTC().Format(time.RFC3339Nano),
			flatten(attrs),
		}
		if err := writer.Write(row); err != nil {
			return nil, "", err
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, "", err
	}
	data := buffer.Bytes()
	return data, checksum(data), nil
}

// EventsJSONL builds a JSON Lines export of the records and returns it with
// a checksum.
func EventsJSONL(records []archive.Record) ([]byte, string, error) {
	buffer := &bytes.Buffer{}
	encoder := json.NewEncoder(buffer)
	encoder.SetEscapeHTML(false)
	for _, rec := range records {
		attrs, err := rec.Attrs()
		if err != nil {
			return nil, "", err
		}
		payload := map[string]interface{}{
			"seq":        rec.Seq,
			"operation":  rec.Operation,
			"type":       rec.Type,
			"at":         rec.At.UTC().Format(time.RFC3339Nano),
			"attributes": attrs,
		}
		if err := encoder.Encode(payload); err != nil {
			return nil, "", err
		}
	}
	data := buffer.Bytes()
	return data, checksum(data), nil
}

func flatten(attrs map[string]string) string {
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+attrs[k])
	}
	return strings.Join(parts, ";")
}

func checksum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
