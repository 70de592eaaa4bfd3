package exports

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"encoding/json"
	"testing"
	"time"

	"shopchain/integrations/archive"
)

func sampleRecords() []archive.Record {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return []archive.Record{
		{Seq: 1, Operation: "market_payOrder", Type: "market.order.paid", Attributes: `{"id":"4","customer":"0xb1"}`, At: at},
		{Seq: 2, Operation: "token_transfer", Type: "token.transfer", Attributes: `{}`, At: at.Add(time.Second)},
	}
}

func TestEventsCSV(t *testing.T) {
	data, sum, err := EventsCSV(sampleRecords())
	if err != nil {
		t.Fatalf("csv: %v", err)
	}
	if len(sum) != 64 {
		t.Fatalf("unexpected checksum %q", sum)
	}
	rows, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	if err != nil {
		t.Fatalf("parse csv: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected header and two rows, got %d", len(rows))
	}
	if rows[1][0] != "1" || rows[1][4] != "customer=0xb1;id=4" {
		t.Fatalf("unexpected row %v", rows[1])
	}
	again, sum2, err := EventsCSV(sampleRecords())
	if err != nil || sum2 != sum || !bytes.Equal(again, data) {
		t.Fatalf("export is not deterministic")
	}
}

func TestEventsJSONL(t *testing.T) {
	data, sum, err := EventsJSONL(sampleRecords())
	if err != nil {
		t.Fatalf("jsonl: %v", err)
	}
	if sum == "" {
		t.Fatalf("missing checksum")
	}
	scanner := bufio.NewScanner(bytes.NewReader(data))
	lines := 0
	for scanner.Scan() {
		var line map[string]interface{}
		if err := json.Unmarshal(scanner.Bytes(), &line); err != nil {
			t.Fatalf("line %d: %v", lines, err)
		}
		lines++
	}
	if lines != 2 {
		t.Fatalf("expected two lines, got %d", lines)
	}
}

func TestEventsCSVRejectsCorruptAttributes(t *testing.T) {
	records := []archive.Record{{Seq: 1, Type: "x", Attributes: "{"}}
	if _, _, err := EventsCSV(records); err == nil {
		t.Fatalf("expected decode error")
	}
}
