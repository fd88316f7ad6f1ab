// backend/nhtsa/flatfile_test.go
package nhtsa

import (
	"strings"
	"testing"
)

// The flat file is pipe-delimited and Latin-1 encoded; "\xcb" below is the
// Latin-1 byte for Ë.
const flatFileSample = "CMPLID|MAKETXT|MODELTXT|YEARTXT|CRASH|FIRE|INJURED|DEATHS|COMPDESC|CDESCR|LDATE\n" +
	"1001|CITRO\xcbN|C3|2021|Y|N|2|0|SUSPENSION|PULLS LEFT|20230110\n" +
	"|FORD|F-150|2021|N|N|0|0|ENGINE|NO ID ROW|20230111\n" +
	"1002|FORD|F-150|2021|N|Y|abc|0|ENGINE|BAD INJURY COUNT|20230112\n" +
	"1003|FORD|F-150|2021|N|N|||ENGINE|EMPTY COUNTS|20230113\n"

func TestParseComplaintFile(t *testing.T) {
	records, skipped, err := ParseComplaintFile(strings.NewReader(flatFileSample))
	if err != nil {
		t.Fatalf("ParseComplaintFile() error = %v", err)
	}
	if skipped != 2 {
		t.Fatalf("skipped = %d, want 2 (missing CMPLID, bad INJURED)", skipped)
	}
	if len(records) != 2 {
		t.Fatalf("len(records) = %d, want 2", len(records))
	}

	first := records[0]
	if first.ODINumber != "1001" {
		t.Fatalf("ODINumber = %q, want %q", first.ODINumber, "1001")
	}
	if first.Make != "CITROËN" {
		t.Fatalf("Make = %q, want decoded Latin-1 %q", first.Make, "CITROËN")
	}
	if !first.Crash || first.Fire {
		t.Fatalf("flags = crash %v fire %v, want crash true fire false", first.Crash, first.Fire)
	}
	if first.Injuries != 2 {
		t.Fatalf("Injuries = %d, want 2", first.Injuries)
	}

	// Empty numeric fields default to zero rather than failing the row.
	second := records[1]
	if second.ODINumber != "1003" || second.Injuries != 0 || second.Deaths != 0 {
		t.Fatalf("empty-count row = %+v, want id 1003 with zero counts", second)
	}
}

func TestParseComplaintFileEmpty(t *testing.T) {
	records, skipped, err := ParseComplaintFile(strings.NewReader("CMPLID|MAKETXT|MODELTXT|YEARTXT|CRASH|FIRE|INJURED|DEATHS|COMPDESC|CDESCR|LDATE\n"))
	if err != nil {
		t.Fatalf("ParseComplaintFile() error = %v", err)
	}
	if len(records) != 0 || skipped != 0 {
		t.Fatalf("got %d records, %d skipped, want none", len(records), skipped)
	}
}
