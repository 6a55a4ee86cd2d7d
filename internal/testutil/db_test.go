package testutil

import (
	"strings"
	"testing"
)

func TestDBName(t *testing.T) {
	if got := dbName("TestStore_Create/bad name"); got != "stratatrack_test_TestStore_Create_bad_name" {
		t.Errorf("dbName() = %q", got)
	}

	long := "TestHandler_ImportRecords/" + strings.Repeat("x", 80)
	a := dbName(long)
	b := dbName(long + "y")
	if len(a) != maxDBName {
		t.Errorf("len(dbName(long)) = %d, want %d", len(a), maxDBName)
	}
	if a == b {
		t.Error("long names that differ only past the cut should still differ")
	}
}
