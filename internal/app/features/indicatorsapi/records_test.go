package indicatorsapi

import (
	"strings"
	"testing"
	"time"
)

func TestParseCSV_FirstRow(t *testing.T) {
	h := &Handler{now: func() time.Time { return testNow }}

	tests := []struct {
		name         string
		in           string
		wantEntries  int
		wantRejected []int
	}{
		{"header skipped", "date,value\n2024-03-01,1\n", 1, nil},
		{"first row is data", "2024-03-01,1\n2024-03-02,2\n", 2, nil},
		{"first row with bad value", "2024-01-01,abc\n2024-03-02,2\n", 1, []int{1}},
		{"first row with future date", "2024-04-01,3\n2024-03-02,2\n", 1, []int{1}},
		{"later unparseable date", "2024-03-01,1\nwhen,2\n", 1, []int{2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entries, res, err := h.parseCSV(strings.NewReader(tt.in))
			if err != nil {
				t.Fatalf("parseCSV() error = %v", err)
			}
			if len(entries) != tt.wantEntries {
				t.Errorf("entries = %+v, want %d", entries, tt.wantEntries)
			}
			if len(res.Rejected) != len(tt.wantRejected) {
				t.Fatalf("Rejected = %+v, want lines %v", res.Rejected, tt.wantRejected)
			}
			for i, line := range tt.wantRejected {
				if res.Rejected[i].Line != line {
					t.Errorf("Rejected[%d].Line = %d, want %d", i, res.Rejected[i].Line, line)
				}
			}
		})
	}
}
