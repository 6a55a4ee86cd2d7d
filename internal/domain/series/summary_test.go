package series

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
)

func TestSummarize(t *testing.T) {
	tests := []struct {
		name      string
		in        []Sample
		wantOK    bool
		want      Summary
		wantDelta *float64
	}{
		{
			name:      "growth over interior gap",
			in:        []Sample{pt("2024-01-01", 10), Gap(d("2024-01-02")), pt("2024-01-03", 20)},
			wantOK:    true,
			want:      Summary{First: 10, Last: 20, Min: 10, Max: 20},
			wantDelta: v(100),
		},
		{
			name:      "starting at zero has no delta",
			in:        []Sample{Gap(d("2024-02-29")), pt("2024-03-01", 0), pt("2024-03-02", 10)},
			wantOK:    true,
			want:      Summary{First: 0, Last: 10, Min: 0, Max: 10},
			wantDelta: nil,
		},
		{
			name:      "decline rounds up at hundredths",
			in:        []Sample{pt("2024-01-01", 3), pt("2024-01-02", 2)},
			wantOK:    true,
			want:      Summary{First: 3, Last: 2, Min: 2, Max: 3},
			wantDelta: v(-33.33),
		},
		{
			name:      "growth rounds up at hundredths",
			in:        []Sample{pt("2024-01-01", 3), pt("2024-01-02", 4)},
			wantOK:    true,
			want:      Summary{First: 3, Last: 4, Min: 3, Max: 4},
			wantDelta: v(33.34),
		},
		{
			name:      "trailing gaps use last measured value",
			in:        []Sample{pt("2024-03-08", 5), pt("2024-03-09", 1), pt("2024-03-10", 7), Gap(d("2024-03-11"))},
			wantOK:    true,
			want:      Summary{First: 5, Last: 7, Min: 1, Max: 7},
			wantDelta: v(40),
		},
		{
			name:      "single point",
			in:        []Sample{pt("2024-01-01", -4)},
			wantOK:    true,
			want:      Summary{First: -4, Last: -4, Min: -4, Max: -4},
			wantDelta: v(0),
		},
		{
			name:   "only gaps",
			in:     []Sample{Gap(d("2024-01-01")), Gap(d("2024-01-02"))},
			wantOK: false,
		},
		{
			name:   "empty",
			in:     nil,
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Summarize(tt.in)
			if ok != tt.wantOK {
				t.Fatalf("Summarize() ok = %v, want %v", ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if got.First != tt.want.First || got.Last != tt.want.Last ||
				got.Min != tt.want.Min || got.Max != tt.want.Max {
				t.Errorf("Summarize() = %+v, want %+v", got, tt.want)
			}
			switch {
			case tt.wantDelta == nil && got.DeltaPercent != nil:
				t.Errorf("DeltaPercent = %v, want nil", *got.DeltaPercent)
			case tt.wantDelta != nil && got.DeltaPercent == nil:
				t.Errorf("DeltaPercent = nil, want %v", *tt.wantDelta)
			case tt.wantDelta != nil && *got.DeltaPercent != *tt.wantDelta:
				t.Errorf("DeltaPercent = %v, want %v", *got.DeltaPercent, *tt.wantDelta)
			}
		})
	}
}

func TestSummarize_AfterNormalize(t *testing.T) {
	in := []Sample{pt("2024-03-01", 0), pt("2024-03-02", 10)}

	got, ok := Summarize(Normalize(in, Week, Options{}))
	if !ok {
		t.Fatal("Summarize() ok = false")
	}
	if got.DeltaPercent != nil {
		t.Errorf("DeltaPercent = %v, want nil", *got.DeltaPercent)
	}
	if got.Min != 0 || got.Max != 10 {
		t.Errorf("min/max = %v/%v, want 0/10", got.Min, got.Max)
	}
}

func TestParseWindow(t *testing.T) {
	tests := []struct {
		in      string
		want    Window
		wantErr bool
	}{
		{"all", All, false},
		{"week", Week, false},
		{"MONTH", Month, false},
		{"3m", Quarter, false},
		{"quarter", Quarter, false},
		{" 6M ", HalfYear, false},
		{"half-year", HalfYear, false},
		{"year", Year, false},
		{"", All, true},
		{"decade", All, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseWindow(tt.in)
			if tt.wantErr {
				if !errors.Is(err, ErrUnknownWindow) {
					t.Errorf("ParseWindow(%q) error = %v, want ErrUnknownWindow", tt.in, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseWindow(%q) error = %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("ParseWindow(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestWindow_LookbackDays(t *testing.T) {
	want := map[Window]int{Week: 7, Month: 30, Quarter: 91, HalfYear: 183, Year: 365}
	for w, n := range want {
		got, ok := w.LookbackDays()
		if !ok || got != n {
			t.Errorf("%s.LookbackDays() = %d, %v; want %d, true", w, got, ok, n)
		}
	}
	if _, ok := All.LookbackDays(); ok {
		t.Error("All.LookbackDays() ok = true, want false")
	}
}

func TestPeriodPreference(t *testing.T) {
	ctx := context.Background()
	prefs := NewMemoryPreferences()

	if key := PeriodKey("42"); key != "indicator_42_period" {
		t.Errorf("PeriodKey() = %q", key)
	}

	w, err := LoadWindow(ctx, prefs, "42")
	if err != nil || w != All {
		t.Fatalf("LoadWindow() on empty store = %q, %v; want all, nil", w, err)
	}

	if err := SaveWindow(ctx, prefs, "42", Quarter); err != nil {
		t.Fatalf("SaveWindow() error = %v", err)
	}
	if raw, _, _ := prefs.Get(ctx, "indicator_42_period"); raw != "3m" {
		t.Errorf("stored value = %q, want 3m", raw)
	}
	w, err = LoadWindow(ctx, prefs, "42")
	if err != nil || w != Quarter {
		t.Errorf("LoadWindow() = %q, %v; want 3m, nil", w, err)
	}

	// Other indicators are unaffected.
	if w, _ := LoadWindow(ctx, prefs, "43"); w != All {
		t.Errorf("LoadWindow(43) = %q, want all", w)
	}

	_ = prefs.Set(ctx, PeriodKey("42"), "fortnight")
	if w, err := LoadWindow(ctx, prefs, "42"); err != nil || w != All {
		t.Errorf("LoadWindow() with unknown stored value = %q, %v; want all, nil", w, err)
	}
}

func TestSample_JSON(t *testing.T) {
	b, err := json.Marshal([]Sample{pt("2024-03-01", 1.5), Gap(d("2024-03-02"))})
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	want := `[{"date":"2024-03-01","value":1.5},{"date":"2024-03-02","value":null}]`
	if string(b) != want {
		t.Errorf("Marshal() = %s, want %s", b, want)
	}

	var back []Sample
	if err := json.Unmarshal(b, &back); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if len(back) != 2 || back[1].Value != nil || *back[0].Value != 1.5 {
		t.Errorf("Unmarshal() = %v", render(back))
	}

	if err := json.Unmarshal([]byte(`{"date":"03/01/2024","value":1}`), &Sample{}); err == nil {
		t.Error("Unmarshal() with bad date should fail")
	}
}
