package inputval

import "testing"

func TestIsValidUsername(t *testing.T) {
	for s, want := range map[string]bool{
		"valaz":     true,
		"Val_Az":    true,
		"val.az-1":  true,
		"  valaz  ": true,
		"":          false,
		"val az":    false,
		"val@az":    false,
		"val/az":    false,
	} {
		if got := IsValidUsername(s); got != want {
			t.Errorf("IsValidUsername(%q) = %v, want %v", s, got, want)
		}
	}
}

func TestIsValidDate(t *testing.T) {
	for s, want := range map[string]bool{
		"2024-03-01":   true,
		"2024-02-29":   true,
		" 2024-03-01 ": true,
		"2023-02-29":   false,
		"2024-13-01":   false,
		"03/01/2024":   false,
		"2024-3-1":     false,
		"":             false,
	} {
		if got := IsValidDate(s); got != want {
			t.Errorf("IsValidDate(%q) = %v, want %v", s, got, want)
		}
	}
}

func TestIsValidPeriod(t *testing.T) {
	for _, p := range []string{"all", "week", "month", "3m", "6m", "year", "YEAR"} {
		if !IsValidPeriod(p) {
			t.Errorf("IsValidPeriod(%q) = false", p)
		}
	}
	for _, p := range []string{"", "day", "12m"} {
		if IsValidPeriod(p) {
			t.Errorf("IsValidPeriod(%q) = true", p)
		}
	}
}

type signupForm struct {
	Name     string `json:"name" validate:"required,max=40" label:"Name"`
	Username string `json:"username" validate:"required,min=3,max=15,username" label:"Username"`
	Email    string `json:"email" validate:"required,email" label:"Email"`
}

func TestValidate_Signup(t *testing.T) {
	valid := signupForm{Name: "Val", Username: "valaz", Email: "val@example.com"}

	tests := []struct {
		name      string
		mutate    func(*signupForm)
		wantField string
		wantMsg   string
	}{
		{"valid", func(*signupForm) {}, "", ""},
		{"missing name", func(f *signupForm) { f.Name = "" }, "name", "Name is required."},
		{"short username", func(f *signupForm) { f.Username = "va" }, "username", "Username must be at least 3 characters."},
		{"bad username chars", func(f *signupForm) { f.Username = "val az" }, "username",
			"Username may contain only letters, digits, '.', '_' and '-'."},
		{"bad email", func(f *signupForm) { f.Email = "notanemail" }, "email", "A valid email address is required."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := valid
			tt.mutate(&in)
			res := Validate(in)

			if tt.wantField == "" {
				if res.HasErrors() {
					t.Fatalf("Validate() errors = %s", res.All())
				}
				return
			}
			got := res.Fields()[tt.wantField]
			if got != tt.wantMsg {
				t.Errorf("Fields()[%q] = %q, want %q (all: %v)", tt.wantField, got, tt.wantMsg, res.Fields())
			}
		})
	}
}

func TestValidate_CustomRules(t *testing.T) {
	type recordForm struct {
		Date string `json:"date" validate:"required,isodate" label:"Date"`
	}
	if res := Validate(recordForm{Date: "2024-03-01"}); res.HasErrors() {
		t.Errorf("isodate rejected a valid date: %s", res.First())
	}
	res := Validate(recordForm{Date: "yesterday"})
	if !res.HasErrors() || res.Errors[0].Field != "date" {
		t.Fatalf("isodate: errors = %+v, want one on field date", res.Errors)
	}
	if res.First() != "Date must be a date in YYYY-MM-DD format." {
		t.Errorf("message = %q", res.First())
	}

	type periodForm struct {
		Period string `json:"period" validate:"required,period" label:"Period"`
	}
	if res := Validate(&periodForm{Period: "3m"}); res.HasErrors() {
		t.Errorf("period rejected 3m: %s", res.First())
	}
	if res := Validate(&periodForm{Period: "decade"}); !res.HasErrors() {
		t.Error("period accepted decade")
	}
}

func TestValidate_LabelFallsBackToFieldName(t *testing.T) {
	type form struct {
		Name string `validate:"required"`
	}
	if got := Validate(form{}).First(); got != "Name is required." {
		t.Errorf("First() = %q", got)
	}
}

func TestValidate_NonStruct(t *testing.T) {
	if res := Validate("not a struct"); res == nil {
		t.Error("Validate() returned nil")
	}
}

func TestResult(t *testing.T) {
	empty := &Result{}
	if empty.HasErrors() || empty.First() != "" || empty.All() != "" || len(empty.Fields()) != 0 {
		t.Errorf("empty result misbehaves: %+v", empty)
	}

	r := &Result{Errors: []FieldError{
		{Field: "name", Message: "Name is required."},
		{Field: "name", Message: "Name must be at most 40 characters."},
		{Field: "email", Message: "A valid email address is required."},
	}}
	if r.First() != "Name is required." {
		t.Errorf("First() = %q", r.First())
	}
	if want := "Name is required.; Name must be at most 40 characters.; A valid email address is required."; r.All() != want {
		t.Errorf("All() = %q", r.All())
	}
	fields := r.Fields()
	if len(fields) != 2 || fields["name"] != "Name is required." {
		t.Errorf("Fields() = %v", fields)
	}
}
