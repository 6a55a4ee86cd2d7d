// Package inputval validates decoded request bodies with pantry/validate
// struct tags and turns failures into messages keyed by JSON field name.
//
//	type recordInput struct {
//	    Date  string `json:"date" validate:"required,isodate" label:"Date"`
//	}
//	if res := inputval.Validate(in); res.HasErrors() {
//	    jsonutil.ValidationError(w, res.Fields())
//	}
package inputval

import (
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/dalemusser/stratatrack/internal/domain/series"
	"github.com/dalemusser/waffle/pantry/validate"
)

// FieldError is one failed rule.
type FieldError struct {
	Field   string // JSON name
	Label   string
	Message string
}

// Result collects the failures of one Validate call.
type Result struct {
	Errors []FieldError
}

func (r *Result) HasErrors() bool { return len(r.Errors) > 0 }

// First returns the first message, or "".
func (r *Result) First() string {
	if len(r.Errors) == 0 {
		return ""
	}
	return r.Errors[0].Message
}

// All joins every message with "; ".
func (r *Result) All() string {
	msgs := make([]string, len(r.Errors))
	for i, e := range r.Errors {
		msgs[i] = e.Message
	}
	return strings.Join(msgs, "; ")
}

// Fields maps each failing field to its first message.
func (r *Result) Fields() map[string]string {
	out := make(map[string]string, len(r.Errors))
	for _, e := range r.Errors {
		if _, seen := out[e.Field]; !seen {
			out[e.Field] = e.Message
		}
	}
	return out
}

// customRule is a string rule registered on top of pantry/validate's
// built-ins, with the message shown when it fails.
type customRule struct {
	check   func(string) bool
	message func(label string) string
}

var customRules = map[string]customRule{
	"username": {IsValidUsername, func(l string) string {
		return l + " may contain only letters, digits, '.', '_' and '-'."
	}},
	"isodate": {IsValidDate, func(l string) string {
		return l + " must be a date in YYYY-MM-DD format."
	}},
	"period": {IsValidPeriod, func(l string) string {
		return l + " must be one of: " + strings.Join(periodNames(), ", ") + "."
	}},
}

var validator = sync.OnceValue(func() *validate.Validator {
	v := validate.New(validate.WithStopOnFirstError())
	for name, rule := range customRules {
		check := rule.check
		v.RegisterRuleFunc(name, func(value any) bool {
			s, ok := value.(string)
			return ok && check(s)
		}, name)
	}
	return v
})

// Validate checks s against its validate tags. Messages use the field's
// label tag, falling back to its name.
func Validate(s any) *Result {
	res := &Result{}
	err := validator().Struct(s)
	if err == nil {
		return res
	}
	errs, ok := err.(validate.Errors)
	if !ok {
		return res
	}

	labels := labelsOf(reflect.TypeOf(s))
	for _, e := range errs {
		label := labels[e.Field]
		if label == "" {
			label = e.Field
		}
		res.Errors = append(res.Errors, FieldError{
			Field:   e.Field,
			Label:   label,
			Message: message(label, e.Rule, e.Param),
		})
	}
	return res
}

var labelCache sync.Map // reflect.Type -> map[string]string

// labelsOf maps each field's JSON name (or Go name) to its label tag.
func labelsOf(t reflect.Type) map[string]string {
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil || t.Kind() != reflect.Struct {
		return nil
	}
	if cached, ok := labelCache.Load(t); ok {
		return cached.(map[string]string)
	}

	labels := make(map[string]string)
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		label := f.Tag.Get("label")
		if label == "" {
			continue
		}
		name := f.Name
		if j, _, _ := strings.Cut(f.Tag.Get("json"), ","); j != "" && j != "-" {
			name = j
		}
		labels[name] = label
	}
	labelCache.Store(t, labels)
	return labels
}

func message(label, rule, param string) string {
	if r, ok := customRules[rule]; ok {
		return r.message(label)
	}
	switch rule {
	case "required":
		return label + " is required."
	case "email":
		return "A valid email address is required."
	case "oneof", "enum":
		return label + " must be one of: " + strings.ReplaceAll(param, " ", ", ") + "."
	case "min":
		return label + " must be at least " + param + " characters."
	case "max":
		return label + " must be at most " + param + " characters."
	}
	return label + " is invalid."
}

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

// IsValidUsername reports whether s uses only username characters. Length
// is checked by min/max.
func IsValidUsername(s string) bool {
	return usernamePattern.MatchString(strings.TrimSpace(s))
}

// IsValidDate reports whether s is a real YYYY-MM-DD calendar date.
func IsValidDate(s string) bool {
	_, err := series.ParseDate(strings.TrimSpace(s))
	return err == nil
}

// IsValidPeriod reports whether s names a chart window.
func IsValidPeriod(s string) bool {
	_, err := series.ParseWindow(s)
	return err == nil
}

func periodNames() []string {
	ws := series.Windows()
	names := make([]string, len(ws))
	for i, w := range ws {
		names[i] = w.String()
	}
	return names
}
