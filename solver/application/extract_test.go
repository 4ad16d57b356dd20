package application

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"

	"math-solver-gateway/solver/domain"
)

func f64(v float64) *float64 { return &v }

func TestExtract_FencedJSONInsideProse(t *testing.T) {
	raw := "Sure! ```json\n{\"title\":\"t\",\"equations\":[\"x+y=31\"],\"steps\":[{\"description\":\"d\",\"calculation\":\"c\",\"result\":\"r\"}],\"solution\":{\"x\":24.5,\"y\":6.5},\"verification\":\"v\"}\n``` done."

	s, err := Extract(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Title != "t" {
		t.Fatalf("expected title t, got %q", s.Title)
	}
	if len(s.Equations) != 1 || len(s.Steps) != 1 {
		t.Fatalf("expected one equation and one step, got %d/%d", len(s.Equations), len(s.Steps))
	}
	if s.Unknowns["x"] == nil || *s.Unknowns["x"] != 24.5 {
		t.Fatalf("expected x=24.5, got %v", s.Unknowns["x"])
	}
	if s.Unknowns["y"] == nil || *s.Unknowns["y"] != 6.5 {
		t.Fatalf("expected y=6.5, got %v", s.Unknowns["y"])
	}
}

func TestExtract_NoBraces(t *testing.T) {
	_, err := Extract("no braces here")
	if !errors.Is(err, domain.ErrNoPayloadFound) {
		t.Fatalf("expected ErrNoPayloadFound, got %v", err)
	}
}

func TestExtract_Unterminated(t *testing.T) {
	_, err := Extract(`{"title": "t"`)
	if !errors.Is(err, domain.ErrIncompletePayload) {
		t.Fatalf("expected ErrIncompletePayload, got %v", err)
	}
}

func TestExtract_MalformedJSON(t *testing.T) {
	_, err := Extract(`here you go: {"title": t}`)
	if !errors.Is(err, domain.ErrMalformedPayload) {
		t.Fatalf("expected ErrMalformedPayload, got %v", err)
	}
	var syn *json.SyntaxError
	if !errors.As(err, &syn) {
		t.Fatalf("expected the JSON syntax error as cause, got %v", err)
	}
}

func TestExtract_RecoversSolutionFromAnyWrapping(t *testing.T) {
	want := domain.Solution{
		Title:     "System of two equations",
		Equations: []string{"x + y = 31", "x - y = 18"},
		Steps: []domain.Step{
			{Description: "Add both equations", Calculation: "2x = 49", Result: "x = 24.5"},
			{Description: "Substitute x", Calculation: "24.5 + y = 31", Result: "y = 6.5"},
		},
		Unknowns:     map[string]*float64{"x": f64(24.5), "y": f64(6.5), "z": nil},
		Verification: "24.5 + 6.5 = 31 {ok}",
	}
	b, err := json.Marshal(want)
	if err != nil {
		t.Fatal(err)
	}
	payload := string(b)

	variants := map[string]string{
		"clean":          payload,
		"fenced json":    "```json\n" + payload + "\n```",
		"fenced no tag":  "```\n" + payload + "\n```",
		"fenced inline":  "```json" + payload + "```",
		"prose around":   "Here is the solution:\n" + payload + "\nHope it helps.",
		"prose + fence":  "Result below.\n```json\n" + payload + "\n```\nLet me know!",
		"unclosed fence": "```json\n" + payload,
		"padded":         "\n\t  " + payload + "   \n",
	}
	for name, raw := range variants {
		t.Run(name, func(t *testing.T) {
			got, err := Extract(raw)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !reflect.DeepEqual(got, want) {
				t.Fatalf("solution mismatch:\n got %+v\nwant %+v", got, want)
			}
		})
	}
}

func TestExtract_NestedObjectsDoNotEndSpanEarly(t *testing.T) {
	raw := `prefix {"title":"t","equations":[],"steps":[],"solution":{"x":null},"verification":"v","meta":{"a":{"b":1}}} trailing {"x":1}`

	s, err := Extract(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v, ok := s.Unknowns["x"]; !ok || v != nil {
		t.Fatalf("expected x present and null, got %v (present=%v)", v, ok)
	}
}

func TestExtract_NumericStringUnknown(t *testing.T) {
	raw := `{"title":"t","equations":[],"steps":[],"solution":{"x":"3.5"},"verification":"v"}`

	s, err := Extract(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Unknowns["x"] == nil || *s.Unknowns["x"] != 3.5 {
		t.Fatalf("expected x=3.5, got %v", s.Unknowns["x"])
	}
}

func TestExtract_SchemaViolations(t *testing.T) {
	cases := []struct {
		name  string
		raw   string
		field string
	}{
		{"missing title", `{"equations":[],"steps":[],"solution":{},"verification":"v"}`, "title"},
		{"title not string", `{"title":1,"equations":[],"steps":[],"solution":{},"verification":"v"}`, "title"},
		{"equations not array", `{"title":"t","equations":"x=1","steps":[],"solution":{},"verification":"v"}`, "equations"},
		{"equation not string", `{"title":"t","equations":["a",2],"steps":[],"solution":{},"verification":"v"}`, "equations[1]"},
		{"missing steps", `{"title":"t","equations":[],"solution":{},"verification":"v"}`, "steps"},
		{"step not object", `{"title":"t","equations":[],"steps":["s"],"solution":{},"verification":"v"}`, "steps[0]"},
		{"step missing result", `{"title":"t","equations":[],"steps":[{"description":"d","calculation":"c"}],"solution":{},"verification":"v"}`, "steps[0].result"},
		{"solution not object", `{"title":"t","equations":[],"steps":[],"solution":[1],"verification":"v"}`, "solution"},
		{"unknown not numeric", `{"title":"t","equations":[],"steps":[],"solution":{"x":"abc"},"verification":"v"}`, "solution.x"},
		{"unknown NaN", `{"title":"t","equations":[],"steps":[],"solution":{"x":"NaN"},"verification":"v"}`, "solution.x"},
		{"unknown Inf", `{"title":"t","equations":[],"steps":[],"solution":{"x":"Inf"},"verification":"v"}`, "solution.x"},
		{"unknown -Infinity", `{"title":"t","equations":[],"steps":[],"solution":{"z":" -Infinity "},"verification":"v"}`, "solution.z"},
		{"unknown bool", `{"title":"t","equations":[],"steps":[],"solution":{"y":true},"verification":"v"}`, "solution.y"},
		{"missing verification", `{"title":"t","equations":[],"steps":[],"solution":{}}`, "verification"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := Extract(c.raw)
			if !errors.Is(err, domain.ErrSchemaViolation) {
				t.Fatalf("expected ErrSchemaViolation, got %v", err)
			}
			var de *domain.Error
			if !errors.As(err, &de) || de.Field != c.field {
				t.Fatalf("expected field %q, got %+v", c.field, de)
			}
			if domain.Retryable(err) {
				t.Fatalf("schema violations must not be retryable")
			}
		})
	}
}
