package style

import (
	"encoding/json"
	"testing"
)

func TestExprMatch(t *testing.T) {
	props := map[string]any{
		"highway": "primary",
		"lanes":   2.0,
		"pop":     json.Number("15000"),
		"oneway":  "yes",
		"name":    "O'Connell Street",
		"code":    "042",
		"bridge":  true,
	}
	props[GeometryTypeField] = 2

	tests := []struct {
		expr string
		want bool
	}{
		{"[highway] = 'primary'", true},
		{"[highway] == \"primary\"", true},
		{"[highway] != 'primary'", false},
		{"[highway] <> 'secondary'", true},
		{"[lanes] >= 2", true},
		{"[lanes] > 2", false},
		{"[lanes] < 2.5 and [lanes] <= 2", true},
		{"[pop] > 10000", true},
		{"[pop] / 1000 = 15", true},
		{"[lanes] * 2 + 1 = 5", true},
		{"-[lanes] < 0", true},
		{"[lanes] % 2 = 0", true},
		{"[missing] = null", true},
		{"[missing] != null", false},
		{"[missing] > 1", false},
		{"[oneway] = 'yes' && [lanes] = 1", false},
		{"[oneway] = 'yes' || [lanes] = 1", true},
		{"not [oneway] = 'no'", true},
		{"![bridge]", false},
		{"[bridge] = true", true},
		{"([highway] = 'motorway' or [highway] = 'primary') and not ([lanes] > 4)", true},
		{"[name] = 'O\\'Connell Street'", true},
		{"[code] = 42", true},
		{"[code] = '42'", false},
		{"[mapnik::geometry_type] = 2", true},
		{"[highway] > 'motorway'", true},
		{"[lanes] / 0 = 1", false},
		{"true", true},
		{"false or FALSE", false},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			e, err := ParseExpr(tt.expr)
			if err != nil {
				t.Fatalf("ParseExpr(%q): %v", tt.expr, err)
			}
			if got := Match(e, props); got != tt.want {
				t.Errorf("Match(%s) = %v, want %v", e, got, tt.want)
			}
		})
	}
}

func TestExprPrecedence(t *testing.T) {
	e, err := ParseExpr("[a] = 1 or [b] = 1 and [c] = 1")
	if err != nil {
		t.Fatal(err)
	}
	// "and" binds tighter: a=1 alone is enough.
	if !Match(e, map[string]any{"a": 1.0}) {
		t.Error("and should bind tighter than or")
	}
	if Match(e, map[string]any{"b": 1.0}) {
		t.Error("b alone should not match")
	}
	if got := e.String(); got != "(([a] = 1) or (([b] = 1) and ([c] = 1)))" {
		t.Errorf("String() = %q", got)
	}
}

func TestExprLabel(t *testing.T) {
	tests := []struct {
		expr  string
		props map[string]any
		want  string
	}{
		{"[name]", map[string]any{"name": "Berlin"}, "Berlin"},
		{"[name] + ' ' + [pop]", map[string]any{"name": "Berlin", "pop": 3.6}, "Berlin 3.6"},
		{"[a] + [b]", map[string]any{"a": 1.0, "b": 2.0}, "3"},
		{"[a] + [b]", map[string]any{"a": "1", "b": "2"}, "12"},
		{"[missing]", nil, ""},
		{"'const'", nil, "const"},
	}
	for _, tt := range tests {
		e, err := ParseExpr(tt.expr)
		if err != nil {
			t.Fatalf("ParseExpr(%q): %v", tt.expr, err)
		}
		if got := Label(e, tt.props); got != tt.want {
			t.Errorf("Label(%q) = %q, want %q", tt.expr, got, tt.want)
		}
	}
}

func TestExprNil(t *testing.T) {
	if !Match(nil, nil) {
		t.Error("nil filter should match")
	}
	if Label(nil, nil) != "" {
		t.Error("nil label should be empty")
	}
}

func TestParseExprErrors(t *testing.T) {
	for _, src := range []string{
		"",
		"[a",
		"'open",
		"[a] = ",
		"[a] = 1)",
		"([a] = 1",
		"[a] ~ 1",
		"foo = 1",
		"1.2.3 = 1",
	} {
		if _, err := ParseExpr(src); err == nil {
			t.Errorf("ParseExpr(%q) should fail", src)
		}
	}
}
