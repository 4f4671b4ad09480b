package agent

import (
	"reflect"
	"testing"
)

func TestEvalLiteral(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want any
	}{
		{"double-quoted string", `"hello"`, "hello"},
		{"single-quoted string", `'hello'`, "hello"},
		{"integer normalizes to float", "42", float64(42)},
		{"negative number", "-3", float64(-3)},
		{"float", "2.5", 2.5},
		{"true", "True", true},
		{"false", "False", false},
		{"none", "None", nil},
		{"list", "[1, 'a', True]", []any{float64(1), "a", true}},
		{"tuple", "(1, 2)", []any{float64(1), float64(2)}},
		{"dict", "{'k': 'v', 'n': 1}", map[string]any{"k": "v", "n": float64(1)}},
		{"nested", "{'a': [{'b': None}]}", map[string]any{"a": []any{map[string]any{"b": nil}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := EvalLiteral(tt.src)
			if err != nil {
				t.Fatalf("EvalLiteral(%q): %v", tt.src, err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("got %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestEvalLiteralRefusesExecution(t *testing.T) {
	tests := []string{
		"__import__('os')",
		"open('/etc/passwd')",
		"a + b",
		"x",
		"lambda: 1",
		"[i for i in range(10)]",
		"obj.attr",
		"d['key']",
	}
	for _, src := range tests {
		t.Run(src, func(t *testing.T) {
			if _, err := EvalLiteral(src); err == nil {
				t.Errorf("EvalLiteral(%q) succeeded, want refusal", src)
			}
		})
	}
}

func TestEvalLiteralRejectsNonStringDictKeys(t *testing.T) {
	if _, err := EvalLiteral("{1: 'a'}"); err == nil {
		t.Error("integer dict keys have no JSON equivalent and must be refused")
	}
}
