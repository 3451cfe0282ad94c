package match

import "testing"

func TestCompile_RedisSyntax(t *testing.T) {
	tests := []struct {
		pattern string
		key     string
		want    bool
	}{
		{"o1_delimited:*", "o1_delimited:6f1c:42:0b0f", true},
		{"o1_delimited:*", "o2_json:6f1c", false},
		{"o4_set:?", "o4_set:a", true},
		{"p:{a,b}", "p:{a,b}", true}, // braces are literals
		{"p:{a,b}", "p:a", false},
		{"p:a,b", "p:a,b", true},
		{"p:[^a]", "p:b", true}, // Redis negation
		{"p:[^a]", "p:a", false},
		{"p:[a-c]", "p:b", true},
		{"p:[a-c]", "p:d", false},
		{`p:\*`, "p:*", true},
		{`p:\*`, "p:x", false},
	}
	for _, tt := range tests {
		g, err := Compile(tt.pattern)
		if err != nil {
			t.Fatalf("Compile(%q): %v", tt.pattern, err)
		}
		if got := g.Match(tt.key); got != tt.want {
			t.Fatalf("Compile(%q).Match(%q) = %v, want %v (glob %q)", tt.pattern, tt.key, got, tt.want, translate(tt.pattern))
		}
	}
}

func TestCompile_Invalid(t *testing.T) {
	if _, err := Compile("o1:[a"); err == nil {
		t.Fatalf("expected error for unterminated class")
	}
}
