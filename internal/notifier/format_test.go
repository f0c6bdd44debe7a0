package notifier

import "testing"

func TestRender(t *testing.T) {
	t.Parallel()
	vars := map[string]string{"user": "alice", "challenge": "pwn1", "num": "3"}

	tests := []struct {
		name string
		tmpl string
		want string
	}{
		{name: "solve template", tmpl: "{user} solved {challenge} ({num})", want: "alice solved pwn1 (3)"},
		{name: "no placeholders", tmpl: "plain text", want: "plain text"},
		{name: "literal braces", tmpl: "{{json}} {user}", want: "{json} alice"},
		{name: "adjacent", tmpl: "{user}{num}", want: "alice3"},
		{name: "empty template", tmpl: "", want: ""},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			got, err := Render(tt.tmpl, vars)
			if err != nil {
				t.Fatalf("Render(%q) error: %v", tt.tmpl, err)
			}
			if got != tt.want {
				t.Fatalf("Render(%q) = %q, want %q", tt.tmpl, got, tt.want)
			}
		})
	}
}

func TestRenderErrors(t *testing.T) {
	t.Parallel()
	vars := map[string]string{"user": "alice"}

	for _, tmpl := range []string{
		"{user",     // unclosed
		"user}",     // unmatched close
		"{}",        // empty name
		"{unknown}", // not in vars
		"{us er}",   // whitespace in name
		"{a{b}",     // nested open
	} {
		if _, err := Render(tmpl, vars); err == nil {
			t.Fatalf("Render(%q) succeeded, want error", tmpl)
		}
	}
}

func TestRenderFirstBloodDefault(t *testing.T) {
	t.Parallel()
	got, err := Render("🩸 First Blood! ⚡️\n{user} solved {challenge}", map[string]string{
		"user": "bob", "challenge": "pwn1",
	})
	if err != nil {
		t.Fatalf("Render error: %v", err)
	}
	if got != "🩸 First Blood! ⚡️\nbob solved pwn1" {
		t.Fatalf("Render = %q", got)
	}
}
