package languages

import "testing"

func TestLabel(t *testing.T) {
	cases := map[string]string{
		"en": "English",
		"tl": "Tagalog",
		"zh": "Chinese",
		"xx": "xx",
		"":   "",
	}
	for code, want := range cases {
		if got := Label(code); got != want {
			t.Errorf("Label(%q) = %q, want %q", code, got, want)
		}
	}
}

func TestSupportedIsACopy(t *testing.T) {
	list := Supported()
	if len(list) != 10 {
		t.Fatalf("expected 10 languages, got %d", len(list))
	}
	if list[0].Code != "en" || list[1].Code != "es" {
		t.Fatalf("unexpected order %v", list[:2])
	}
	list[0].Label = "changed"
	if Label("en") != "English" {
		t.Fatal("Supported must not expose internal state")
	}
	if !Known("ur") || Known("pt") {
		t.Fatal("unexpected Known result")
	}
}
