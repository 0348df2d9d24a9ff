package format

import "testing"

func TestEscapeMarkdownV1(t *testing.T) {
	got, err := EscapeMarkdown("12_b *main* `st` [x]", MarkdownV1, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "12\\_b \\*main\\* \\`st\\` \\[x]"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestEscapeMarkdownV2(t *testing.T) {
	got, err := EscapeMarkdown("a.b-c!", MarkdownV2, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := `a\.b\-c\!`; got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestEscapeMarkdownV2Entities(t *testing.T) {
	got, err := EscapeMarkdown("x.y`z", MarkdownV2, "code")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := "x.y\\`z"; got != want {
		t.Fatalf("got %q, want %q", got, want)
	}

	got, err = EscapeMarkdown("https://e.co/a)b", MarkdownV2, "text_link")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := `https://e.co/a\)b`; got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestEscapeMarkdownUnknownVersion(t *testing.T) {
	if _, err := EscapeMarkdown("x", 3, ""); err == nil {
		t.Fatalf("expected error for unsupported version")
	}
}