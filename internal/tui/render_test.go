package tui

import (
	"strings"
	"testing"

	"photoagent/internal/chat"
	"photoagent/internal/i18n"
	"photoagent/internal/permission"
)

func TestRenderMarkdown_Basic(t *testing.T) {
	input := "# Hello\n\nThis is **bold** text."
	result := RenderMarkdown(input, 80)
	if result == "" {
		t.Fatal("RenderMarkdown returned empty")
	}
	// Glamour 应该渲染了标题 / Glamour should have rendered the heading
	if !strings.Contains(result, "Hello") {
		t.Fatalf("result should contain 'Hello': %q", result)
	}
}

func TestRenderMarkdown_Empty(t *testing.T) {
	if RenderMarkdown("", 80) != "" {
		t.Fatal("empty input should return empty")
	}
	if RenderMarkdown("  ", 80) != "" {
		t.Fatal("whitespace input should return empty")
	}
}

func TestRenderMessage(t *testing.T) {
	theme := DarkTheme()
	got := RenderMessage(chat.Message{
		Text:      "Found **3** photos.",
		Sender:    chat.SenderAgent,
		Images:    []string{"a.jpg", "b.jpg"},
		Suggested: []chat.SuggestedAction{{Label: "Collage", Prompt: "make a collage"}},
	}, 80, theme)
	for _, want := range []string{"Found", "a.jpg, b.jpg", "1 Collage"} {
		if !strings.Contains(got, want) {
			t.Fatalf("rendered message missing %q:\n%s", want, got)
		}
	}

	got = RenderMessage(chat.Message{Text: "boom", Sender: chat.SenderError}, 80, theme)
	if !strings.Contains(got, "boom") {
		t.Fatalf("error message: %q", got)
	}
}

func TestRenderSuggestions_Empty(t *testing.T) {
	if RenderSuggestions(nil, DarkTheme()) != "" {
		t.Fatal("no suggestions should render empty")
	}
}

func TestRenderConsent(t *testing.T) {
	i18n.Init("en")
	uris := make([]string, 10)
	for i := range uris {
		uris[i] = string(rune('a'+i)) + ".jpg"
	}
	got := RenderConsent(permission.ConsentRequest{
		ID:      "h-1",
		Kind:    permission.KindDelete,
		URIs:    uris,
		Summary: "Move 10 photo(s) to the trash?",
	}, 60, DarkTheme())
	for _, want := range []string{"Permission Required", "Move 10 photo(s)", "a.jpg", "+2", "y allow"} {
		if !strings.Contains(got, want) {
			t.Fatalf("dialog missing %q:\n%s", want, got)
		}
	}
	if strings.Contains(got, "j.jpg") {
		t.Fatalf("dialog should cap the list:\n%s", got)
	}
}
