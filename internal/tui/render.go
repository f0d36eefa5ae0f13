package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"photoagent/internal/chat"
	"photoagent/internal/i18n"
	"photoagent/internal/permission"
)

// RenderMarkdown 使用 Glamour 渲染 markdown 文本
// RenderMarkdown renders markdown text using Glamour
func RenderMarkdown(content string, width int) string {
	if strings.TrimSpace(content) == "" {
		return ""
	}
	if width <= 0 {
		width = 80
	}

	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return content
	}

	rendered, err := r.Render(content)
	if err != nil {
		return content
	}

	return strings.TrimRight(rendered, "\n")
}

// RenderMessage 渲染一条对话消息
// RenderMessage renders one transcript entry for the chat panel.
func RenderMessage(m chat.Message, width int, theme Theme) string {
	var b strings.Builder
	switch m.Sender {
	case chat.SenderUser:
		b.WriteString(theme.UserStyle.Render("👤 " + m.Text))
	case chat.SenderError:
		b.WriteString(theme.ErrorStyle.Render("❌ " + m.Text))
	default:
		b.WriteString(RenderMarkdown(m.Text, width))
	}
	if len(m.Images) > 0 {
		b.WriteString("\n")
		b.WriteString(theme.MutedStyle.Render("  🖼  " + runewidth.Truncate(strings.Join(m.Images, ", "), width-6, "...")))
	}
	if chips := RenderSuggestions(m.Suggested, theme); chips != "" {
		b.WriteString("\n")
		b.WriteString(chips)
	}
	return b.String()
}

// RenderSuggestions 渲染建议操作，编号从 1 开始
// RenderSuggestions renders suggestion chips numbered from 1.
func RenderSuggestions(suggested []chat.SuggestedAction, theme Theme) string {
	if len(suggested) == 0 {
		return ""
	}
	chips := make([]string, 0, len(suggested))
	for i, s := range suggested {
		chips = append(chips, theme.ChipStyle.Render(fmt.Sprintf("%d %s", i+1, s.Label)))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, chips...)
}

// RenderConsent 渲染授权弹窗
// RenderConsent renders the consent dialog for req.
func RenderConsent(req permission.ConsentRequest, width int, theme Theme) string {
	if width < 30 {
		width = 30
	}
	lines := []string{
		theme.DangerStyle.Render(i18n.T("consent.title")),
		"",
		req.Summary,
	}
	const maxShown = 8
	for i, uri := range req.URIs {
		if i == maxShown {
			lines = append(lines, theme.MutedStyle.Render(fmt.Sprintf("  … +%d", len(req.URIs)-maxShown)))
			break
		}
		lines = append(lines, theme.MutedStyle.Render("  "+runewidth.Truncate(uri, width-10, "...")))
	}
	lines = append(lines, "", theme.TitleStyle.Render(i18n.T("keys.yn")))
	return theme.ModalStyle.Width(width - 4).Render(strings.Join(lines, "\n"))
}
