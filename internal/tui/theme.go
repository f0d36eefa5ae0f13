package tui

import "github.com/charmbracelet/lipgloss"

// Theme TUI 样式集合
// Theme is the set of styles the TUI draws with.
type Theme struct {
	TitleStyle       lipgloss.Style
	ActiveTabStyle   lipgloss.Style
	InactiveTabStyle lipgloss.Style
	StatusBarStyle   lipgloss.Style
	SidebarStyle     lipgloss.Style
	InputStyle       lipgloss.Style
	UserStyle        lipgloss.Style
	ErrorStyle       lipgloss.Style
	MutedStyle       lipgloss.Style
	ChipStyle        lipgloss.Style
	ModalStyle       lipgloss.Style
	DangerStyle      lipgloss.Style
}

// palette 主题基础色 / base colors a theme is derived from
type palette struct {
	accent, chip, warn, danger, ok lipgloss.Color
	text, dim, muted, border, bar  lipgloss.Color
	onDanger                       lipgloss.Color
}

var (
	darkPalette = palette{
		accent: "#E0A458", chip: "#5FB3B3", warn: "#F2C14E", danger: "#E5484D", ok: "#7BC47F",
		text: "#ECE7E1", dim: "#A8A29E", muted: "#78716C", border: "#44403C", bar: "#1C1917",
		onDanger: "#FFFFFF",
	}
	lightPalette = palette{
		accent: "#B45309", chip: "#0F766E", warn: "#A16207", danger: "#B91C1C", ok: "#15803D",
		text: "#1C1917", dim: "#57534E", muted: "#78716C", border: "#D6D3D1", bar: "#F5F5F4",
		onDanger: "#FFFFFF",
	}
)

// DarkTheme is the default.
func DarkTheme() Theme { return newTheme(darkPalette) }

func LightTheme() Theme { return newTheme(lightPalette) }

// AutoTheme 根据终端背景选择主题 / picks by terminal background
func AutoTheme() Theme {
	if lipgloss.HasDarkBackground() {
		return DarkTheme()
	}
	return LightTheme()
}

func newTheme(p palette) Theme {
	base := lipgloss.NewStyle().Foreground(p.text)
	return Theme{
		TitleStyle:       lipgloss.NewStyle().Foreground(p.accent).Bold(true),
		ActiveTabStyle:   base.Background(p.accent).Foreground(p.bar).Padding(0, 2).Bold(true),
		InactiveTabStyle: lipgloss.NewStyle().Foreground(p.dim).Padding(0, 2),
		StatusBarStyle:   lipgloss.NewStyle().Foreground(p.dim).Background(p.bar),
		SidebarStyle:     base.BorderLeft(true).BorderStyle(lipgloss.NormalBorder()).BorderForeground(p.border),
		InputStyle:       base.BorderTop(true).BorderStyle(lipgloss.NormalBorder()).BorderForeground(p.border),
		UserStyle:        lipgloss.NewStyle().Foreground(p.ok).Bold(true),
		ErrorStyle:       lipgloss.NewStyle().Foreground(p.danger).Bold(true),
		MutedStyle:       lipgloss.NewStyle().Foreground(p.muted),
		ChipStyle:        lipgloss.NewStyle().Foreground(p.chip).BorderStyle(lipgloss.RoundedBorder()).BorderForeground(p.chip).Padding(0, 1),
		// 授权弹窗用警示色边框 / consent dialog gets the warning border
		ModalStyle:  base.BorderStyle(lipgloss.DoubleBorder()).BorderForeground(p.warn).Padding(1, 2),
		DangerStyle: lipgloss.NewStyle().Foreground(p.onDanger).Background(p.danger).Bold(true).Padding(0, 1),
	}
}
