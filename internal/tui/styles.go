package tui

import (
	"github.com/charmbracelet/lipgloss"

	"wxadmin/internal/wechat"
)

// Adaptive colors that work on light and dark terminals.
var (
	colorGreen     = lipgloss.AdaptiveColor{Light: "#07A85A", Dark: "#07C160"}
	colorRed       = lipgloss.AdaptiveColor{Light: "#FF4672", Dark: "#FF4672"}
	colorAmber     = lipgloss.AdaptiveColor{Light: "#FF8C00", Dark: "#FFA500"}
	colorBlue      = lipgloss.AdaptiveColor{Light: "#1677FF", Dark: "#4096FF"}
	colorSubtle    = lipgloss.AdaptiveColor{Light: "#9B9B9B", Dark: "#5C5C5C"}
	colorHighlight = lipgloss.AdaptiveColor{Light: "#E6F4EA", Dark: "#12361F"}
	colorFg        = lipgloss.AdaptiveColor{Light: "#1A1A2E", Dark: "#FFFDF5"}
	colorDimFg     = lipgloss.AdaptiveColor{Light: "#A49FA5", Dark: "#777777"}
	colorBorder    = lipgloss.AdaptiveColor{Light: "#D9DCCF", Dark: "#383838"}
)

// Header styles.
var (
	logoStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorGreen).
			PaddingRight(2)

	activeTabStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorGreen).
			Underline(true).
			Padding(0, 2)

	inactiveTabStyle = lipgloss.NewStyle().
				Foreground(colorDimFg).
				Padding(0, 2)
)

// pillStyle is the header badge for a connection state.
func pillStyle(tone wechat.Tone) lipgloss.Style {
	return lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#FFFFFF")).
		Background(toneColor(tone)).
		Padding(0, 1)
}

func toneColor(tone wechat.Tone) lipgloss.AdaptiveColor {
	switch tone {
	case wechat.ToneSuccess:
		return colorGreen
	case wechat.ToneDanger:
		return colorRed
	case wechat.ToneWarning:
		return colorAmber
	default:
		return colorBlue
	}
}

// Footer / help bar styles.
var (
	helpBarStyle = lipgloss.NewStyle().
			Foreground(colorDimFg).
			Padding(0, 1)

	helpKeyStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorGreen)

	helpDescStyle = lipgloss.NewStyle().
			Foreground(colorDimFg)

	helpSepStyle = lipgloss.NewStyle().
			Foreground(colorSubtle)
)

// General content styles.
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorGreen).
			MarginBottom(1)

	dimStyle = lipgloss.NewStyle().
			Foreground(colorDimFg)

	selectedStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorGreen)

	cardStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorBorder).
			Padding(1, 2)

	cardTitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorGreen).
			MarginBottom(1)

	cardLabelStyle = lipgloss.NewStyle().
			Foreground(colorDimFg).
			Width(12)

	cardValueStyle = lipgloss.NewStyle().
			Foreground(colorFg)

	// Enabled / disabled reminder tags.
	tagOnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(colorGreen).
			Padding(0, 1)

	tagOffStyle = lipgloss.NewStyle().
			Foreground(colorFg).
			Background(colorBorder).
			Padding(0, 1)

	chipStyle = lipgloss.NewStyle().
			Foreground(colorFg).
			Background(colorHighlight).
			Padding(0, 1)

	buttonStyle = lipgloss.NewStyle().
			Foreground(colorFg).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorBorder).
			Padding(0, 1)

	activeButtonStyle = buttonStyle.
				BorderForeground(colorGreen).
				Foreground(colorGreen).
				Bold(true)

	dialogStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorAmber).
			Padding(1, 2)

	// The code is drawn dark-on-light whatever the terminal theme, so phone
	// cameras can read it.
	qrStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#000000")).
		Background(lipgloss.Color("#FFFFFF"))
)

// Form styles.
var (
	formLabelStyle = lipgloss.NewStyle().
			Foreground(colorFg).
			Width(12)

	formActiveLabelStyle = formLabelStyle.
				Bold(true).
				Foreground(colorGreen)
)

// Spinner style.
var spinnerStyle = lipgloss.NewStyle().Foreground(colorGreen)

// Notification styles.
var (
	notifSuccessStyle = lipgloss.NewStyle().
				Foreground(colorGreen).
				Bold(true).
				Padding(0, 1)

	notifErrorStyle = lipgloss.NewStyle().
			Foreground(colorRed).
			Bold(true).
			Padding(0, 1)
)
