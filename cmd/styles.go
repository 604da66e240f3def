package cmd

import "github.com/charmbracelet/lipgloss"

// LipGloss signature purple/pink palette
var (
	headerColor  = lipgloss.Color("#F780FF") // Bright pink/magenta
	keyColor     = lipgloss.Color("#BD93F9") // Purple
	valueColor   = lipgloss.Color("#E9E9F4") // Light purple/white
	mutedColor   = lipgloss.Color("#6272A4") // Muted purple
	warningColor = lipgloss.Color("#FFB86C") // Orange
	successColor = lipgloss.Color("#50FA7B") // Green

	headerStyle  = lipgloss.NewStyle().Foreground(headerColor).Bold(true)
	keyStyle     = lipgloss.NewStyle().Foreground(keyColor)
	valueStyle   = lipgloss.NewStyle().Foreground(valueColor)
	mutedStyle   = lipgloss.NewStyle().Foreground(mutedColor).Italic(true)
	warningStyle = lipgloss.NewStyle().Foreground(warningColor)
	successStyle = lipgloss.NewStyle().Foreground(successColor)
)
