package display

import (
	"fmt"

	"github.com/fatih/color"
)

// Box drawing characters
const (
	BoxTopLeft     = "┌"
	BoxTopRight    = "┐"
	BoxBottomLeft  = "└"
	BoxBottomRight = "┘"
	BoxHorizontal  = "─"
	BoxVertical    = "│"
	SectionBreak   = "━"
)

// Status symbols
const (
	SymbolSuccess = "✓"
	SymbolError   = "✗"
	SymbolWarning = "⚠"
	SymbolResume  = "↻"
	SymbolPending = "○"
	SymbolPartial = "◐"
)

// Indent is the indentation for detail lines under a status line
const Indent = "  "

// Theme holds all color functions for consistent styling
type Theme struct {
	// Tool frame (banners, phase headers)
	FrameBorder func(a ...interface{}) string
	FrameLabel  func(a ...interface{}) string
	FrameText   func(a ...interface{}) string

	// Detail lines (findings, step messages, command output)
	DetailText func(a ...interface{}) string
	DetailKey  func(a ...interface{}) string

	// Risk levels
	RiskHigh   func(a ...interface{}) string
	RiskMedium func(a ...interface{}) string
	RiskLow    func(a ...interface{}) string

	// Status indicators
	Success func(a ...interface{}) string
	Error   func(a ...interface{}) string
	Warning func(a ...interface{}) string
	Info    func(a ...interface{}) string

	// Structural elements
	Bold      func(a ...interface{}) string
	Dim       func(a ...interface{}) string
	Separator func(a ...interface{}) string
}

// DefaultTheme creates the default color theme
func DefaultTheme() *Theme {
	return &Theme{
		// Frame - bright cyan for visibility
		FrameBorder: color.New(color.FgCyan).SprintFunc(),
		FrameLabel:  color.New(color.FgCyan, color.Bold).SprintFunc(),
		FrameText:   color.New(color.FgWhite).SprintFunc(),

		// Details - subdued
		DetailText: color.New(color.FgWhite).SprintFunc(),
		DetailKey:  color.New(color.FgHiBlack).SprintFunc(),

		RiskHigh:   color.New(color.FgRed, color.Bold).SprintFunc(),
		RiskMedium: color.New(color.FgYellow).SprintFunc(),
		RiskLow:    color.New(color.FgBlue).SprintFunc(),

		// Status indicators
		Success: color.New(color.FgGreen).SprintFunc(),
		Error:   color.New(color.FgRed).SprintFunc(),
		Warning: color.New(color.FgYellow).SprintFunc(),
		Info:    color.New(color.FgCyan).SprintFunc(),

		// Structural
		Bold:      color.New(color.Bold).SprintFunc(),
		Dim:       color.New(color.FgHiBlack).SprintFunc(),
		Separator: color.New(color.FgCyan).SprintFunc(),
	}
}

// NoColorTheme creates a theme without colors (for --no-color flag or non-TTY)
func NoColorTheme() *Theme {
	identity := func(a ...interface{}) string {
		if len(a) == 0 {
			return ""
		}
		if s, ok := a[0].(string); ok && len(a) == 1 {
			return s
		}
		return fmt.Sprint(a...)
	}
	return &Theme{
		FrameBorder: identity,
		FrameLabel:  identity,
		FrameText:   identity,
		DetailText:  identity,
		DetailKey:   identity,
		RiskHigh:    identity,
		RiskMedium:  identity,
		RiskLow:     identity,
		Success:     identity,
		Error:       identity,
		Warning:     identity,
		Info:        identity,
		Bold:        identity,
		Dim:         identity,
		Separator:   identity,
	}
}
