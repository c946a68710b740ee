package display

import (
	"fmt"
	"io"
	"os"
	"strings"
)

// DisplayConfig holds configuration for console output
type DisplayConfig struct {
	ColorEnabled bool   `mapstructure:"color_enabled" yaml:"color_enabled"`
	Theme        string `mapstructure:"theme" yaml:"theme"`
	QuietMode    bool   `mapstructure:"quiet" yaml:"quiet"`
	MaxWidth     int    `mapstructure:"max_width" yaml:"max_width"`

	Writer io.Writer `mapstructure:"-" yaml:"-"`
}

// ThemeName represents available color themes
type ThemeName string

const (
	ThemeDark  ThemeName = "dark"
	ThemeLight ThemeName = "light"
	ThemePlain ThemeName = "plain"
)

const (
	defaultMaxWidth = 120
	minWidth        = 40
)

// DefaultDisplayConfig returns a default display configuration
func DefaultDisplayConfig() *DisplayConfig {
	return &DisplayConfig{
		ColorEnabled: true,
		Theme:        string(ThemeDark),
		MaxWidth:     defaultMaxWidth,
		Writer:       os.Stdout,
	}
}

// Validate validates the display configuration
func (dc *DisplayConfig) Validate() error {
	validThemes := []string{string(ThemeDark), string(ThemeLight), string(ThemePlain)}
	if !contains(validThemes, dc.Theme) {
		return fmt.Errorf("invalid theme '%s', must be one of: %s", dc.Theme, strings.Join(validThemes, ", "))
	}
	if dc.MaxWidth < minWidth || dc.MaxWidth > 300 {
		return fmt.Errorf("max width must be between %d and 300, got %d", minWidth, dc.MaxWidth)
	}
	return nil
}

// SetDefaults sets default values for unspecified configuration options
func (dc *DisplayConfig) SetDefaults() {
	if dc.Theme == "" {
		dc.Theme = string(ThemeDark)
	}
	if dc.MaxWidth == 0 {
		dc.MaxWidth = defaultMaxWidth
	}
	if dc.Writer == nil {
		dc.Writer = os.Stdout
	}
}

// IsColorEnabled returns true if colors should be used
func (dc *DisplayConfig) IsColorEnabled() bool {
	return dc.ColorEnabled && dc.Theme != string(ThemePlain)
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
