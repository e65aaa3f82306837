package ui

import "testing"

func TestThemeForVariant(t *testing.T) {
	arcade := ThemeForVariant("modern_arcade").Accent.GetForeground()
	retro := ThemeForVariant("retro_terminal").Accent.GetForeground()
	cozy := ThemeForVariant("cozy_clean").Accent.GetForeground()
	if arcade == retro || arcade == cozy || retro == cozy {
		t.Fatalf("variant accents not distinct: %v %v %v", arcade, retro, cozy)
	}

	// Unknown variants fall back to the default palette.
	if got := ThemeForVariant("no_such_theme").Accent.GetForeground(); got != arcade {
		t.Fatalf("unknown variant accent = %v, want default %v", got, arcade)
	}
	if got := DefaultTheme().Accent.GetForeground(); got != arcade {
		t.Fatalf("DefaultTheme accent = %v, want modern_arcade %v", got, arcade)
	}
}
