package domain

import (
	"strings"
	"time"

	"reelgate/pkg/validation"
)

type ThemeColors struct {
	Primary    string `json:"primary"`
	Secondary  string `json:"secondary"`
	Accent     string `json:"accent"`
	Background string `json:"background"`
	Surface    string `json:"surface"`
	Text       string `json:"text"`
}

type Theme struct {
	SiteName   string      `json:"site_name"`
	LogoURL    string      `json:"logo_url"`
	FontFamily string      `json:"font_family"`
	Colors     ThemeColors `json:"colors"`
	UpdatedAt  time.Time   `json:"updated_at"`
	UpdatedBy  UserID      `json:"updated_by,omitempty"`
}

func DefaultTheme() Theme {
	return Theme{
		SiteName:   "reelgate",
		FontFamily: "system-ui, sans-serif",
		Colors: ThemeColors{
			Primary:    "#e11d48",
			Secondary:  "#1e293b",
			Accent:     "#f59e0b",
			Background: "#0f172a",
			Surface:    "#1e293b",
			Text:       "#f8fafc",
		},
	}
}

func (t *Theme) Validate() error {
	t.SiteName = strings.TrimSpace(t.SiteName)
	if err := validation.ValidateStringLength(t.SiteName, 1, 80, "site name"); err != nil {
		return NewValidationError("site_name", err)
	}
	if err := validation.ValidateOptionalURL(t.LogoURL); err != nil {
		return NewValidationError("logo_url", err)
	}
	if err := validation.ValidateStringLength(t.FontFamily, 0, 200, "font family"); err != nil {
		return NewValidationError("font_family", err)
	}
	colors := []struct{ name, value string }{
		{"primary", t.Colors.Primary},
		{"secondary", t.Colors.Secondary},
		{"accent", t.Colors.Accent},
		{"background", t.Colors.Background},
		{"surface", t.Colors.Surface},
		{"text", t.Colors.Text},
	}
	for _, c := range colors {
		if err := validation.ValidateHexColor(c.value, c.name); err != nil {
			return NewValidationError("colors."+c.name, err)
		}
	}
	return nil
}
