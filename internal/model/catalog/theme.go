package catalog

// Theme describes how the chat page is painted.
type Theme struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Background string `json:"background"`
	Foreground string `json:"foreground"`
}

// SeedThemes provides the light and dark themes offered in the settings panel.
func SeedThemes() []Theme {
	return []Theme{
		{
			ID:         "light",
			Name:       "Light",
			Background: "linear-gradient(135deg, #667eea 0%, #764ba2 100%)",
			Foreground: "#1f2330",
		},
		{
			ID:         "dark",
			Name:       "Dark",
			Background: "#0e1117",
			Foreground: "white",
		},
	}
}
