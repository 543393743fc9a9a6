package enums

// Theme represents UI theme
type Theme struct {
	name  string
	index int
}

// themes
var (
	ThemeLight = Theme{name: "light", index: 0}
	ThemeDark  = Theme{name: "dark", index: 1}
)

// ThemeValues contains all themes
var ThemeValues = []Theme{ThemeLight, ThemeDark}

var themeNames = map[string]Theme{"light": ThemeLight, "dark": ThemeDark}

// ParseTheme converts a string to Theme
func ParseTheme(v string) (Theme, error) {
	return lookup("theme", v, themeNames)
}

// String returns theme name
func (e Theme) String() string { return e.name }

// MarshalText implements encoding.TextMarshaler
func (e Theme) MarshalText() ([]byte, error) {
	return []byte(e.name), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (e *Theme) UnmarshalText(text []byte) error {
	v, err := ParseTheme(string(text))
	if err != nil {
		return err
	}
	*e = v
	return nil
}
