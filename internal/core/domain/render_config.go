package domain

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

// RGB is an opaque 8-bit colour.
type RGB struct {
	R, G, B uint8
}

// Hex renders the colour as #rrggbb.
func (c RGB) Hex() string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

// MarshalText implements encoding.TextMarshaler.
func (c RGB) MarshalText() ([]byte, error) {
	return []byte(c.Hex()), nil
}

// UnmarshalText accepts #rrggbb or a Color name.
func (c *RGB) UnmarshalText(b []byte) error {
	s := strings.TrimSpace(string(b))
	if named, err := ParseColor(s); err == nil {
		*c = named.RGB()
		return nil
	}
	var r, g, bl uint8
	if len(s) != 7 || s[0] != '#' {
		return fmt.Errorf("invalid colour %q", s)
	}
	if _, err := fmt.Sscanf(s[1:], "%02x%02x%02x", &r, &g, &bl); err != nil {
		return fmt.Errorf("invalid colour %q: %w", s, err)
	}
	*c = RGB{R: r, G: g, B: bl}
	return nil
}

// Color is the closed set of named colours accepted in configs.
type Color int

const (
	ColorBlack Color = iota
	ColorWhite
	ColorRed
	ColorOrange
	ColorYellow
	ColorYellowGreen
	ColorGreen
	ColorBlueGreen
	ColorBlue
	ColorBlueViolet
	ColorViolet
	ColorRedViolet
	ColorRedOrange
	ColorYellowOrange
)

var colorNames = [...]string{
	"black", "white", "red", "orange", "yellow", "yellow_green", "green",
	"blue_green", "blue", "blue_violet", "violet", "red_violet", "red_orange",
	"yellow_orange",
}

var colorValues = [...]RGB{
	ColorBlack:        {0, 0, 0},
	ColorWhite:        {255, 255, 255},
	ColorRed:          {255, 0, 0},
	ColorOrange:       {255, 165, 0},
	ColorYellow:       {255, 255, 0},
	ColorYellowGreen:  {173, 255, 47},
	ColorGreen:        {0, 255, 0},
	ColorBlueGreen:    {0, 255, 128},
	ColorBlue:         {0, 0, 255},
	ColorBlueViolet:   {138, 43, 226},
	ColorViolet:       {148, 0, 211},
	ColorRedViolet:    {199, 0, 211},
	ColorRedOrange:    {255, 69, 0},
	ColorYellowOrange: {255, 204, 0},
}

// Colors lists every named colour in declaration order.
func Colors() []Color {
	out := make([]Color, len(colorNames))
	for i := range out {
		out[i] = Color(i)
	}
	return out
}

func (c Color) String() string {
	if c < 0 || int(c) >= len(colorNames) {
		return fmt.Sprintf("Color(%d)", int(c))
	}
	return colorNames[c]
}

// RGB returns the colour value; unknown colours map to white.
func (c Color) RGB() RGB {
	if c < 0 || int(c) >= len(colorValues) {
		return colorValues[ColorWhite]
	}
	return colorValues[c]
}

// ParseColor resolves a colour name, case-insensitively.
func ParseColor(s string) (Color, error) {
	name := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(s), "-", "_"))
	for i, n := range colorNames {
		if n == name || strings.ReplaceAll(n, "_", "") == name {
			return Color(i), nil
		}
	}
	return 0, fmt.Errorf("unknown colour %q", s)
}

// Font is the closed set of text styles. Each maps to a bundled face.
type Font int

const (
	FontSimplex Font = iota
	FontPlain
	FontDuplex
	FontComplex
	FontTriplex
	FontComplexSmall
	FontScriptSimplex
	FontScriptComplex
	FontItalic
)

var fontNames = [...]string{
	"simplex", "plain", "duplex", "complex", "triplex", "complex_small",
	"script_simplex", "script_complex", "italic",
}

// Fonts lists every font in declaration order.
func Fonts() []Font {
	out := make([]Font, len(fontNames))
	for i := range out {
		out[i] = Font(i)
	}
	return out
}

func (f Font) String() string {
	if f < 0 || int(f) >= len(fontNames) {
		return fmt.Sprintf("Font(%d)", int(f))
	}
	return fontNames[f]
}

// ParseFont resolves a font name.
func ParseFont(s string) (Font, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for i, n := range fontNames {
		if n == name {
			return Font(i), nil
		}
	}
	return 0, fmt.Errorf("unknown font %q", s)
}

func (f Font) MarshalText() ([]byte, error) { return []byte(f.String()), nil }

func (f *Font) UnmarshalText(b []byte) error {
	v, err := ParseFont(string(b))
	if err != nil {
		return err
	}
	*f = v
	return nil
}

// RouteScale places the projected route inside the background.
type RouteScale struct {
	Scale          float64 `json:"scale"`
	OffsetXPercent float64 `json:"offset_x_percent"`
	OffsetYPercent float64 `json:"offset_y_percent"`
}

// DefaultRouteScale is a small route in the top-left corner.
func DefaultRouteScale() RouteScale { return RouteScale{Scale: 0.2, OffsetXPercent: 0.1, OffsetYPercent: 0.1} }

// CenteredRouteScale is a medium route around the centre.
func CenteredRouteScale() RouteScale { return RouteScale{Scale: 0.4, OffsetXPercent: 0.3, OffsetYPercent: 0.3} }

// LargeRouteScale fills most of the background.
func LargeRouteScale() RouteScale { return RouteScale{Scale: 0.7, OffsetXPercent: 0.15, OffsetYPercent: 0.15} }

// RouteColor holds the colours of every drawn element.
type RouteColor struct {
	RouteLine       RGB `json:"route_line"`
	CurrentPosition RGB `json:"current_position"`
	Text            RGB `json:"text"`
	LapBars         RGB `json:"lap_bars"`
}

// DefaultRouteColor is a red route with a green marker.
func DefaultRouteColor() RouteColor {
	return RouteColor{
		RouteLine:       ColorRed.RGB(),
		CurrentPosition: ColorGreen.RGB(),
		Text:            ColorWhite.RGB(),
		LapBars:         ColorGreen.RGB(),
	}
}

// BlueRouteColor is the blue scheme.
func BlueRouteColor() RouteColor {
	return RouteColor{
		RouteLine:       ColorBlue.RGB(),
		CurrentPosition: RGB{0, 255, 255},
		Text:            ColorWhite.RGB(),
		LapBars:         RGB{0, 128, 255},
	}
}

// NeonRouteColor is the magenta and yellow scheme.
func NeonRouteColor() RouteColor {
	return RouteColor{
		RouteLine:       RGB{255, 0, 255},
		CurrentPosition: ColorYellow.RGB(),
		Text:            ColorWhite.RGB(),
		LapBars:         RGB{255, 0, 255},
	}
}

// PaceDistConfig styles the bottom pace/distance bar.
type PaceDistConfig struct {
	FontScale       float64 `json:"font_scale"`
	Thickness       int     `json:"thickness"`
	Font            Font    `json:"font"`
	ShowPace        bool    `json:"show_pace"`
	ShowDistance    bool    `json:"show_distance"`
	SmoothingWindow int     `json:"smoothing_window"` // samples in the trailing pace window
}

// DefaultPaceDist shows pace and distance.
func DefaultPaceDist() PaceDistConfig {
	return PaceDistConfig{FontScale: 0.5, Thickness: 1, Font: FontSimplex, ShowPace: true, ShowDistance: true, SmoothingWindow: DefaultSmoothingWindow}
}

// LargeTextPaceDist uses a larger, heavier face.
func LargeTextPaceDist() PaceDistConfig {
	return PaceDistConfig{FontScale: 0.8, Thickness: 2, Font: FontDuplex, ShowPace: true, ShowDistance: true, SmoothingWindow: DefaultSmoothingWindow}
}

// PaceOnlyPaceDist hides the distance.
func PaceOnlyPaceDist() PaceDistConfig {
	c := DefaultPaceDist()
	c.ShowDistance = false
	return c
}

// LapDataConfig styles the lap panel.
type LapDataConfig struct {
	PositionXPercent float64 `json:"position_x_percent"`
	PositionYPercent float64 `json:"position_y_percent"`
	FontScale        float64 `json:"font_scale"`
	Thickness        int     `json:"thickness"`
	Font             Font    `json:"font"`
	TextColor        RGB     `json:"text_color"`
	HeaderColor      RGB     `json:"header_color"`
	BarMaxWidth      float64 `json:"bar_max_width"`
	ShowHeartRate    bool    `json:"show_heart_rate"`
	ShowStrideLength bool    `json:"show_stride_length"`
	ShowPaceBars     bool    `json:"show_pace_bars"`
}

// DefaultLapData shows every lap field.
func DefaultLapData() LapDataConfig {
	return LapDataConfig{
		PositionXPercent: 0.5,
		PositionYPercent: 0.09,
		FontScale:        0.5,
		Thickness:        1,
		Font:             FontSimplex,
		TextColor:        ColorWhite.RGB(),
		HeaderColor:      RGB{0, 255, 255},
		BarMaxWidth:      DefaultBarMaxWidth,
		ShowHeartRate:    true,
		ShowStrideLength: true,
		ShowPaceBars:     true,
	}
}

// MinimalLapData shows pace and bars only.
func MinimalLapData() LapDataConfig {
	c := DefaultLapData()
	c.ShowHeartRate = false
	c.ShowStrideLength = false
	return c
}

// DetailedLapData sits slightly higher.
func DetailedLapData() LapDataConfig {
	c := DefaultLapData()
	c.PositionYPercent = 0.07
	return c
}

// FileConfig names the CLI input and output paths.
type FileConfig struct {
	FitFile         string `json:"fit_file"`
	BackgroundImage string `json:"background_image"`
	OutputFile      string `json:"output_file"`
}

// DefaultFileConfig matches the CLI defaults.
func DefaultFileConfig() FileConfig {
	return FileConfig{
		FitFile:         "source/activity.fit",
		BackgroundImage: "source/background.jpg",
		OutputFile:      "outputs/route.gif",
	}
}

const (
	DefaultSmoothingWindow = 5
	DefaultBarMaxWidth     = 200.0
	DefaultLineThickness   = 4.0
	DefaultMarkerRadius    = 8.0
	DefaultMaxSide         = 1080
	DefaultFPSDivisor      = 15
)

// RenderConfig is the immutable description of one render.
type RenderConfig struct {
	RouteScale    RouteScale     `json:"route_scale"`
	Colors        RouteColor     `json:"colors"`
	PaceDist      PaceDistConfig `json:"pace_dist"`
	LapData       LapDataConfig  `json:"lap_data"`
	Files         FileConfig     `json:"files"`
	LineThickness float64        `json:"line_thickness"`
	MarkerRadius  float64        `json:"marker_radius"`
	ShowBottomBar bool           `json:"show_bottom_bar"`
	ShowRoute     bool           `json:"show_route"`
	ShowLapData   bool           `json:"show_lap_data"`
}

// DefaultVideoConfig is the default video preset.
func DefaultVideoConfig() RenderConfig {
	return RenderConfig{
		RouteScale:    DefaultRouteScale(),
		Colors:        DefaultRouteColor(),
		PaceDist:      DefaultPaceDist(),
		LapData:       DefaultLapData(),
		Files:         DefaultFileConfig(),
		LineThickness: DefaultLineThickness,
		MarkerRadius:  DefaultMarkerRadius,
		ShowBottomBar: true,
		ShowRoute:     true,
		ShowLapData:   true,
	}
}

// DefaultImageConfig draws only the route.
func DefaultImageConfig() RenderConfig {
	c := DefaultVideoConfig()
	c.LineThickness = 2
	c.ShowBottomBar = false
	c.ShowLapData = false
	c.Files.OutputFile = "outputs/route.png"
	return c
}

// Preset names a bundled RenderConfig.
type Preset string

const (
	PresetDefault    Preset = "default"
	PresetMinimalist Preset = "minimalist"
	PresetDetailed   Preset = "detailed"
	PresetNeon       Preset = "neon"
)

// Presets lists the bundled presets.
func Presets() []Preset {
	return []Preset{PresetDefault, PresetMinimalist, PresetDetailed, PresetNeon}
}

// PresetConfig returns the named video preset.
func PresetConfig(p Preset) (RenderConfig, error) {
	c := DefaultVideoConfig()
	switch p {
	case PresetDefault, "":
	case PresetMinimalist:
		c.PaceDist = PaceOnlyPaceDist()
		c.LapData = MinimalLapData()
	case PresetDetailed:
		c.RouteScale = LargeRouteScale()
		c.PaceDist = LargeTextPaceDist()
		c.LapData = DetailedLapData()
	case PresetNeon:
		c.RouteScale = CenteredRouteScale()
		c.Colors = NeonRouteColor()
	default:
		return RenderConfig{}, &ConfigError{Field: "preset", Reason: fmt.Sprintf("unknown preset %q", p)}
	}
	return c, nil
}

// DecodeRenderConfig overlays JSON onto base. Missing fields keep base values.
func DecodeRenderConfig(base RenderConfig, data []byte) (RenderConfig, error) {
	cfg := base
	if len(strings.TrimSpace(string(data))) == 0 {
		return cfg, nil
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return RenderConfig{}, &ConfigError{Field: "config", Reason: err.Error()}
	}
	return cfg, nil
}

// Validate checks every numeric field before any drawing begins.
func (c RenderConfig) Validate() error {
	checks := []struct {
		field string
		ok    bool
		why   string
	}{
		{"route_scale.scale", positive(c.RouteScale.Scale), "must be > 0"},
		{"route_scale.offset_x_percent", unit(c.RouteScale.OffsetXPercent), "must be within [0,1]"},
		{"route_scale.offset_y_percent", unit(c.RouteScale.OffsetYPercent), "must be within [0,1]"},
		{"pace_dist.font_scale", positive(c.PaceDist.FontScale), "must be > 0"},
		{"pace_dist.thickness", c.PaceDist.Thickness > 0, "must be > 0"},
		{"pace_dist.smoothing_window", c.PaceDist.SmoothingWindow >= 1, "must be >= 1"},
		{"lap_data.font_scale", positive(c.LapData.FontScale), "must be > 0"},
		{"lap_data.thickness", c.LapData.Thickness > 0, "must be > 0"},
		{"lap_data.bar_max_width", positive(c.LapData.BarMaxWidth), "must be > 0"},
		{"lap_data.position_x_percent", unit(c.LapData.PositionXPercent), "must be within [0,1]"},
		{"lap_data.position_y_percent", unit(c.LapData.PositionYPercent), "must be within [0,1]"},
		{"line_thickness", positive(c.LineThickness), "must be > 0"},
		{"marker_radius", positive(c.MarkerRadius), "must be > 0"},
	}
	for _, chk := range checks {
		if !chk.ok {
			return &ConfigError{Field: chk.field, Reason: chk.why}
		}
	}
	return nil
}

func positive(v float64) bool { return v > 0 && !math.IsInf(v, 0) }

func unit(v float64) bool { return v >= 0 && v <= 1 }
