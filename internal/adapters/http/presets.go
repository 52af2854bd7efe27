package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/routecast/internal/core/domain"
)

// PresetView is one bundled render preset.
type PresetView struct {
	Name   domain.Preset       `json:"name"`
	Config domain.RenderConfig `json:"config"`
}

func presetViews() []PresetView {
	var out []PresetView
	for _, p := range domain.Presets() {
		cfg, err := domain.PresetConfig(p)
		if err != nil {
			continue
		}
		out = append(out, PresetView{Name: p, Config: cfg})
	}
	return out
}

func names[T interface{ String() string }](vs []T) []string {
	out := make([]string, len(vs))
	for i, v := range vs {
		out[i] = v.String()
	}
	return out
}

// ListPresetsHandler lists the bundled presets with the named colors and
// fonts a config may reference.
func ListPresetsHandler() fiber.Handler {
	body := fiber.Map{
		"presets": presetViews(),
		"image":   domain.DefaultImageConfig(),
		"colors":  names(domain.Colors()),
		"fonts":   names(domain.Fonts()),
	}
	return func(c *fiber.Ctx) error {
		return c.JSON(body)
	}
}

// GetPresetHandler returns one preset's full config.
func GetPresetHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		name := domain.Preset(c.Params("name"))
		cfg, err := domain.PresetConfig(name)
		if err != nil {
			return errNotFound(c, "unknown preset "+string(name))
		}
		return c.JSON(PresetView{Name: name, Config: cfg})
	}
}
