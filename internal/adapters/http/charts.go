package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/routecast/internal/core/usecases"
)

// LapChartHandler draws the lap pace chart of an uploaded FIT file.
// ?format=png (default) or html; png accepts width and height.
func LapChartHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if deps.Charts == nil {
			return errUnavailable(c, "charts are not enabled")
		}
		fit, err := readFormFile(c, fieldFit)
		if err != nil {
			return errBadRequest(c, err.Error())
		}

		format := usecases.ChartFormat(c.Query("format", string(usecases.ChartPNG)))
		width := c.QueryInt("width", 0)
		height := c.QueryInt("height", 0)
		if width < 0 || width > 4096 || height < 0 || height > 4096 {
			return errBadRequest(c, "width and height must be between 1 and 4096")
		}

		data, err := deps.Charts.LapChart(c.UserContext(), fit, format, width, height)
		if err != nil {
			return errFrom(c, err)
		}

		if format == usecases.ChartHTML {
			c.Set(fiber.HeaderContentType, fiber.MIMETextHTMLCharsetUTF8)
		} else {
			c.Set(fiber.HeaderContentType, "image/png")
		}
		return c.Send(data)
	}
}
