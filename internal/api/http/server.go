package http

import (
	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
)

// NewApp returns a fiber app using the go-json codec. Errors are rendered by
// the error middleware registered in RegisterMiddlewares.
func NewApp(appName string) *fiber.App {
	return fiber.New(fiber.Config{
		AppName:               appName,
		JSONEncoder:           json.Marshal,
		JSONDecoder:           json.Unmarshal,
		DisableStartupMessage: true,
	})
}
