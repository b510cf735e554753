package app

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/womat/debug"

	"github.com/wavicles/pslab-fossasia/pkg/logicanalyzer"
	"github.com/wavicles/pslab-fossasia/pkg/port"
)

// runWebServer starts the applications web server and listens for web requests.
//  It's designed to run in a separate go function to not block the main go function.
//  e.g.: go runWebServer()
//  See app.Run()
func (app *App) runWebServer() {
	err := app.web.Listen(app.urlParsed.Host)
	debug.ErrorLog.Print(err)
}

// HandleData is the web handler for the last measurement frame.
func (app *App) HandleData() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		debug.InfoLog.Print("web request data")

		return ctx.JSON(app.GetMeasurement())
	}
}

// HandleStates is the web handler for an immediate level read of all
// digital inputs.
func (app *App) HandleStates() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		debug.InfoLog.Print("web request states")

		app.instrument.Lock()
		states, err := app.la.GetStates()
		app.instrument.Unlock()

		if err != nil {
			return sendError(ctx, err)
		}
		return ctx.JSON(states)
	}
}

// HandleFrequency is the web handler for a frequency measurement:
// GET /frequency?channel=ID1&timeout=0.1
func (app *App) HandleFrequency() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		debug.InfoLog.Print("web request frequency")

		channel := ctx.Query("channel", app.config.Channel)
		timeout := time.Duration(float64(time.Second) * ctx.QueryFloat("timeout", 1))

		app.instrument.Lock()
		f, err := app.la.MeasureFrequency(channel, timeout)
		app.instrument.Unlock()

		if err != nil {
			return sendError(ctx, err)
		}
		return ctx.JSON(fiber.Map{"channel": channel, "frequency": f})
	}
}

// HandleCapture is the web handler for a blocking capture:
// GET /capture?channels=2&events=100&mode=rising&e2e=0.001&timeout=1
func (app *App) HandleCapture() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		debug.InfoLog.Print("web request capture")

		count := ctx.QueryInt("channels", 1)
		events := ctx.QueryInt("events", 0)

		mode, err := logicanalyzer.ParseEdgeMode(ctx.Query("mode", "any"))
		if err != nil {
			return sendError(ctx, err)
		}

		if count < 1 || count > port.NumInputs {
			return sendError(ctx, fmt.Errorf("%w: channel count must be 1-%d, got %d",
				logicanalyzer.ErrInvalidArgument, port.NumInputs, count))
		}

		channels := port.FirstInputs(count)
		modes := make([]logicanalyzer.EdgeMode, len(channels))
		for i := range modes {
			modes[i] = mode
		}

		cfg := logicanalyzer.CaptureConfig{
			Channels: channels,
			Events:   events,
			Modes:    modes,
			E2ETime:  ctx.QueryFloat("e2e", 0),
			Timeout:  time.Duration(float64(time.Second) * ctx.QueryFloat("timeout", 1)),
		}

		app.instrument.Lock()
		data, err := app.la.Capture(cfg)
		app.instrument.Unlock()

		if err != nil {
			return sendError(ctx, err)
		}
		return ctx.JSON(fiber.Map{"channels": channels, "timestamps": data})
	}
}

// sendError maps driver errors to web responses.
func sendError(ctx *fiber.Ctx, err error) error {
	status := http.StatusInternalServerError

	switch {
	case errors.Is(err, logicanalyzer.ErrInvalidArgument),
		errors.Is(err, logicanalyzer.ErrTimingUnattainable):
		status = http.StatusBadRequest
	case errors.Is(err, logicanalyzer.ErrHardwareBusy):
		status = http.StatusConflict
	case errors.Is(err, logicanalyzer.ErrTimeout):
		status = http.StatusGatewayTimeout
	}

	ctx.Status(status)
	return ctx.JSON(fiber.Map{"error": err.Error()})
}
