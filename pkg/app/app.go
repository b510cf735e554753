package app

import (
	"net/url"
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/womat/debug"

	"github.com/wavicles/pslab-fossasia/pkg/app/config"
	"github.com/wavicles/pslab-fossasia/pkg/logicanalyzer"
	"github.com/wavicles/pslab-fossasia/pkg/mqtt"
	"github.com/wavicles/pslab-fossasia/pkg/packet"
)

// App is the main application struct.
// App is where the application is wired up.
type App struct {
	// web is the fiber web framework instance
	web *fiber.App

	// config is the application configuration
	config *config.Config

	// urlParsed contains the parsed Config.Webserver.URL parameter
	urlParsed *url.URL

	// mqtt is the handler to the mqtt broker
	mqtt *mqtt.Handler

	// channel is the serial command channel to the instrument
	channel *packet.Handler

	// la drives the instrument's logic-analyzer peripheral
	la *logicanalyzer.LogicAnalyzer

	// instrument serializes access to the capture resource between the
	// web handlers and the measurement service; the logic analyzer
	// itself is not safe for concurrent use
	instrument sync.Mutex

	// measurement is the last frame read by the measurement service
	measurement struct {
		sync.RWMutex
		data Measurement
	}

	// restart signals application restart
	restart chan struct{}
	// shutdown signals application shutdown
	shutdown chan struct{}
}

// New checks the Web server URL and initialize the main app structure
func New(cfg *config.Config) (*App, error) {
	u, err := url.Parse(cfg.Webserver.URL)
	if err != nil {
		debug.ErrorLog.Printf("Error parsing url %q: %s", cfg.Webserver.URL, err.Error())
		return &App{}, err
	}

	return &App{
		config:    cfg,
		urlParsed: u,

		web:  fiber.New(),
		mqtt: mqtt.New(),

		restart:  make(chan struct{}),
		shutdown: make(chan struct{}),
	}, err
}

// Run starts the application.
func (app *App) Run() error {
	if err := app.init(); err != nil {
		return err
	}

	go app.runWebServer()
	go app.runMeasurementService()

	return nil
}

// init initializes the application.
func (app *App) init() (err error) {
	if app.channel, err = packet.Open(app.config.Device, app.config.Baud); err != nil {
		debug.ErrorLog.Printf("can't open instrument: %v", err)
		return err
	}

	app.la = logicanalyzer.New(app.channel)

	if err = app.mqtt.Connect(app.config.MQTT.Connection); err != nil {
		debug.ErrorLog.Printf("can't open mqtt broker %v", err)
		return err
	}

	// initDefaultRoutes should always be called last because it may
	// access things which must be initialized before
	app.initDefaultRoutes()

	return nil
}

// Restart returns the read only restart channel.
// Restart is used to be able to react on application restart. (see cmd/main.go)
func (app *App) Restart() <-chan struct{} {
	return app.restart
}

// Shutdown returns the read only shutdown channel.
// Shutdown is used to be able to react on application shutdown. (see cmd/main.go)
func (app *App) Shutdown() <-chan struct{} {
	return app.shutdown
}

func (app *App) Close() error {
	if app.mqtt != nil {
		_ = app.mqtt.Disconnect()
	}

	if app.channel != nil {
		_ = app.channel.Close()
	}
	return nil
}
