package commands

import (
	"errors"
	"fmt"
	"os"
	"time"

	"seatgrab/internal/acquire"
	"seatgrab/internal/components/configutil"
	"seatgrab/internal/components/telemetry"
	"seatgrab/internal/deadline"
	"seatgrab/internal/directory"
	"seatgrab/internal/gate"
	"seatgrab/internal/platforms/seatlib"
	"seatgrab/internal/progress"
)

type AcquireConfig struct {
	MaxAttempts   int `json:"max_attempts"`
	RetryDelayMs  int `json:"retry_delay_ms"`
	SelectDelayMs int `json:"select_delay_ms"`
}

type GateConfig struct {
	ConnectTimeoutMs int    `json:"connect_timeout_ms"`
	ReceiveTimeoutMs int    `json:"receive_timeout_ms"`
	Namespace        string `json:"namespace"`
}

type HttpConfig struct {
	TimeoutMs          int  `json:"timeout_ms"`
	BrowserFingerprint bool `json:"browser_fingerprint"`
}

type DataConfig struct {
	RoomMappings string `json:"room_mappings"`
	SeatDir      string `json:"seat_dir"`
}

type CredentialConfig struct {
	CookieFile     string `json:"cookie_file"`
	WaitTimeoutS   int    `json:"wait_timeout_s"`
	PollIntervalMs int    `json:"poll_interval_ms"`
}

type WindowConfig struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

type NotifyConfig struct {
	Email progress.EmailConfig `json:"email"`
}

type Config struct {
	Endpoint      seatlib.Endpoint `json:"endpoint"`
	Acquire       AcquireConfig    `json:"acquire"`
	Gate          GateConfig       `json:"gate"`
	Http          HttpConfig       `json:"http"`
	Data          DataConfig       `json:"data"`
	Credential    CredentialConfig `json:"credential"`
	ReserveWindow WindowConfig     `json:"reserve_window"`
	Notify        NotifyConfig     `json:"notify"`
}

var defaultConfig = Config{
	Acquire: AcquireConfig{
		MaxAttempts:   acquire.DefaultMaxAttempts,
		RetryDelayMs:  int(acquire.DefaultRetryDelay / time.Millisecond),
		SelectDelayMs: int(acquire.DefaultSelectDelay / time.Millisecond),
	},
	Gate: GateConfig{
		ConnectTimeoutMs: int(gate.DefaultConnectTimeout / time.Millisecond),
		ReceiveTimeoutMs: int(gate.DefaultReceiveTimeout / time.Millisecond),
		Namespace:        gate.DefaultNamespace,
	},
	Http: HttpConfig{
		TimeoutMs: 15000,
	},
	Data: DataConfig{
		RoomMappings: "data/room_mappings.json",
		SeatDir:      "data/seats",
	},
	Credential: CredentialConfig{
		CookieFile:     "latest_cookie.txt",
		WaitTimeoutS:   120,
		PollIntervalMs: 2000,
	},
	ReserveWindow: WindowConfig{
		Start: "19:48:00",
		End:   "23:59:59",
	},
}

func ms(n int) time.Duration {
	return time.Duration(n) * time.Millisecond
}

func readConfig(path string) (Config, error) {
	config, err := configutil.ReadConfig[Config](path)
	if errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("no config at %s (or its .local variant)", path)
	}
	if err != nil {
		return Config{}, err
	}
	return configutil.WithDefaults(config, defaultConfig)
}

func (c Config) window() (deadline.Window, error) {
	return deadline.ParseWindow(c.ReserveWindow.Start, c.ReserveWindow.End)
}

// loadDirectory returns an empty directory when no room table is configured or present, raw ids
// then work as is.
func (c Config) loadDirectory(tel telemetry.API) (directory.Directory, error) {
	if c.Data.RoomMappings == "" {
		return directory.Directory{}, nil
	}
	if _, err := os.Stat(c.Data.RoomMappings); errors.Is(err, os.ErrNotExist) {
		tel.ReportWarning("config.load-directory", fmt.Errorf("no room table at %s", c.Data.RoomMappings))
		return directory.Directory{}, nil
	}
	return directory.Load(c.Data.RoomMappings, c.Data.SeatDir, tel)
}

func (c Config) orchestratorConfig() acquire.Config {
	return acquire.Config{
		MaxAttempts: c.Acquire.MaxAttempts,
		RetryDelay:  ms(c.Acquire.RetryDelayMs),
		SelectDelay: ms(c.Acquire.SelectDelayMs),
	}
}

func (c Config) gateOptions() gate.Options {
	return gate.Options{
		Url:            c.Endpoint.WebsocketUrl,
		Header:         c.Endpoint.QueueHeader(),
		Namespace:      c.Gate.Namespace,
		ConnectTimeout: ms(c.Gate.ConnectTimeoutMs),
		ReceiveTimeout: ms(c.Gate.ReceiveTimeoutMs),
	}
}

func (c Config) transportOptions(dump bool) seatlib.TransportOptions {
	return seatlib.TransportOptions{
		Timeout:            ms(c.Http.TimeoutMs),
		BrowserFingerprint: c.Http.BrowserFingerprint,
		Dump:               dump,
	}
}
