package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"seatgrab/internal/acquire"
	"seatgrab/internal/components/chrono"
	"seatgrab/internal/components/serviceutil"
	"seatgrab/internal/components/telemetry"
	"seatgrab/internal/credential"
	"seatgrab/internal/deadline"
	"seatgrab/internal/directory"
	"seatgrab/internal/gate"
	"seatgrab/internal/platforms/seatlib"
	"seatgrab/internal/progress"

	"github.com/spf13/cobra"
)

var grabFlags struct {
	mode       int
	room       string
	seat       string
	seatKey    string
	at         string
	cookie     string
	waitCookie bool
}

func init() {
	flags := grabCmd.Flags()
	flags.IntVarP(&grabFlags.mode, "mode", "m", int(seatlib.ModeGrab), "1 reserves a seat for tomorrow, 2 grabs a seat right now.")
	flags.StringVarP(&grabFlags.room, "room", "r", "", "The room, either its name or its id.")
	flags.StringVarP(&grabFlags.seat, "seat", "s", "", "The seat number as printed on the seat.")
	flags.StringVar(&grabFlags.seatKey, "seat-key", "", "The raw seat key, used instead of --seat.")
	flags.StringVar(&grabFlags.at, "at", "", "Start at this time of today (HH:MM:SS), right away when empty.")
	flags.StringVar(&grabFlags.cookie, "cookie", "", "The session cookie, read from the configured cookie file when empty.")
	flags.BoolVar(&grabFlags.waitCookie, "wait-cookie", false, "Wait for the capture helper to write a fresh cookie file before starting.")
	rootCmd.AddCommand(grabCmd)
}

func resolveRoom(dir directory.Directory, room string) (string, error) {
	if id, err := dir.RoomID(room); err == nil {
		return id, nil
	}
	if _, ok := dir.RoomName(room); ok {
		return room, nil
	}
	if len(dir.Rooms()) == 0 {
		// no room table, trust the caller
		return room, nil
	}
	suggestions := dir.Suggest(room, 3)
	if len(suggestions) > 0 {
		return "", fmt.Errorf("unknown room '%s', did you mean: %s", room, strings.Join(suggestions, ", "))
	}
	return "", fmt.Errorf("unknown room '%s'", room)
}

func resolveSeat(dir directory.Directory, roomID, seat, seatKey string) (string, error) {
	if seatKey != "" {
		return seatKey, nil
	}
	if seat == "" {
		return "", errors.New("either --seat or --seat-key is required")
	}
	return dir.SeatKey(roomID, seat)
}

func setupOtel(ctx context.Context) func() {
	otel, err := telemetry.SetupFromEnv(ctx, "seatgrab")
	if err != nil {
		slog.Warn("telemetry is not exported", "err", err.Error())
		return func() {}
	}
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err := otel.Shutdown(ctx)
		if err != nil {
			slog.Warn("failed to flush telemetry", "err", err.Error())
		}
	}
}

var grabCmd = &cobra.Command{
	Use:   "grab --room <room> --seat <number> [--mode 1|2] [--at HH:MM:SS]",
	Short: "Runs one timed acquisition of a seat.",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		config := mustConfig()
		tel := telemetry.NewSlogAPI(nil)
		clock := chrono.NewStandardTime()

		shutdown := setupOtel(ctx)
		defer shutdown()

		mode := seatlib.Mode(grabFlags.mode)
		if !mode.Valid() {
			serviceutil.Fatal("invalid --mode", fmt.Errorf("expected 1 or 2, got %d", grabFlags.mode))
		}
		if grabFlags.room == "" {
			serviceutil.Fatal("invalid flags", errors.New("--room is required"))
		}
		if config.Endpoint.GraphqlUrl == "" || config.Endpoint.WebsocketUrl == "" {
			serviceutil.Fatal("invalid config", errors.New("endpoint.graphql_url and endpoint.websocket_url are required"))
		}

		dir, err := config.loadDirectory(tel)
		if err != nil {
			serviceutil.Fatal("failed to load room tables", err)
		}
		roomID, err := resolveRoom(dir, grabFlags.room)
		if err != nil {
			serviceutil.Fatal("failed to resolve room", err)
		}
		seatKey, err := resolveSeat(dir, roomID, grabFlags.seat, grabFlags.seatKey)
		if err != nil {
			serviceutil.Fatal("failed to resolve seat", err)
		}

		var executeAt time.Time
		if grabFlags.at != "" {
			var window *deadline.Window
			if mode == seatlib.ModeReserve {
				w, err := config.window()
				if err != nil {
					serviceutil.Fatal("invalid reserve_window", err)
				}
				window = &w
			}
			executeAt, err = deadline.ParseClock(grabFlags.at, clock.Now(), window)
			if err != nil {
				serviceutil.Fatal("invalid --at", err)
			}
		}

		var source credential.Source = credential.File{Path: config.Credential.CookieFile}
		if grabFlags.waitCookie {
			fmt.Fprintf(os.Stdout, "waiting for a fresh cookie in %s...\n", config.Credential.CookieFile)
			source = credential.Waiting{Waiter: credential.Waiter{
				Path:     config.Credential.CookieFile,
				Timeout:  time.Duration(config.Credential.WaitTimeoutS) * time.Second,
				Interval: ms(config.Credential.PollIntervalMs),
				Clock:    clock,
				Tel:      tel,
			}}
		}

		sinks := []progress.Sink{progress.NewConsole(os.Stdout)}
		if verbose {
			sinks = append(sinks, progress.NewLogger(slog.Default().With("component", "acquire")))
		}
		if config.Notify.Email.Enabled() {
			sinks = append(sinks, progress.NewEmailNotifier(
				config.Notify.Email,
				progress.NewSmtpMailer(config.Notify.Email),
				tel,
			))
		}

		orchestrator := acquire.NewOrchestrator(config.orchestratorConfig(), acquire.Dependencies{
			Gate: gate.NewClient(gate.WebsocketDialer{}, config.gateOptions(), tel),
			API: seatlib.NewClient(
				seatlib.NewRestyTransport(config.transportOptions(dumpHttp), tel),
				config.Endpoint,
				tel,
			),
			Scheduler:   deadline.NewScheduler(clock),
			Clock:       clock,
			Sink:        progress.NewMulti(tel, sinks...),
			Tel:         tel,
			Directory:   dir,
			Credentials: source,
		})

		result := orchestrator.Run(ctx, acquire.Request{
			Mode:         mode,
			SessionToken: grabFlags.cookie,
			ResourceID:   roomID,
			SlotKey:      seatKey,
			ExecuteAt:    executeAt,
		})
		if !result.Ok() {
			shutdown()
			os.Exit(2)
		}
	},
}
