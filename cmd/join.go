package cmd

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/dkeye/Consult/internal/adapters/devices"
	"github.com/dkeye/Consult/internal/adapters/reservation"
	"github.com/dkeye/Consult/internal/adapters/rtc"
	wsignal "github.com/dkeye/Consult/internal/adapters/signal"
	"github.com/dkeye/Consult/internal/app/phase"
	"github.com/dkeye/Consult/internal/app/session"
	"github.com/dkeye/Consult/internal/domain"
	"github.com/dkeye/Consult/internal/errs"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var joinFlags struct {
	session   string
	role      string
	user      string
	name      string
	autoJoin  bool
	skipProbe bool
}

var joinCmd = &cobra.Command{
	Use:   "join",
	Short: "Enter a consultation room from the terminal",
	Long: `Reads commands from stdin:
  join, leave, ready, unready, mic, cam, screen, start, end,
  auto on|off, chat <text>, state, quit`,
	RunE: runJoin,
}

func init() {
	f := joinCmd.Flags()
	f.StringVar(&joinFlags.session, "session", "", "session display id")
	f.StringVar(&joinFlags.role, "role", "client", "client or expert")
	f.StringVar(&joinFlags.user, "user", "", "acting user id")
	f.StringVar(&joinFlags.name, "name", "", "display name")
	f.BoolVar(&joinFlags.autoJoin, "auto-join", false, "join automatically once the room opens")
	f.BoolVar(&joinFlags.skipProbe, "skip-probe", false, "skip the device and network check")
	_ = joinCmd.MarkFlagRequired("session")
	_ = joinCmd.MarkFlagRequired("user")
}

func runJoin(cmd *cobra.Command, args []string) error {
	role := domain.Role(joinFlags.role)
	if !role.Valid() {
		return fmt.Errorf("--role must be client or expert, got %q", joinFlags.role)
	}
	name := joinFlags.name
	if name == "" {
		name = joinFlags.user
	}
	user, err := domain.NewUser(domain.UserID(joinFlags.user), name)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	sink, closeSink := buildSink(ctx)
	defer closeSink()

	deps := session.Deps{
		Tokens:       reservation.NewTokenClient(cfg.ServerURL),
		Media:        rtc.NewTransport(cfg.ServerURL, rtc.DefaultWebRTCConfig()),
		Signaling:    wsignal.NewClient(cfg.ServerURL, user.DisplayName),
		Reservations: reservation.NewClient(cfg.ReservationURL),
		Devices:      devices.New(devices.Config{}),
		Sink:         sink,
	}
	self := domain.Participant{UserID: user.ID, Role: role, DisplayName: user.DisplayName}
	o, err := session.Load(ctx, joinFlags.session, deps, session.Config{
		Self:          self,
		AutoJoin:      joinFlags.autoJoin || cfg.AutoJoin,
		JoinTimeout:   cfg.JoinTimeout,
		PublishOnJoin: true,
	})
	if err != nil {
		return err
	}

	if !joinFlags.skipProbe {
		report := runPreflight(ctx)
		if err := o.UpdateDeviceStatus(ctx, report.Devices.Status()); err != nil {
			log.Warn().Err(err).Str("module", "cmd").Msg("device status not applied")
		}
		if err := o.UpdateNetworkQuality(ctx, report.Network); err != nil {
			log.Warn().Err(err).Str("module", "cmd").Msg("network quality not applied")
		}
		printJSON(os.Stdout, report)
	}

	done := make(chan error, 1)
	go func() { done <- o.Run(ctx) }()
	go printFailures(ctx, o)
	go printBanner(ctx, o)

	lines := make(chan string)
	go readLines(os.Stdin, lines)

	for {
		select {
		case <-ctx.Done():
			return <-done
		case line, ok := <-lines:
			if !ok {
				cancel()
				return <-done
			}
			if quit := dispatchLine(ctx, o, line); quit {
				cancel()
				return <-done
			}
		}
	}
}

func readLines(r io.Reader, out chan<- string) {
	defer close(out)
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		out <- strings.TrimSpace(sc.Text())
	}
}

// dispatchLine runs one stdin command and reports whether to quit.
func dispatchLine(ctx context.Context, o *session.Orchestrator, line string) bool {
	verb, rest, _ := strings.Cut(line, " ")
	var err error
	switch verb {
	case "":
		return false
	case "join":
		err = o.JoinSession(ctx)
	case "leave":
		o.LeaveSession(ctx)
	case "ready":
		err = o.SetReady(ctx, true)
	case "unready":
		err = o.SetReady(ctx, false)
	case "mic":
		err = o.ToggleMicrophone(ctx)
	case "cam":
		err = o.ToggleCamera(ctx)
	case "screen":
		err = o.ToggleScreenShare(ctx)
	case "start":
		err = o.StartSession(ctx)
	case "end":
		err = o.EndSession(ctx)
	case "auto":
		switch strings.TrimSpace(rest) {
		case "on":
			o.SetAutoJoin(true)
		case "off":
			o.SetAutoJoin(false)
		default:
			fmt.Println("usage: auto on|off")
		}
	case "chat":
		err = o.SendChat(ctx, rest)
	case "state":
		printJSON(os.Stdout, struct {
			Session domain.Session     `json:"session"`
			Joined  bool               `json:"joined"`
			Media   session.LocalMedia `json:"local_media"`
		}{o.State(), o.Joined(), o.LocalMedia()})
	case "quit", "exit":
		return true
	default:
		fmt.Printf("unknown command %q\n", verb)
	}
	if err != nil {
		fmt.Printf("%s: %s\n", verb, describe(err))
	}
	return false
}

func describe(err error) string {
	var e *errs.Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}

func printFailures(ctx context.Context, o *session.Orchestrator) {
	for {
		select {
		case <-ctx.Done():
			return
		case f := <-o.Failures():
			fmt.Printf("! %s failed: %s\n", f.Op, f.Message)
		}
	}
}

// printBanner shows the phase line whenever it changes.
func printBanner(ctx context.Context, o *session.Orchestrator) {
	ticker := time.NewTicker(session.TickInterval)
	defer ticker.Stop()
	last := ""
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if b := banner(o.State(), o.Joined()); b != last {
				fmt.Println(b)
				last = b
			}
		}
	}
}

func banner(s domain.Session, joined bool) string {
	var head string
	switch s.Phase {
	case domain.PhaseWait:
		head = "Room opens in " + phase.Countdown(time.Duration(s.TimeRemainingSeconds)*time.Second)
	case domain.PhaseOpen:
		head = "Room is open"
	default:
		head = "Room is closed"
	}
	return fmt.Sprintf("[%s] %s | status=%s joined=%t can_start=%t", s.Phase, head, s.Status, joined, s.CanStart)
}

func printJSON(w io.Writer, v any) {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		log.Error().Err(err).Str("module", "cmd").Msg("encode")
	}
}
