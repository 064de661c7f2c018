// Command dcservo-host connects to a dcservo board, configures its motors
// from a profile and offers a prompt for driving them. With -telemetry it
// also serves observer state over HTTP and websocket.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/caarlos0/env"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"dcservo/config"
	"dcservo/host/mcu"
	"dcservo/host/serial"
	"dcservo/host/telemetry"
)

// options come from the environment first, then flags.
type options struct {
	Device    string        `env:"DCSERVO_DEVICE" envDefault:"/dev/ttyACM0"`
	Baud      int           `env:"DCSERVO_BAUD" envDefault:"250000"`
	Telemetry string        `env:"DCSERVO_TELEMETRY_ADDR"`
	Profile   string        `env:"DCSERVO_PROFILE"`
	Poll      time.Duration `env:"DCSERVO_POLL" envDefault:"100ms"`
	Verbose   bool          `env:"DCSERVO_VERBOSE"`
	Run       bool
}

func loadOptions(args []string) (*options, error) {
	opts := &options{}
	if err := env.Parse(opts); err != nil {
		return nil, err
	}

	fs := flag.NewFlagSet("dcservo-host", flag.ContinueOnError)
	fs.StringVar(&opts.Device, "device", opts.Device, "serial device or tcp:host:port")
	fs.IntVar(&opts.Baud, "baud", opts.Baud, "baud rate (ignored for USB CDC)")
	fs.StringVar(&opts.Telemetry, "telemetry", opts.Telemetry, "address to serve telemetry on, e.g. :8080")
	fs.StringVar(&opts.Profile, "profile", opts.Profile, "motor profile (.json or .yaml)")
	fs.DurationVar(&opts.Poll, "poll", opts.Poll, "telemetry poll interval")
	fs.BoolVar(&opts.Verbose, "verbose", opts.Verbose, "log every response")
	fs.BoolVar(&opts.Run, "run", false, "run the profile sequence and exit")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if opts.Poll <= 0 {
		return nil, fmt.Errorf("poll interval must be positive")
	}
	return opts, nil
}

func main() {
	opts, err := loadOptions(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if opts.Verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	if err := run(opts, os.Stdin, os.Stdout); err != nil {
		log.Fatal().Err(err).Msg("dcservo-host")
	}
}

func run(opts *options, in io.Reader, out io.Writer) error {
	var profile *config.Profile
	if opts.Profile != "" {
		p, err := config.Load(opts.Profile)
		if err != nil {
			return err
		}
		profile = p
	}

	m := mcu.NewMCU()
	cfg := serial.DefaultConfig(opts.Device)
	cfg.Baud = opts.Baud
	if err := m.ConnectWithConfig(cfg); err != nil {
		return err
	}
	defer m.Close()

	if err := m.RetrieveDictionary(); err != nil {
		return err
	}

	s := &session{mcu: m, profile: profile, out: out}
	if profile != nil {
		if err := s.configure(); err != nil {
			return err
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if opts.Telemetry != "" {
		startTelemetry(ctx, s, opts)
	}

	if opts.Run {
		return s.runSequence()
	}
	return s.repl(in)
}

func startTelemetry(ctx context.Context, s *session, opts *options) {
	hub := telemetry.NewHub()
	s.mcu.Subscribe("dc_motor_stall", func(msg *mcu.Message) {
		hub.PublishStall(telemetry.StallEvent{
			OID:      uint8(msg.Int("oid")),
			Clock:    uint32(msg.Int("clock")),
			Duration: uint32(msg.Int("duration")),
		})
	})

	srv := &http.Server{Addr: opts.Telemetry, Handler: hub.Router(s.Motors)}
	go func() {
		log.Info().Str("addr", opts.Telemetry).Msg("telemetry listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("telemetry server")
		}
	}()
	go func() {
		<-ctx.Done()
		srv.Close()
	}()
	go hub.Poll(ctx, s, opts.Poll)
}

func (s *session) repl(in io.Reader) error {
	fmt.Fprintln(s.out, "dcservo host. Type 'help' for commands.")
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(s.out, "> ")
		if !scanner.Scan() {
			break
		}
		quit, err := s.exec(scanner.Text())
		if err != nil {
			fmt.Fprintf(s.out, "error: %v\n", err)
		}
		if quit {
			return nil
		}
	}
	return scanner.Err()
}
