package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/DoyleJ11/hexbuzz/internal/hexgrid"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const EnvPrefix = "HEXBUZZ"

type Config struct {
	Bind            string
	Port            int
	LogLevel        string
	LogFormat       string
	GridRows        int
	GridCols        int
	Alphabet        string
	CellSize        float64
	RoomIdleTimeout time.Duration
	RequestTimeout  time.Duration
	OutboxSize      int
	AllowedOrigins  []string
	NatsURL         string
	PublicURL       string
}

func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.Port)
	}
	if c.GridRows < 1 || c.GridCols < 1 {
		return fmt.Errorf("invalid grid %dx%d: rows and cols must be positive", c.GridRows, c.GridCols)
	}
	if _, err := hexgrid.LookupAlphabet(c.Alphabet); err != nil {
		return err
	}
	if c.CellSize <= 0 {
		return errors.New("--cell-size must be positive")
	}
	if c.RoomIdleTimeout < 0 {
		return errors.New("--room-idle-timeout must not be negative")
	}
	if c.RequestTimeout <= 0 {
		return errors.New("--request-timeout must be positive")
	}
	if c.OutboxSize < 1 {
		return errors.New("--outbox-size must be at least 1")
	}
	switch c.LogFormat {
	case "json", "console":
	default:
		return fmt.Errorf("invalid log format %q (json|console)", c.LogFormat)
	}
	return nil
}

func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Bind, c.Port)
}

// BindFlags registers every setting on cmd. Each flag can also be supplied
// through the environment as HEXBUZZ_<FLAG_NAME>.
func BindFlags(cmd *cobra.Command, cfg *Config) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	fs := cmd.Flags()

	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.StringVarP(&cfg.Bind, "bind", "b", "0.0.0.0", "address to bind to (env: HEXBUZZ_BIND)")
	fs.IntVarP(&cfg.Port, "port", "p", 8080, "port to listen on (env: HEXBUZZ_PORT)")
	fs.StringVar(&cfg.LogLevel, "log-level", "info", "debug, info, warn or error (env: HEXBUZZ_LOG_LEVEL)")
	fs.StringVar(&cfg.LogFormat, "log-format", "json", "json or console (env: HEXBUZZ_LOG_FORMAT)")
	fs.IntVar(&cfg.GridRows, "grid-rows", 5, "rows of the letter board (env: HEXBUZZ_GRID_ROWS)")
	fs.IntVar(&cfg.GridCols, "grid-cols", 5, "columns of the letter board (env: HEXBUZZ_GRID_COLS)")
	fs.StringVar(&cfg.Alphabet, "alphabet", hexgrid.DefaultAlphabet, "letters to deal onto the board (env: HEXBUZZ_ALPHABET)")
	fs.Float64Var(&cfg.CellSize, "cell-size", 40, "hex radius in pixels for /layout (env: HEXBUZZ_CELL_SIZE)")
	fs.DurationVar(&cfg.RoomIdleTimeout, "room-idle-timeout", 30*time.Minute, "time before an empty room is closed, 0 to disable (env: HEXBUZZ_ROOM_IDLE_TIMEOUT)")
	fs.DurationVar(&cfg.RequestTimeout, "request-timeout", 5*time.Second, "deadline for a single room request (env: HEXBUZZ_REQUEST_TIMEOUT)")
	fs.IntVar(&cfg.OutboxSize, "outbox-size", 16, "snapshots queued per connection before it is dropped (env: HEXBUZZ_OUTBOX_SIZE)")
	fs.StringSliceVar(&cfg.AllowedOrigins, "allowed-origins", []string{"*"}, "origins allowed for CORS and websockets (env: HEXBUZZ_ALLOWED_ORIGINS)")
	fs.StringVar(&cfg.NatsURL, "nats-url", "", "mirror snapshots to this NATS server (env: HEXBUZZ_NATS_URL)")
	fs.StringVar(&cfg.PublicURL, "public-url", "", "base URL encoded in join QR codes (env: HEXBUZZ_PUBLIC_URL)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})
}
