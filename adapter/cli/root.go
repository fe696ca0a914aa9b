package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/Owl23007/synapse-android-sub000/pkg/observability"
)

var (
	cfgFile string
	verbose bool
	logger  *slog.Logger

	bootstrap    Bootstrap
	bootstrapErr error
	closeApp     func()
)

// Bootstrap builds the App once flags are parsed. The returned func
// releases its resources.
type Bootstrap func(ctx context.Context, configFile string, verbose bool) (*App, func(), error)

// ErrNotConfigured is returned by commands whose backing service is not
// configured.
var ErrNotConfigured = errors.New("not configured")

// AnnotationNoStore marks commands that run without opening the store.
const AnnotationNoStore = "synapse/no-store"

type commandContext struct {
	correlationID uuid.UUID
	startedAt     time.Time
}

type commandContextKey struct{}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "synapse",
	Short: "Synapse - schedules, subscriptions and reminders",
	Long: `Synapse manages a local calendar of schedules: iCalendar import and
export, subscribed feeds, reminders and a chat assistant that can
create schedules for you.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if logger == nil {
			logger = slog.Default()
		}
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		info := commandContext{
			correlationID: uuid.New(),
			startedAt:     time.Now(),
		}
		ctx = observability.WithCorrelationID(ctx, info.correlationID.String())
		cmd.SetContext(context.WithValue(ctx, commandContextKey{}, info))

		if app == nil && bootstrap != nil && cmd.Annotations[AnnotationNoStore] == "" {
			a, closeFn, err := bootstrap(cmd.Context(), cfgFile, verbose)
			if err != nil {
				bootstrapErr = err
			} else {
				app, closeApp = a, closeFn
			}
		}

		logger.Debug("command start",
			"command", cmd.CommandPath(),
			"correlation_id", info.correlationID.String(),
		)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger == nil {
			logger = slog.Default()
		}
		info, ok := cmd.Context().Value(commandContextKey{}).(commandContext)
		if !ok {
			return
		}
		logger.Debug("command end",
			"command", cmd.CommandPath(),
			"correlation_id", info.correlationID.String(),
			"duration_ms", time.Since(info.startedAt).Milliseconds(),
		)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

// AddCommand adds a command to the root command.
func AddCommand(cmd *cobra.Command) {
	rootCmd.AddCommand(cmd)
}

// Root returns the root command.
func Root() *cobra.Command {
	return rootCmd
}

// SetLogger sets the CLI logger.
func SetLogger(l *slog.Logger) {
	logger = l
}

// SetBootstrap sets how the App is built before a command runs.
func SetBootstrap(b Bootstrap) {
	bootstrap = b
}

// Close releases what the bootstrap opened.
func Close() {
	if closeApp != nil {
		closeApp()
		closeApp = nil
	}
}

// ConfigFile returns the --config value.
func ConfigFile() string {
	return cfgFile
}

// Verbose reports whether --verbose was given.
func Verbose() bool {
	return verbose
}

// RequireApp returns the global app or an error when the store is unavailable.
func RequireApp() (*App, error) {
	if app == nil {
		if bootstrapErr != nil {
			return nil, fmt.Errorf("synapse store is unavailable: %w", bootstrapErr)
		}
		return nil, errors.New("synapse store is unavailable; check DATABASE_URL or SQLITE_PATH")
	}
	return app, nil
}
