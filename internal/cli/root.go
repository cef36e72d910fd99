package cli

import (
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

type RootOption func(*rootState)

// WithFs replaces the filesystem the config file is read from.
func WithFs(fs afero.Fs) RootOption {
	return func(s *rootState) {
		if fs != nil {
			s.fs = fs
		}
	}
}

func WithGetenv(getenv func(string) string) RootOption {
	return func(s *rootState) {
		if getenv != nil {
			s.getenv = getenv
		}
	}
}

type rootState struct {
	fs     afero.Fs
	getenv func(string) string

	configPath    string
	profile       string
	simulate      bool
	pendingChecks int
	logLevel      string
	metrics       bool
}

func NewRoot(opts ...RootOption) *cobra.Command {
	state := &rootState{fs: afero.NewOsFs(), getenv: os.Getenv}
	for _, opt := range opts {
		if opt != nil {
			opt(state)
		}
	}

	cmd := &cobra.Command{
		Use:           "mintflow",
		Short:         "Deploy an ERC1155 contract, create a token type and mint it",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          func(c *cobra.Command, _ []string) error { return c.Help() },
	}
	flags := cmd.PersistentFlags()
	flags.StringVar(&state.configPath, "config", "", "config file (default $"+EnvConfigPath+" or "+DefaultConfigPath+")")
	flags.StringVar(&state.profile, "profile", "", "state profile stored in the database")
	flags.BoolVar(&state.simulate, "simulate", false, "use an in-memory ledger instead of the remote API")
	flags.IntVar(&state.pendingChecks, "pending-checks", 0, "status reads before a simulated operation settles")
	flags.StringVar(&state.logLevel, "log-level", "warn", "log level: trace, debug, info, warn, error")
	flags.BoolVar(&state.metrics, "metrics", false, "print operation counters after the command")

	cmd.AddCommand(
		newInitCmd(state),
		newMigrateCmd(state),
		newLoginCmd(state),
		newLogoutCmd(state),
		newDeployCmd(state),
		newTokenTypeCmd(state),
		newMintCmd(state),
		newStatusCmd(state),
		newHistoryCmd(state),
		newRecheckCmd(state),
		newResetCmd(state),
		newChainsCmd(state),
	)
	return cmd
}

func (s *rootState) settings(ctx context.Context) (Settings, error) {
	return LoadSettings(ctx, s.fs, s.configPath, s.getenv)
}

// withApp opens the wired application for one command and closes it after.
func (s *rootState) withApp(cmd *cobra.Command, run func(ctx context.Context, app *App) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	settings, err := s.settings(ctx)
	if err != nil {
		return err
	}
	app, err := OpenApp(ctx, settings, AppOptions{
		Profile:       s.profile,
		Simulate:      s.simulate,
		PendingChecks: s.pendingChecks,
		LogLevel:      s.logLevel,
		LogOutput:     cmd.ErrOrStderr(),
	})
	if err != nil {
		return err
	}
	defer func() { _ = app.Close() }()

	if err := run(ctx, app); err != nil {
		return err
	}
	if s.metrics {
		return printCounters(cmd, app)
	}
	return nil
}

func printCounters(cmd *cobra.Command, app *App) error {
	families, err := app.Metrics.Gather()
	if err != nil {
		return err
	}
	totals := map[string]float64{}
	for _, family := range families {
		for _, metric := range family.GetMetric() {
			if counter := metric.GetCounter(); counter != nil {
				totals[family.GetName()] += counter.GetValue()
			}
		}
	}
	names := make([]string, 0, len(totals))
	for name := range totals {
		names = append(names, name)
	}
	sort.Strings(names)
	out := cmd.ErrOrStderr()
	for _, name := range names {
		fmt.Fprintf(out, "%s %g\n", name, totals[name])
	}
	return nil
}
