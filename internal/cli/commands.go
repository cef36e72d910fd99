package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/goliatone/go-mintflow/adapters/gocommand"
	"github.com/goliatone/go-mintflow/adapters/gojob"
	mintcommand "github.com/goliatone/go-mintflow/command"
	"github.com/goliatone/go-mintflow/core"
	mintflowmigrations "github.com/goliatone/go-mintflow/migrations"
	mintquery "github.com/goliatone/go-mintflow/query"
	"github.com/spf13/cobra"
)

func newInitCmd(state *rootState) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default config file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := state.configPath
			if path == "" {
				path = DefaultConfigPath
			}
			if err := WriteDefaultConfig(state.fs, path, force); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	return cmd
}

func newMigrateCmd(state *rootState) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			settings, err := state.settings(cmd.Context())
			if err != nil {
				return err
			}
			client, err := OpenStorage(cmd.Context(), settings.Config.Storage)
			if err != nil {
				return err
			}
			defer func() { _ = client.Close() }()

			dialect, err := mintflowmigrations.DialectForDriver(settings.Config.Storage.Driver)
			if err != nil {
				return err
			}
			specs, err := mintflowmigrations.Filesystems()
			if err != nil {
				return err
			}
			for _, spec := range specs {
				if spec.Dialect != dialect {
					continue
				}
				versions, err := mintflowmigrations.Versions(spec.FS)
				if err != nil {
					return err
				}
				for _, version := range versions {
					fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", dialect, version)
				}
			}
			return nil
		},
	}
}

func newLoginCmd(state *rootState) *cobra.Command {
	var clientID, clientSecret string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Exchange client credentials for an access token",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return state.withApp(cmd, func(ctx context.Context, app *App) error {
				id := firstNonEmpty(clientID, app.Settings.ClientID)
				secret := firstNonEmpty(clientSecret, app.Settings.ClientSecret)
				freshness, err := gocommand.Execute[mintcommand.AuthenticateMessage, core.TokenFreshness](ctx, mintcommand.AuthenticateMessage{
					ClientID:     id,
					ClientSecret: secret,
				})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "authenticated, token valid for %s\n", freshness.Remaining.Round(time.Second))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&clientID, "client-id", "", "client id (default $"+EnvClientID+")")
	cmd.Flags().StringVar(&clientSecret, "client-secret", "", "client secret (default $"+EnvClientSecret+")")
	return cmd
}

func newLogoutCmd(state *rootState) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget credentials and restart the workflow",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return state.withApp(cmd, func(ctx context.Context, _ *App) error {
				if _, err := gocommand.Execute[mintcommand.LogoutMessage, struct{}](ctx, mintcommand.LogoutMessage{}); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "logged out")
				return nil
			})
		},
	}
}

func newDeployCmd(state *rootState) *cobra.Command {
	var name, description, image, externalURL, chain string
	cmd := &cobra.Command{
		Use:   "deploy",
		Short: "Deploy the ERC1155 contract",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return state.withApp(cmd, func(ctx context.Context, app *App) error {
				req := app.Settings.Config.Defaults.DeployRequest()
				req.Name = firstNonEmpty(name, req.Name)
				req.Description = firstNonEmpty(description, req.Description)
				req.Image = firstNonEmpty(image, req.Image)
				req.ExternalURL = firstNonEmpty(externalURL, req.ExternalURL)
				req.Chain = firstNonEmpty(chain, req.Chain)
				outcome, err := gocommand.Stage(ctx, mintcommand.DeployContractMessage{Request: req})
				return reportStage(cmd.OutOrStdout(), outcome, err)
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "contract name")
	cmd.Flags().StringVar(&description, "description", "", "contract description")
	cmd.Flags().StringVar(&image, "image", "", "contract image url")
	cmd.Flags().StringVar(&externalURL, "external-url", "", "contract external url")
	cmd.Flags().StringVar(&chain, "chain", "", "target chain")
	return cmd
}

func newTokenTypeCmd(state *rootState) *cobra.Command {
	var name, description, image string
	cmd := &cobra.Command{
		Use:   "token-type",
		Short: "Create a token type on the deployed contract",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return state.withApp(cmd, func(ctx context.Context, app *App) error {
				req := app.Settings.Config.Defaults.TokenTypeRequest()
				req.Name = firstNonEmpty(name, req.Name)
				req.Description = firstNonEmpty(description, req.Description)
				req.Image = firstNonEmpty(image, req.Image)
				outcome, err := gocommand.Stage(ctx, mintcommand.CreateTokenTypeMessage{Request: req})
				return reportStage(cmd.OutOrStdout(), outcome, err)
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "token type name")
	cmd.Flags().StringVar(&description, "description", "", "token type description")
	cmd.Flags().StringVar(&image, "image", "", "token type image url")
	return cmd
}

func newMintCmd(state *rootState) *cobra.Command {
	var address string
	var amount int
	cmd := &cobra.Command{
		Use:   "mint",
		Short: "Mint the token type to a wallet",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return state.withApp(cmd, func(ctx context.Context, app *App) error {
				req := app.Settings.Config.Defaults.MintRequest(address)
				if amount != 0 {
					req.Destinations[0].Amount = amount
				}
				outcome, err := gocommand.Stage(ctx, mintcommand.MintMessage{Request: req})
				return reportStage(cmd.OutOrStdout(), outcome, err)
			})
		},
	}
	cmd.Flags().StringVar(&address, "address", "", "destination wallet address")
	cmd.Flags().IntVar(&amount, "amount", 0, "amount to mint (1-100)")
	_ = cmd.MarkFlagRequired("address")
	return cmd
}

func newStatusCmd(state *rootState) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the workflow position and token state",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return state.withApp(cmd, func(ctx context.Context, _ *App) error {
				status, err := gocommand.Execute[mintquery.WorkflowStatusMessage, mintquery.WorkflowStatus](ctx, mintquery.WorkflowStatusMessage{})
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if asJSON {
					return writeJSON(out, map[string]any{
						"stage":         status.NextStage.String(),
						"highest_stage": status.Progress.HighestStageReached.String(),
						"busy":          status.Progress.Busy,
						"contract":      status.Progress.Data.Contract,
						"token_type":    status.Progress.Data.TokenType,
						"authenticated": status.Token.HasToken && !status.Token.IsExpired,
						"pending":       core.PresentOperations(status.Pending),
					})
				}
				fmt.Fprintf(out, "Stage    : %s\n", status.NextStage)
				fmt.Fprintf(out, "Highest  : %s\n", status.Progress.HighestStageReached)
				if contract := status.Progress.Data.Contract; contract != nil {
					fmt.Fprintf(out, "Contract : %s on %s\n", contract.Address, contract.Chain)
				}
				if tokenType := status.Progress.Data.TokenType; tokenType != nil {
					fmt.Fprintf(out, "TokenType: %d\n", tokenType.TokenTypeID)
				}
				fmt.Fprintf(out, "Token    : %s\n", describeToken(status.Token))
				fmt.Fprintf(out, "Pending  : %d\n", len(status.Pending))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func newHistoryCmd(state *rootState) *cobra.Command {
	var status, kind string
	var limit int
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded operations, newest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return state.withApp(cmd, func(ctx context.Context, _ *App) error {
				records, err := gocommand.Execute[mintquery.ListTransactionsMessage, []core.OperationRecord](ctx, mintquery.ListTransactionsMessage{
					Status: core.Status(strings.ToUpper(strings.TrimSpace(status))),
					Kind:   parseKind(kind),
					Limit:  limit,
				})
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if asJSON {
					return writeJSON(out, core.PresentOperations(records))
				}
				w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "ID\tKIND\tSTATUS\tSUBMITTED")
				for _, record := range records {
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", record.ID, record.Kind, record.Status, record.SubmittedAt.Format(time.RFC3339))
				}
				return w.Flush()
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "filter by status: PENDING, SUCCEEDED, FAILED")
	cmd.Flags().StringVar(&kind, "kind", "", "filter by kind: deploy, token_type, mint")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum records to list")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func newRecheckCmd(state *rootState) *cobra.Command {
	var (
		all     bool
		kinds   []string
		spacing time.Duration
	)
	cmd := &cobra.Command{
		Use:   "recheck [operation-id]",
		Short: "Check the remote status of a pending operation",
		Args: func(cmd *cobra.Command, args []string) error {
			if all && len(args) == 0 {
				return nil
			}
			return cobra.ExactArgs(1)(cmd, args)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return state.withApp(cmd, func(ctx context.Context, app *App) error {
				out := cmd.OutOrStdout()
				if all {
					msg := gojob.ReconcileMessage(gojob.ReconcileParams{Spacing: spacing}, "")
					if len(kinds) > 0 {
						msg.Parameters["kinds"] = kinds
					}
					result, err := app.Reconcile.Run(ctx, msg)
					if err != nil {
						return err
					}
					fmt.Fprintf(out, "checked %d: %d succeeded, %d failed, %d pending\n",
						result.Checked, len(result.Succeeded), len(result.Failed), len(result.StillPending))
					for id, recheckErr := range result.Errors {
						fmt.Fprintf(out, "  %s: %v\n", id, recheckErr)
					}
					return nil
				}
				outcome, err := gocommand.Stage(ctx, mintcommand.RecheckMessage{OperationID: args[0]})
				return reportStage(out, outcome, err)
			})
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "recheck every pending operation, oldest first")
	cmd.Flags().StringSliceVar(&kinds, "kind", nil, "with --all, only recheck these operation kinds")
	cmd.Flags().DurationVar(&spacing, "spacing", 0, "with --all, pause between rechecks")
	return cmd
}

func newResetCmd(state *rootState) *cobra.Command {
	var history bool
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Return the workflow to the deploy stage",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return state.withApp(cmd, func(ctx context.Context, _ *App) error {
				progress, err := gocommand.Execute[mintcommand.ResetWorkflowMessage, core.ProgressState](ctx, mintcommand.ResetWorkflowMessage{})
				if err != nil {
					return err
				}
				if history {
					if _, err := gocommand.Execute[mintcommand.ClearHistoryMessage, struct{}](ctx, mintcommand.ClearHistoryMessage{}); err != nil {
						return err
					}
				}
				fmt.Fprintf(cmd.OutOrStdout(), "workflow reset to %s\n", progress.CurrentStage)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&history, "history", false, "also clear the operation history")
	return cmd
}

func newChainsCmd(state *rootState) *cobra.Command {
	return &cobra.Command{
		Use:   "chains",
		Short: "List supported chains",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return state.withApp(cmd, func(ctx context.Context, _ *App) error {
				chains, err := gocommand.Execute[mintquery.ListChainsMessage, []string](ctx, mintquery.ListChainsMessage{})
				if err != nil {
					return err
				}
				for _, chain := range chains {
					fmt.Fprintln(cmd.OutOrStdout(), chain)
				}
				return nil
			})
		},
	}
}

func reportStage(out io.Writer, outcome core.StageOutcome, err error) error {
	switch {
	case outcome.TimedOut || core.IsTimeoutError(err):
		fmt.Fprintf(out, "%s %s still pending after %d checks, run `mintflow recheck %s` later\n",
			outcome.Stage, outcome.OperationID, outcome.Attempts, outcome.OperationID)
		return err
	case err != nil:
		if outcome.OperationID != "" {
			fmt.Fprintf(out, "%s %s: %s\n", outcome.Stage, outcome.OperationID, outcome.Status)
		}
		return err
	}
	fmt.Fprintf(out, "%s %s: %s\n", outcome.Stage, outcome.OperationID, outcome.Status)
	switch {
	case outcome.Contract != nil:
		fmt.Fprintf(out, "contract %s on %s\n", outcome.Contract.Address, outcome.Contract.Chain)
	case outcome.TokenType != nil:
		fmt.Fprintf(out, "token type %d\n", outcome.TokenType.TokenTypeID)
	case outcome.Mint != nil && outcome.Mint.TransactionHash != "":
		fmt.Fprintf(out, "transaction %s\n", outcome.Mint.TransactionHash)
	}
	return nil
}

func describeToken(token core.TokenFreshness) string {
	switch {
	case !token.HasIdentity:
		return "not logged in"
	case !token.HasToken:
		return "no token"
	case token.IsExpired:
		return "expired"
	case token.NeedsRenew:
		return "renewing soon"
	default:
		return fmt.Sprintf("valid for %s", token.Remaining.Round(time.Second))
	}
}

func parseKind(value string) core.OperationKind {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "":
		return ""
	case "deploy", "contract":
		return core.OperationContractDeployment
	case "token_type", "token-type":
		return core.OperationTokenTypeCreation
	case "mint":
		return core.OperationMint
	default:
		return core.OperationKind(strings.ToUpper(strings.TrimSpace(value)))
	}
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return ""
}

func writeJSON(out io.Writer, value any) error {
	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(value)
}
