package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/user/evidence-service/internal/app"
	"github.com/user/evidence-service/internal/delivery/http/request"
	"github.com/user/evidence-service/internal/delivery/http/response"
	"github.com/user/evidence-service/pkg/config"
	"github.com/user/evidence-service/pkg/logger"
)

var (
	rootCmd = &cobra.Command{
		Use:          "evidencectl",
		Short:        "Run evidence retrievals and manage circuit breakers from the shell",
		SilenceUsage: true,
	}
	retrieveCmd = &cobra.Command{
		Use:   "retrieve [query]",
		Short: "Gathers evidence for a query and prints the result as JSON",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runRetrieveCommand,
	}
	breakersCmd = &cobra.Command{
		Use:   "breakers",
		Short: "Inspects and resets the shared circuit breakers",
	}
	breakersListCmd = &cobra.Command{
		Use:   "list",
		Short: "Lists the observed state of every recorded service",
		Args:  cobra.NoArgs,
		RunE:  runBreakersListCommand,
	}
	breakersResetCmd = &cobra.Command{
		Use:   "reset [service]",
		Short: "Closes the breaker for one service",
		Args:  cobra.ExactArgs(1),
		RunE:  runBreakersResetCommand,
	}

	envFile         string
	entities        []string
	audience        string
	forceFresh      bool
	timeoutMS       int
	requiredSources []string
)

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Path to the env file holding service configuration")

	retrieveCmd.Flags().StringSliceVar(&entities, "entity", nil, "Named entity attached to the query (repeatable)")
	retrieveCmd.Flags().StringVar(&audience, "audience", "", "Audience: student, personal or market")
	retrieveCmd.Flags().BoolVar(&forceFresh, "force-fresh", false, "Skip the retrieval cache")
	retrieveCmd.Flags().IntVar(&timeoutMS, "timeout", 0, "Global timeout in milliseconds (0 uses the configured default)")
	retrieveCmd.Flags().StringSliceVar(&requiredSources, "require", nil, "Source that must contribute evidence (repeatable)")

	breakersCmd.AddCommand(breakersListCmd, breakersResetCmd)
	rootCmd.AddCommand(retrieveCmd, breakersCmd)
}

// --- Helpers ---

// bootstrap loads configuration and wires the application for one invocation.
// Logs go to stderr so stdout carries only the JSON result.
func bootstrap(cmd *cobra.Command) (*app.App, context.Context, func(), error) {
	cfg, err := config.LoadFile(envFile)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load config: %w", err)
	}
	logger.Init(os.Stderr, logger.ParseLevel(cfg.LogLevel))
	slog.SetDefault(slog.Default().With("request_id", uuid.NewString(), "command", cmd.CommandPath()))

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	application, err := app.New(ctx, cfg)
	if err != nil {
		stop()
		return nil, nil, nil, err
	}
	return application, ctx, func() {
		application.Close()
		stop()
	}, nil
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// --- Commands ---

func runRetrieveCommand(cmd *cobra.Command, args []string) error {
	req := request.RetrieveRequest{
		Query:           strings.Join(args, " "),
		Entities:        entities,
		TimeoutMS:       timeoutMS,
		ForceFresh:      forceFresh,
		Audience:        audience,
		RequiredSources: requiredSources,
	}
	if err := req.Validate(); err != nil {
		return fmt.Errorf("invalid request: %w", err)
	}

	application, ctx, done, err := bootstrap(cmd)
	if err != nil {
		return err
	}
	defer done()

	result := application.Retriever.Retrieve(ctx, req.ToEntity())
	slog.Info("Retrieval finished",
		"retrieval_count", result.RetrievalCount,
		"cache_hit", result.CacheHit,
		"degraded", result.Degraded,
	)
	return printJSON(cmd, result)
}

func runBreakersListCommand(cmd *cobra.Command, args []string) error {
	application, ctx, done, err := bootstrap(cmd)
	if err != nil {
		return err
	}
	defer done()

	states, err := application.Breaker.List(ctx)
	if err != nil {
		return fmt.Errorf("list breakers: %w", err)
	}
	return printJSON(cmd, response.NewBreakerList(states))
}

func runBreakersResetCommand(cmd *cobra.Command, args []string) error {
	application, ctx, done, err := bootstrap(cmd)
	if err != nil {
		return err
	}
	defer done()

	service := args[0]
	if err := application.Breaker.Reset(ctx, service); err != nil {
		return fmt.Errorf("reset breaker %s: %w", service, err)
	}
	slog.Info("Circuit breaker reset", "service", service)
	return printJSON(cmd, response.ResetBreakerResponse{Status: "reset", Service: service})
}

