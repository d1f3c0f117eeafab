package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"

	"seqsync/internal/config"
	"seqsync/internal/harness"
	"seqsync/internal/logging"
)

func rootCmd() *cobra.Command {
	cfg := config.Default()
	var debug bool
	var configPath string
	var seed uint64

	cmd := &cobra.Command{
		Use:   "seqharness",
		Short: "Run a simulated ordered-list replication session",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level := logging.LevelInfo
			if debug {
				level = logging.LevelDebug
			}
			return logging.Configure(level)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if configPath != "" {
				loaded, err := config.Load(configPath)
				if err != nil {
					return err
				}
				cfg = loaded
			}
			if seed == 0 {
				seed = uint64(time.Now().UnixNano())
			}

			tracer := otel.Tracer("seqsync/dispatcher")
			result, err := harness.Run(cmd.Context(), cfg, seed, tracer)
			if result != nil {
				fmt.Fprintln(os.Stdout, renderSummary(result))
			}
			return err
		},
	}

	cmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")
	cmd.Flags().StringVar(&configPath, "config", "", "Path to a YAML run profile; overrides all other flags")
	cmd.Flags().Uint64Var(&seed, "seed", 0, "Master RNG seed; 0 derives one from the current time")
	cmd.Flags().IntVar(&cfg.Clients, "clients", cfg.Clients, "Number of client actors")
	cmd.Flags().IntVar(&cfg.SeedCells, "seed-cells", cfg.SeedCells, "Number of cells to seed the server with")
	cmd.Flags().DurationVar(&cfg.Duration, "duration", cfg.Duration, "How long the simulation runs")
	cmd.Flags().BoolVar(&cfg.UserSendLoadState, "user-send-load-state", cfg.UserSendLoadState, "Allow clients to issue LoadState requests")
	cmd.Flags().BoolVar(&cfg.UserSendSync, "user-send-sync", cfg.UserSendSync, "Allow clients to issue Sync requests")
	cmd.Flags().BoolVar(&cfg.WithStateChecking, "with-state-checking", cfg.WithStateChecking, "Enable client state-checker assertions")
	cmd.Flags().BoolVar(&cfg.WithDelayedHistory, "with-delayed-history", cfg.WithDelayedHistory, "Defer delta computation by one response cycle")
	cmd.Flags().BoolVar(&cfg.WithSizeCalculation, "with-size-calculation", cfg.WithSizeCalculation, "Populate the envelope size field")

	return cmd
}

func renderSummary(r *harness.Result) string {
	headers := []string{"client", "variant", "watermark", "lag", "replica size"}
	rows := make([][]string, 0, len(r.Clients))
	for _, c := range r.Clients {
		rows = append(rows, []string{
			strconv.FormatUint(uint64(c.ID), 10),
			c.Variant,
			strconv.FormatUint(uint64(c.Watermark), 10),
			strconv.FormatUint(uint64(c.Lag), 10),
			strconv.Itoa(c.ReplicaSize),
		})
	}

	t := table.New().
		Headers(headers...).
		Rows(rows...)

	return fmt.Sprintf("run %s — iteration %d\n%s", r.RunID, r.CurrentIteration, t.String())
}
