package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Domenick1991/bookingfulfillment/config"
	"github.com/Domenick1991/bookingfulfillment/internal/bootstrap"
	"github.com/Domenick1991/bookingfulfillment/internal/domain"
	"github.com/Domenick1991/bookingfulfillment/internal/logger"
	"github.com/spf13/cobra"
)

var Version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var cfgPath string

	rootCmd := &cobra.Command{
		Use:           "bookingctl",
		Short:         "Operator tooling for booking fulfillment",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", envOr("CONFIG_PATH", "config.yaml"), "Path to config file")

	rootCmd.AddCommand(statusCmd(&cfgPath))
	rootCmd.AddCommand(reconcileCmd(&cfgPath))
	rootCmd.AddCommand(sweepCmd(&cfgPath))

	return rootCmd
}

func statusCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "status <session-key>",
		Short: "Print the stored booking record for a payment session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDeps(cmd.Context(), *cfgPath, func(ctx context.Context, d *bootstrap.Deps) error {
				rec, err := d.Store.Get(ctx, args[0])
				if err != nil {
					return fmt.Errorf("read booking %s: %w", args[0], err)
				}
				return printJSON(cmd.OutOrStdout(), newRecordView(rec))
			})
		},
	}
}

func reconcileCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile <session-key>",
		Short: "Run reconciliation for one payment session and print the outcome",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDeps(cmd.Context(), *cfgPath, func(ctx context.Context, d *bootstrap.Deps) error {
				outcome, err := d.Reconciler.Settle(ctx, args[0])
				if err != nil {
					return fmt.Errorf("reconcile %s: %w", args[0], err)
				}
				return printJSON(cmd.OutOrStdout(), outcome)
			})
		},
	}
}

func sweepCmd(cfgPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Settle bookings stuck in processing",
		Args:  cobra.NoArgs,
	}
	minAge := cmd.Flags().Duration("min-age", 0, "Only sweep records older than this (defaults to config)")
	batch := cmd.Flags().IntP("limit", "n", 0, "Maximum records to sweep (defaults to config)")

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		return withDeps(cmd.Context(), *cfgPath, func(ctx context.Context, d *bootstrap.Deps) error {
			if *minAge > 0 {
				d.Config.Fulfillment.SweepMinAge = *minAge
			}
			if *batch > 0 {
				d.Config.Fulfillment.SweepBatch = *batch
			}
			report, err := d.Sweeper().Sweep(ctx)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), report)
		})
	}
	return cmd
}

func withDeps(ctx context.Context, cfgPath string, fn func(context.Context, *bootstrap.Deps) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		return err
	}

	log := logger.NewLogger()
	defer func() { _ = log.Sync() }()

	deps, err := bootstrap.NewDeps(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer deps.Close()

	return fn(ctx, deps)
}

type recordView struct {
	SessionKey       string               `json:"sessionKey"`
	State            domain.BookingState  `json:"state"`
	OfferID          string               `json:"offerId,omitempty"`
	CustomerEmail    string               `json:"customerEmail,omitempty"`
	AmountTotal      int64                `json:"amountTotal"`
	Currency         string               `json:"currency"`
	OrderID          string               `json:"orderId,omitempty"`
	BookingReference string               `json:"bookingReference,omitempty"`
	FailureReason    string               `json:"failureReason,omitempty"`
	ErrorDetail      string               `json:"errorDetail,omitempty"`
	Passengers       int                  `json:"passengers"`
	CreatedAt        time.Time            `json:"createdAt"`
	UpdatedAt        time.Time            `json:"updatedAt"`
	Outcome          domain.OutcomeStatus `json:"outcome"`
}

func newRecordView(rec *domain.BookingRecord) recordView {
	return recordView{
		SessionKey:       rec.SessionKey,
		State:            rec.State,
		OfferID:          rec.OfferID,
		CustomerEmail:    rec.CustomerEmail,
		AmountTotal:      rec.AmountTotal,
		Currency:         rec.Currency,
		OrderID:          rec.OrderID,
		BookingReference: rec.BookingReference,
		FailureReason:    rec.FailureReason,
		ErrorDetail:      rec.ErrorDetail,
		Passengers:       len(rec.PassengerData.Passengers),
		CreatedAt:        rec.CreatedAt,
		UpdatedAt:        rec.UpdatedAt,
		Outcome:          domain.OutcomeFromRecord(rec).Status,
	}
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
