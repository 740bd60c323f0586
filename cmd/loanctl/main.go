package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/yourorg/manteia/internal/config"
	"github.com/yourorg/manteia/internal/loan"
	"github.com/yourorg/manteia/internal/logging"
	"github.com/yourorg/manteia/internal/server"
	"github.com/yourorg/manteia/pkg/identity"
	"github.com/yourorg/manteia/pkg/risk"
	"github.com/yourorg/manteia/pkg/units"
	"github.com/yourorg/manteia/pkg/zkproof"
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "loanctl",
		Short:        "Submit zk-gated loan requests to the Manteia factory",
		SilenceUsage: true,
	}
	rootCmd.AddCommand(submitCmd(), scoreCmd(), serveCmd())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		log.Fatal(err)
	}
}

func submitCmd() *cobra.Command {
	var artifactPath, amountS, purpose, sector string

	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Send one loan request with a proof artifact",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logger := logging.New(cfg.LogLevel, true, os.Stderr)

			amount, err := units.ParseAmount(amountS)
			if err != nil {
				return err
			}
			// An absent artifact is passed on as such; the flow reports it.
			var artifact *zkproof.Artifact
			if artifactPath != "" {
				if artifact, err = zkproof.LoadArtifact(artifactPath); err != nil {
					return err
				}
			}

			a, err := build(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			actor, _ := identity.Static{Address: a.from, Role: identity.RoleBorrower}.Current(cmd.Context())
			out := a.orch.Submit(cmd.Context(), loan.Request{Amount: amount, Purpose: purpose, Sector: sector}, artifact, actor)

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			_ = enc.Encode(struct {
				AttemptID  string    `json:"attempt_id"`
				Kind       loan.Kind `json:"kind"`
				TxHash     string    `json:"tx_hash,omitempty"`
				RiskScore  int       `json:"risk_score,omitempty"`
				Diagnostic string    `json:"diagnostic,omitempty"`
			}{out.AttemptID.String(), out.Kind, txHex(out), out.RiskScore, out.Diagnostic})

			if out.OK() || out.Quiet() {
				return nil
			}
			return fmt.Errorf("%s: %w", out.Kind, out.Err)
		},
	}

	cmd.Flags().StringVar(&artifactPath, "artifact", "", "Proof artifact JSON (ipfsHash, publicSignals, proof)")
	cmd.Flags().StringVar(&amountS, "amount", "", "Requested amount in stablecoin units, e.g. 10000.50")
	cmd.Flags().StringVar(&purpose, "purpose", "", "Loan purpose")
	cmd.Flags().StringVar(&sector, "sector", "", "Business sector")
	_ = cmd.MarkFlagRequired("amount")
	return cmd
}

func txHex(out loan.Outcome) string {
	if !out.OnChain() {
		return ""
	}
	return out.TxHash.Hex()
}

func scoreCmd() *cobra.Command {
	var revenue float64
	var amountS string

	cmd := &cobra.Command{
		Use:   "score",
		Short: "Print the risk score for a revenue and amount",
		RunE: func(cmd *cobra.Command, _ []string) error {
			amount, err := units.ParseAmount(amountS)
			if err != nil {
				return err
			}
			if revenue <= 0 {
				cfg, err := config.Load()
				if err != nil {
					return err
				}
				revenue = cfg.RevenueBaseline
			}
			fmt.Println(risk.Score(revenue, amount.Float64()))
			return nil
		},
	}
	cmd.Flags().Float64Var(&revenue, "revenue", 0, "Monthly revenue (REVENUE_BASELINE when unset)")
	cmd.Flags().StringVar(&amountS, "amount", "", "Requested amount")
	_ = cmd.MarkFlagRequired("amount")
	return cmd
}

func serveCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the borrower HTTP intake",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.HTTPAddr = addr
			}
			logger := logging.New(cfg.LogLevel, false, os.Stdout)

			a, err := build(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			return server.New(a.orch, a.store, cfg.RevenueBaseline, logger).Run(cmd.Context(), cfg.HTTPAddr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (HTTP_ADDR when unset)")
	return cmd
}
