package main

import (
	"context"
	"fmt"
	"log"
	"math/big"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/yourorg/manteia/internal/logging"
	"github.com/yourorg/manteia/pkg/prover"
	"github.com/yourorg/manteia/pkg/witness"
)

// contextKey is a custom type for context keys to avoid conflicts
type contextKey string

const startTimeKey contextKey = "start"

func main() {
	var (
		revenue   uint64
		threshold uint64
		saltS     string
		keyDir    string
		outDir    string
	)

	rootCmd := &cobra.Command{
		Use:   "prover",
		Short: "Generate a Groth16 proof that monthly revenue meets a threshold",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_ = godotenv.Load()
			logger := logging.New(os.Getenv("LOG_LEVEL"), true, os.Stderr)

			// -----------------------------------------------------------------
			// Statement
			// -----------------------------------------------------------------
			st := witness.Statement{MonthlyRevenue: revenue, Threshold: threshold}
			if saltS != "" {
				salt, ok := new(big.Int).SetString(saltS, 0)
				if !ok {
					return fmt.Errorf("invalid --salt %q", saltS)
				}
				st.Salt = salt
			} else {
				salt, err := witness.NewSalt()
				if err != nil {
					return err
				}
				st.Salt = salt
			}

			// -----------------------------------------------------------------
			// Circuit compile + trusted setup (cached)
			// -----------------------------------------------------------------
			if keyDir != "" {
				if err := os.MkdirAll(keyDir, 0o755); err != nil {
					return err
				}
			}
			keys, err := prover.Setup(keyDir)
			if err != nil {
				return err
			}
			logger.Debug().Int("constraints", keys.CS.GetNbConstraints()).Msg("circuit ready")

			// -----------------------------------------------------------------
			// Prove
			// -----------------------------------------------------------------
			artifact, meta, err := prover.Generate(keys, st, time.Now())
			if err != nil {
				return err
			}

			// -----------------------------------------------------------------
			// Outputs
			// -----------------------------------------------------------------
			if err := os.MkdirAll(outDir, 0o755); err != nil {
				return err
			}
			artifactPath := filepath.Join(outDir, "revenue_artifact.json")
			metaPath := filepath.Join(outDir, artifact.StorageHash+".json")
			if err := artifact.Save(artifactPath); err != nil {
				return err
			}
			if err := os.WriteFile(metaPath, meta, 0o644); err != nil {
				return err
			}

			logger.Info().
				Str("artifact", artifactPath).
				Str("ipfs_hash", artifact.StorageHash).
				Str("salt", st.Salt.String()).
				Dur("took", time.Since(cmd.Context().Value(startTimeKey).(time.Time))).
				Msg("proof done")
			return nil
		},
	}

	rootCmd.Flags().Uint64Var(&revenue, "revenue", 0, "Monthly revenue (private)")
	rootCmd.Flags().Uint64Var(&threshold, "threshold", 0, "Public revenue floor to prove")
	rootCmd.Flags().StringVar(&saltS, "salt", "", "Commitment salt (random when empty)")
	rootCmd.Flags().StringVar(&keyDir, "keys", "./keys", "Directory caching the proving/verifying keys")
	rootCmd.Flags().StringVar(&outDir, "outdir", "./", "Output directory")
	_ = rootCmd.MarkFlagRequired("revenue")
	_ = rootCmd.MarkFlagRequired("threshold")

	rootCmd.SetContext(context.WithValue(context.Background(), startTimeKey, time.Now()))
	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
