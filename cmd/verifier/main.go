package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/yourorg/manteia/pkg/prover"
	"github.com/yourorg/manteia/pkg/storagehash"
	"github.com/yourorg/manteia/pkg/zkproof"
)

func main() {
	var artifactPath, proofPath, publicPath, vkPath, metaPath string

	cmd := &cobra.Command{
		Use:   "verifier",
		Short: "Verify a revenue proof artifact off-chain",
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				artifact *zkproof.Artifact
				err      error
			)
			switch {
			case artifactPath != "":
				artifact, err = zkproof.LoadArtifact(artifactPath)
			case proofPath != "" && publicPath != "":
				artifact, err = zkproof.LoadSnarkJS(proofPath, publicPath, "")
			default:
				return fmt.Errorf("--artifact or both --proof and --public are required")
			}
			if err != nil {
				return err
			}

			vk, err := prover.LoadVerifyingKey(vkPath)
			if err != nil {
				return err
			}
			if err := prover.Verify(vk, artifact); err != nil {
				return err
			}

			if metaPath != "" {
				meta, err := os.ReadFile(metaPath)
				if err != nil {
					return err
				}
				ok, err := storagehash.Matches(artifact.StorageHash, meta)
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("metadata does not match %s", artifact.StorageHash)
				}
			}

			fmt.Println("proof verified ✅")
			return nil
		},
	}

	cmd.Flags().StringVar(&artifactPath, "artifact", "", "revenue_artifact.json")
	cmd.Flags().StringVar(&proofPath, "proof", "", "snarkjs proof.json")
	cmd.Flags().StringVar(&publicPath, "public", "", "snarkjs public.json")
	cmd.Flags().StringVar(&vkPath, "vk", "", "revenue_vk.bin")
	cmd.Flags().StringVar(&metaPath, "meta", "", "Optional metadata document to check against ipfsHash")
	_ = cmd.MarkFlagRequired("vk")

	if err := cmd.ExecuteContext(context.Background()); err != nil {
		log.Fatal(err)
	}
}
