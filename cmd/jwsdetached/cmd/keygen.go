package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/vitalvas/jwsdetached/jws"
)

func newKeygenCmd(a *app) *cobra.Command {
	var (
		alg        string
		privateOut string
		publicOut  string
	)

	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate a signing key as a JWK",
		Long: `Generate key material for an algorithm and write it as a JSON Web Key.

The private key goes to --out, or stdout when --out is not set. For
asymmetric algorithms --public also writes the public key for verifiers.`,
		Example: `  jwsdetached keygen --alg ES256 --out signer.jwk --public verifier.jwk
  jwsdetached keygen --alg HS256 > shared.jwk`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			key, err := jws.GenerateKey(jws.Algorithm(alg))
			if err != nil {
				return err
			}

			private, err := jws.MarshalJWK(key, false)
			if err != nil {
				return err
			}

			if privateOut == "" {
				if _, err := fmt.Fprintln(cmd.OutOrStdout(), string(private)); err != nil {
					return err
				}
			} else if err := os.WriteFile(privateOut, append(private, '\n'), 0o600); err != nil {
				return fmt.Errorf("write private key: %w", err)
			}

			if publicOut != "" {
				public, err := jws.MarshalJWK(key, true)
				if err != nil {
					return err
				}

				if err := os.WriteFile(publicOut, append(public, '\n'), 0o644); err != nil {
					return fmt.Errorf("write public key: %w", err)
				}
			}

			a.logger.Info("generated key", "alg", key.Algorithm, "kid", key.ID)

			return nil
		},
	}

	cmd.Flags().StringVarP(&alg, "alg", "a", string(jws.ES256), "Signature algorithm")
	cmd.Flags().StringVar(&privateOut, "out", "", "Private JWK output file (default stdout)")
	cmd.Flags().StringVar(&publicOut, "public", "", "Public JWK output file")

	return cmd
}
