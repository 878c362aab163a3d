package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vitalvas/jwsdetached/jws"
)

func newSignCmd(a *app) *cobra.Command {
	var (
		alg    string
		kid    string
		claims []string
		out    string
	)

	cmd := &cobra.Command{
		Use:   "sign PAYLOAD",
		Short: "Sign a payload and print the detached JWS",
		Long: `Stream PAYLOAD ("-" for stdin) through the signature and write the
detached compact serialization "header..signature".

The algorithm defaults to the alg of the key. Extra protected header
parameters are added with --claim name=value; values that parse as JSON are
kept as JSON, anything else is a string.`,
		Example: `  jwsdetached sign --key signer.jwk --claim custom=value payload.bin > payload.jws
  tar c dir | jwsdetached sign --key signer.jwk -`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			keys, err := a.loadKeys()
			if err != nil {
				return err
			}

			key, err := selectKey(keys, kid)
			if err != nil {
				return err
			}

			header, err := buildHeader(claims)
			if err != nil {
				return err
			}

			if key.ID != "" {
				if err := header.Set(jws.HeaderKeyID, key.ID); err != nil {
					return err
				}
			}

			algorithm := jws.Algorithm(alg)
			if algorithm == "" {
				algorithm = key.Algorithm
			}

			if algorithm == "" {
				return fmt.Errorf("key %q has no alg: set --alg", key.ID)
			}

			payload, err := openPayload(cmd, args[0])
			if err != nil {
				return err
			}
			defer payload.Close()

			dst := cmd.OutOrStdout()

			if out != "" {
				f, err := os.Create(out)
				if err != nil {
					return fmt.Errorf("create output: %w", err)
				}
				defer f.Close()

				dst = f
			}

			w, err := jws.NewWriter(dst, jws.WriterConfig{
				Header:    header,
				Algorithm: algorithm,
				Signers:   jws.NewKeySet(key).SignerFactory(),
				LeaveOpen: true,
			})
			if err != nil {
				return err
			}
			defer w.Close()

			n, err := io.Copy(w, payload)
			if err != nil {
				return fmt.Errorf("read payload: %w", err)
			}

			if err := w.Finish(); err != nil {
				return err
			}

			if _, err := fmt.Fprintln(dst); err != nil {
				return err
			}

			a.logger.Info("signed payload", "alg", algorithm, "kid", key.ID, "bytes", n)

			return nil
		},
	}

	cmd.Flags().StringVarP(&alg, "alg", "a", "", "Signature algorithm (default: alg of the key)")
	cmd.Flags().StringVar(&kid, "kid", "", "Key ID to sign with when the key file holds a set")
	cmd.Flags().StringArrayVarP(&claims, "claim", "c", nil, "Protected header parameter name=value (repeatable)")
	cmd.Flags().StringVar(&out, "out", "", "Output file (default stdout)")

	return cmd
}

// selectKey picks the key with the given ID, or the first key when id is
// empty.
func selectKey(keys *jws.KeySet, id string) (jws.Key, error) {
	all := keys.Keys()
	if len(all) == 0 {
		return jws.Key{}, fmt.Errorf("key file holds no keys")
	}

	if id == "" {
		return all[0], nil
	}

	for _, k := range all {
		if k.ID == id {
			return k, nil
		}
	}

	return jws.Key{}, fmt.Errorf("%w: kid %q", jws.ErrKeyNotFound, id)
}

// buildHeader turns name=value pairs into a protected header.
func buildHeader(claims []string) (*jws.Header, error) {
	header := jws.NewHeader()

	for _, claim := range claims {
		name, value, ok := strings.Cut(claim, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid claim %q: want name=value", claim)
		}

		if name == jws.HeaderAlgorithm {
			return nil, fmt.Errorf("invalid claim %q: use --alg", claim)
		}

		if json.Valid([]byte(value)) {
			if err := header.SetRaw(name, json.RawMessage(value)); err != nil {
				return nil, err
			}

			continue
		}

		if err := header.Set(name, value); err != nil {
			return nil, err
		}
	}

	return header, nil
}
