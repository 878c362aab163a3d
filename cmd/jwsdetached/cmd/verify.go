package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/vitalvas/jwsdetached/jws"
)

type jsonResult struct {
	Valid  bool            `json:"valid"`
	Header json.RawMessage `json:"header,omitempty"`
}

type yamlResult struct {
	Valid  bool       `yaml:"valid"`
	Header *yaml.Node `yaml:"header,omitempty"`
}

func newVerifyCmd(a *app) *cobra.Command {
	var jwsPath string

	cmd := &cobra.Command{
		Use:   "verify PAYLOAD",
		Short: "Verify a detached JWS against a payload",
		Long: `Stream PAYLOAD ("-" for stdin) through the verification of the detached
JWS read from --jws. The key file may hold a single JWK or a JWK Set; the
key is chosen by the alg and kid header parameters.

On success the protected header is printed. A signature mismatch exits
non-zero.`,
		Example: `  jwsdetached verify --key verifier.jwk --jws payload.jws payload.bin
  jwsdetached verify --key keys.json --jws payload.jws -o yaml payload.bin`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			keys, err := a.loadKeys()
			if err != nil {
				return err
			}

			compact, err := os.ReadFile(jwsPath)
			if err != nil {
				return fmt.Errorf("read jws: %w", err)
			}

			reader, err := jws.NewReader(bytes.TrimSpace(compact), keys.VerifierFactory())
			if err != nil {
				return err
			}
			defer reader.Close()

			payload, err := openPayload(cmd, args[0])
			if err != nil {
				return err
			}
			defer payload.Close()

			n, err := io.Copy(reader, payload)
			if err != nil {
				return fmt.Errorf("read payload: %w", err)
			}

			header, err := reader.Verify()
			if err != nil {
				return err
			}

			a.logger.Info("verified payload", "valid", header != nil, "bytes", n)

			if err := a.printResult(cmd, header); err != nil {
				return err
			}

			if header == nil {
				return jws.ErrSignatureInvalid
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&jwsPath, "jws", "", "Detached JWS file")
	_ = cmd.MarkFlagRequired("jws")

	return cmd
}

// printResult reports a verification outcome; header is nil on mismatch.
func (a *app) printResult(cmd *cobra.Command, header *jws.Header) error {
	out := cmd.OutOrStdout()

	switch a.cfg.Output {
	case outputJSON:
		result := jsonResult{Valid: header != nil}

		if header != nil {
			raw, err := header.MarshalJSON()
			if err != nil {
				return err
			}

			result.Header = raw
		}

		return writeStructured(out, outputJSON, result)

	case outputYAML:
		result := yamlResult{Valid: header != nil}

		if header != nil {
			node, err := headerNode(header)
			if err != nil {
				return err
			}

			result.Header = node
		}

		return writeStructured(out, outputYAML, result)

	default:
		if header == nil {
			errFmt.Fprintln(cmd.ErrOrStderr(), "signature invalid")
			return nil
		}

		raw, err := header.MarshalJSON()
		if err != nil {
			return err
		}

		okFmt.Fprintln(out, "signature valid")
		_, err = fmt.Fprintln(out, string(raw))

		return err
	}
}
