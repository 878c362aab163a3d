// Package cmd implements the jwsdetached CLI commands.
package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/vitalvas/jwsdetached/jws"
)

// Version is set at build time.
var Version = "0.1.0"

const (
	outputText = "text"
	outputJSON = "json"
	outputYAML = "yaml"
)

var (
	okFmt  = color.New(color.FgGreen, color.Bold)
	errFmt = color.New(color.FgRed, color.Bold)
)

// app carries the resolved configuration into subcommands.
type app struct {
	cfg    Config
	logger *slog.Logger
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	a := &app{}

	var (
		keyPath  string
		output   string
		logLevel string
	)

	root := &cobra.Command{
		Use:   "jwsdetached",
		Short: "Sign and verify payloads with detached JSON Web Signatures",
		Long: `jwsdetached produces and checks RFC 7515 JSON Web Signatures with a
detached payload. The payload is streamed from a file or stdin and is never
held in memory; the signature is written as "header..signature".

Defaults are read from JWSDETACHED_KEY, JWSDETACHED_OUTPUT and
JWSDETACHED_LOG_LEVEL. Flags override them.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(nil)
			if err != nil {
				return err
			}

			flags := cmd.Flags()
			if flags.Changed("key") {
				cfg.Key = keyPath
			}
			if flags.Changed("output") {
				cfg.Output = output
			}
			if flags.Changed("log-level") {
				cfg.LogLevel = logLevel
			}

			if err := cfg.validate(); err != nil {
				return err
			}

			level, _ := parseLevel(cfg.LogLevel)

			a.cfg = cfg
			a.logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))

			return nil
		},
	}

	root.PersistentFlags().StringVarP(&keyPath, "key", "k", "", "JWK or JWK Set file (env JWSDETACHED_KEY)")
	root.PersistentFlags().StringVarP(&output, "output", "o", outputText, "Output format: text, json, yaml (env JWSDETACHED_OUTPUT)")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Log level: debug, info, warn, error (env JWSDETACHED_LOG_LEVEL)")

	root.AddCommand(
		newKeygenCmd(a),
		newSignCmd(a),
		newVerifyCmd(a),
	)

	return root
}

// Execute runs the root command.
func Execute() error {
	return executeCmd(NewRootCmd())
}

// executeCmd runs cmd and reports its error on stderr. A signature mismatch
// has already been reported by the verify command.
func executeCmd(cmd *cobra.Command) error {
	err := cmd.Execute()
	if err != nil && !errors.Is(err, jws.ErrSignatureInvalid) {
		errFmt.Fprintln(cmd.ErrOrStderr(), "Error:", err)
	}

	return err
}

// keyFile returns the configured key path.
func (a *app) keyFile() (string, error) {
	if a.cfg.Key == "" {
		return "", fmt.Errorf("no key: set --key or JWSDETACHED_KEY")
	}

	return a.cfg.Key, nil
}

// loadKeys reads the configured key file as a JWK or JWK Set.
func (a *app) loadKeys() (*jws.KeySet, error) {
	path, err := a.keyFile()
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read key: %w", err)
	}

	keys, err := jws.ParseJWKSet(data)
	if err != nil {
		return nil, fmt.Errorf("parse key %s: %w", path, err)
	}

	a.logger.Debug("loaded keys", "path", path, "count", len(keys.Keys()))

	return keys, nil
}

// openPayload opens the payload argument; "-" reads stdin.
func openPayload(cmd *cobra.Command, name string) (io.ReadCloser, error) {
	if name == "-" {
		return io.NopCloser(cmd.InOrStdin()), nil
	}

	f, err := os.Open(name)
	if err != nil {
		return nil, fmt.Errorf("open payload: %w", err)
	}

	return f, nil
}

// writeStructured writes v as indented JSON or YAML.
func writeStructured(w io.Writer, format string, v any) error {
	switch format {
	case outputJSON:
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		encoder.SetEscapeHTML(false)
		return encoder.Encode(v)
	case outputYAML:
		encoder := yaml.NewEncoder(w)
		encoder.SetIndent(2)
		if err := encoder.Encode(v); err != nil {
			return err
		}
		return encoder.Close()
	default:
		return fmt.Errorf("unsupported structured format %q", format)
	}
}

// headerNode renders a header as an ordered YAML mapping.
func headerNode(h *jws.Header) (*yaml.Node, error) {
	node := &yaml.Node{Kind: yaml.MappingNode}

	for _, name := range h.Names() {
		raw, _ := h.Raw(name)

		var value any
		if err := json.Unmarshal(raw, &value); err != nil {
			return nil, err
		}

		var valueNode yaml.Node
		if err := valueNode.Encode(value); err != nil {
			return nil, err
		}

		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: name},
			&valueNode,
		)
	}

	return node, nil
}
