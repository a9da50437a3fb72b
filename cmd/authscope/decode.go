package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dgnsrekt/authscope/internal/inspect"
	"github.com/dgnsrekt/authscope/internal/tokens"
)

func newDecodeCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "decode [token|-]",
		Short: "Decode a JWT without verifying its signature",
		Long: `Decode the header and payload of a JWT. The argument may be a bare token
or a full Authorization header value; "-" or no argument reads stdin.
Timestamp claims are shown with their local time, and exp with whether
it has passed.

Examples:
  authscope decode eyJhbGciOi...
  pbpaste | authscope decode -o yaml`,
		Args:        cobra.MaximumNArgs(1),
		Annotations: map[string]string{"output": "stdout"},
		RunE: func(cmd *cobra.Command, args []string) error {
			value := "-"
			if len(args) == 1 {
				value = args[0]
			}
			if value == "-" {
				data, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("read token: %w", err)
				}
				value = string(data)
			}
			value = strings.TrimSpace(value)
			if value == "" {
				return errors.New("no token given")
			}

			raw := tokens.ExtractBearerToken(value)
			decoded, err := tokens.Decode(raw)
			if err != nil {
				return errors.New(inspect.DecodeErrorMessage(err))
			}
			decoded.Payload = tokens.AnnotateTimestampClaims(decoded.Payload)

			result := struct {
				Header     map[string]any `json:"header"`
				Payload    map[string]any `json:"payload"`
				InspectURL string         `json:"inspect_url"`
			}{decoded.Header, decoded.Payload, tokens.InspectURL(raw)}
			return writeFormatted(cmd.OutOrStdout(), output, result)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", formatJSON, "Output format: json, yaml")
	return cmd
}
