package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/dgnsrekt/authscope/internal/har"
	"github.com/dgnsrekt/authscope/internal/inspect"
	"github.com/dgnsrekt/authscope/internal/store"
)

func newHARCmd() *cobra.Command {
	var (
		output      string
		withHeaders bool
	)

	cmd := &cobra.Command{
		Use:   "har <file.har>",
		Short: "Print the requests of a HAR file that carry an Authorization header",
		Long: `Print every request in a HAR export that carries an Authorization header,
most recent first, with its token decoded.

Examples:
  authscope har session.har
  authscope har session.har -o yaml --headers`,
		Args:        cobra.ExactArgs(1),
		Annotations: map[string]string{"output": "stdout"},
		RunE: func(cmd *cobra.Command, args []string) error {
			recs, err := har.Load(args[0])
			if err != nil {
				return err
			}
			s := store.New()
			s.IngestBatch(recs)

			now := time.Now()
			views := make([]inspect.RequestView, 0, s.Size())
			for _, req := range s.List() {
				views = append(views, inspect.Build(req, now, withHeaders))
			}

			out := cmd.OutOrStdout()
			if output == formatTable {
				if len(views) == 0 {
					fmt.Fprintln(out, "No requests with an Authorization header.")
					return nil
				}
				return writeRequestTable(out, views)
			}
			return writeFormatted(out, output, views)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&output, "output", "o", formatTable, "Output format: table, json, yaml")
	f.BoolVar(&withHeaders, "headers", false, "Include request headers (json and yaml only)")
	return cmd
}
