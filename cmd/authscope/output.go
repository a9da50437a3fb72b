package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"gopkg.in/yaml.v3"

	"github.com/dgnsrekt/authscope/internal/inspect"
)

const (
	formatTable = "table"
	formatJSON  = "json"
	formatYAML  = "yaml"
)

func writeFormatted(w io.Writer, format string, v any) error {
	switch format {
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case formatYAML:
		doc, err := plainValue(v)
		if err != nil {
			return err
		}
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unsupported output format %q", format)
	}
}

// plainValue round-trips v through JSON so YAML output uses the same field
// names, and turns JSON numbers back into numbers instead of strings.
func plainValue(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var out any
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}
	return numbersIn(out), nil
}

func numbersIn(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, item := range t {
			t[k] = numbersIn(item)
		}
		return t
	case []any:
		for i, item := range t {
			t[i] = numbersIn(item)
		}
		return t
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}
		if f, err := t.Float64(); err == nil {
			return f
		}
		return t.String()
	default:
		return v
	}
}

func writeRequestTable(w io.Writer, views []inspect.RequestView) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "METHOD\tSTATUS\tHOST\tPATH\tAGE\tTOKEN\tEXP")
	for _, v := range views {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			v.Method, v.Status, v.Host, truncate(v.Path, 60), v.TimeAgo, tokenKind(v.Token), expiryOf(v.Token))
	}
	return tw.Flush()
}

func tokenKind(tv inspect.TokenView) string {
	switch {
	case tv.DecodeError != "":
		return "jwt (invalid)"
	case tv.Decoded != nil:
		if alg, ok := tv.Decoded.Header["alg"].(string); ok {
			return "jwt " + alg
		}
		return "jwt"
	default:
		return "opaque"
	}
}

func expiryOf(tv inspect.TokenView) string {
	if tv.Decoded == nil {
		return "-"
	}
	if exp, ok := tv.Decoded.Payload["exp"].(string); ok {
		return exp
	}
	return "-"
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
