package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/OrlandoBitencourt/pennant"
	"github.com/OrlandoBitencourt/pennant/internal/server"
)

func newExplainCmd(a *app) *cobra.Command {
	var (
		key       string
		namespace string
		req       server.ContextRequest
		axes      []string
	)

	cmd := &cobra.Command{
		Use:   "explain <file>",
		Short: "Resolve one toggle and print the decision",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := readPayload(args[0])
			if err != nil {
				return err
			}
			ns, err := p.namespace(namespace)
			if err != nil {
				return describe(err)
			}

			req.Axes, err = parseAxes(axes)
			if err != nil {
				return err
			}
			evalCtx, err := req.ToContext()
			if err != nil {
				return err
			}

			engine, err := a.newEngine(ns)
			if err != nil {
				return err
			}
			defer engine.Close(cmd.Context())

			if _, err := load(cmd.Context(), engine, ns, p.data, p.yaml, false); err != nil {
				return describe(err)
			}

			decision, err := engine.Explain(cmd.Context(), pennant.NewToggleID(ns, key), evalCtx)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(decision)
		},
	}

	cmd.Flags().StringVar(&key, "key", "", "Toggle key to resolve")
	cmd.Flags().StringVar(&namespace, "namespace", "", "Namespace (default: the payload's namespace)")
	cmd.Flags().StringVar(&req.StableID, "id", "", "Stable id used for bucketing")
	cmd.Flags().StringVar(&req.Locale, "locale", "", "Locale tag")
	cmd.Flags().StringVar(&req.Platform, "platform", "", "Platform tag")
	cmd.Flags().StringVar(&req.Version, "version", "", "Application version (major[.minor[.patch]])")
	cmd.Flags().StringArrayVar(&axes, "axis", nil, "Axis values as name=v1,v2 (repeatable)")
	_ = cmd.MarkFlagRequired("key")
	return cmd
}

// parseAxes turns name=v1,v2 arguments into an axis map. Repeating a name
// adds to its set.
func parseAxes(args []string) (map[string][]string, error) {
	if len(args) == 0 {
		return nil, nil
	}
	axes := make(map[string][]string, len(args))
	for _, arg := range args {
		name, values, ok := strings.Cut(arg, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid --axis %q: want name=v1,v2", arg)
		}
		for v := range strings.SplitSeq(values, ",") {
			if v = strings.TrimSpace(v); v != "" {
				axes[name] = append(axes[name], v)
			}
		}
	}
	return axes, nil
}
