package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/OrlandoBitencourt/pennant"
)

func newValidateCmd(a *app) *cobra.Command {
	var (
		patch     bool
		namespace string
	)

	cmd := &cobra.Command{
		Use:   "validate <file>",
		Short: "Decode a payload and report boundary errors",
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

			engine, err := a.newEngine(ns)
			if err != nil {
				return err
			}
			defer engine.Close(cmd.Context())

			entry, err := load(cmd.Context(), engine, ns, p.data, p.yaml, patch)
			if err != nil {
				return describe(err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "ok: namespace=%s version=%q flags=%d\n", ns, entry.Version, entry.FeatureCount)
			return nil
		},
	}

	cmd.Flags().BoolVar(&patch, "patch", false, "Treat the file as a patch payload")
	cmd.Flags().StringVar(&namespace, "namespace", "", "Namespace to validate against (default: the payload's namespace)")
	return cmd
}

// describe renders boundary errors with their kind and location.
func describe(err error) error {
	be, ok := pennant.AsBoundaryError(err)
	if !ok {
		return err
	}
	if be.Path != "" {
		return fmt.Errorf("invalid payload (%s at %s): %s", be.Kind, be.Path, be.Message)
	}
	return fmt.Errorf("invalid payload (%s): %s", be.Kind, be.Message)
}
