package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/GriffinCanCode/BrandHub/backend/internal/sandbox/bridge"
	"github.com/GriffinCanCode/BrandHub/backend/internal/sandbox/catalog"
	"github.com/GriffinCanCode/BrandHub/backend/internal/sandbox/compositor"
	"github.com/GriffinCanCode/BrandHub/backend/internal/sandbox/host"
	"github.com/GriffinCanCode/BrandHub/backend/internal/sandbox/params"
	"github.com/GriffinCanCode/BrandHub/backend/internal/sandbox/runtime"
)

func listCmd(g *globals) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List active tools",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := g.context(cmd)
			defer cancel()

			resolver, err := g.resolver(ctx)
			if err != nil {
				return err
			}
			tools, err := resolver.ListActive(ctx)
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(cmd, tools)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "SLUG\tTITLE\tDESCRIPTION")
			for _, t := range tools {
				fmt.Fprintf(w, "%s\t%s\t%s\n", t.Slug, t.Title, t.Description)
			}
			return w.Flush()
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")
	return cmd
}

func composeCmd(g *globals) *cobra.Command {
	var pairs []string
	var publicAPI string
	cmd := &cobra.Command{
		Use:   "compose <slug>",
		Short: "Print the standalone document for a tool",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := g.context(cmd)
			defer cancel()

			resolver, err := g.resolver(ctx)
			if err != nil {
				return err
			}
			b, err := resolver.ResolveBySlug(ctx, args[0])
			if err != nil {
				return err
			}

			base := publicAPI
			if base == "" {
				base = g.api
			}
			src, err := bridge.Source(base)
			if err != nil {
				return err
			}
			lit, err := params.Serialize(params.Extract(queryFlag(pairs)))
			if err != nil {
				return err
			}
			_, err = fmt.Fprint(cmd.OutOrStdout(), compositor.Compose(*b, src, lit))
			return err
		},
	}
	cmd.Flags().StringArrayVarP(&pairs, "param", "p", nil, "Invocation parameter as key=value (repeatable)")
	cmd.Flags().StringVar(&publicAPI, "public-api", "", "apiBaseUrl exposed to the tool (defaults to --api)")
	return cmd
}

func renderCmd(g *globals) *cobra.Command {
	var pairs []string
	var scriptTimeout time.Duration
	var htmlOnly bool
	cmd := &cobra.Command{
		Use:   "render <slug>",
		Short: "Run a tool headlessly and print its document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := g.context(cmd)
			defer cancel()

			resolver, err := g.resolver(ctx)
			if err != nil {
				return err
			}
			b, err := resolver.ResolveBySlug(ctx, args[0])
			if err != nil {
				return err
			}
			api, err := g.client()
			if err != nil {
				return err
			}

			rt := runtime.DefaultConfig()
			rt.ScriptTimeout = scriptTimeout
			if api != nil {
				guest, err := api.ForGuests()
				if err != nil {
					return err
				}
				rt.Fetcher = guest
			}

			h := host.New(g.logger())
			if err := h.Attach(host.Frame{APIBaseURL: g.api, Runtime: rt}); err != nil {
				return err
			}
			defer h.Detach()

			if err := h.Load(ctx, b, params.Extract(queryFlag(pairs))); err != nil {
				return err
			}
			if err := h.WaitIdle(ctx); err != nil {
				return fmt.Errorf("tool did not settle: %w", err)
			}
			snap, err := h.Snapshot(ctx)
			if err != nil {
				return err
			}
			if htmlOnly {
				_, err = fmt.Fprintln(cmd.OutOrStdout(), snap.HTML)
				return err
			}
			return printJSON(cmd, snap)
		},
	}
	cmd.Flags().StringArrayVarP(&pairs, "param", "p", nil, "Invocation parameter as key=value (repeatable)")
	cmd.Flags().DurationVar(&scriptTimeout, "script-timeout", 5*time.Second, "Bound on each guest task")
	cmd.Flags().BoolVar(&htmlOnly, "html", false, "Print only the serialized document")
	return cmd
}

func validateCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <dir>",
		Short: "Check a catalog directory for invalid or duplicate bundles",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := g.context(cmd)
			defer cancel()

			static, err := catalog.Load(ctx, args[0], g.logger())
			if err != nil {
				return err
			}
			tools, err := static.ListActive(ctx)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%d active tools in %s\n", len(tools), args[0])
			return err
		},
	}
}
