// Command sandboxctl inspects tool bundles without running the server.
//
// Bundles come from a catalog directory (--catalog) or the asset API
// (--api). Tools can be listed, composed into the standalone document the
// server would serve, or rendered headlessly to see what a guest script
// does to its document.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/BrandHub/backend/internal/assetapi"
	"github.com/GriffinCanCode/BrandHub/backend/internal/infrastructure/logging"
	"github.com/GriffinCanCode/BrandHub/backend/internal/sandbox/bundle"
	"github.com/GriffinCanCode/BrandHub/backend/internal/sandbox/catalog"
)

const defaultAPI = "http://localhost:3001/api"

// globals are the persistent flags shared by every command.
type globals struct {
	catalog string
	api     string
	token   string
	timeout time.Duration
	verbose bool
}

func main() {
	g := &globals{}
	rootCmd := &cobra.Command{
		Use:           "sandboxctl",
		Short:         "Inspect and render BrandHub tool bundles",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&g.catalog, "catalog", "", "Catalog directory (overrides --api)")
	rootCmd.PersistentFlags().StringVar(&g.api, "api", envOr("ASSET_API_URL", defaultAPI), "Asset API base URL")
	rootCmd.PersistentFlags().StringVar(&g.token, "token", os.Getenv("ASSET_API_TOKEN"), "Asset API bearer token")
	rootCmd.PersistentFlags().DurationVar(&g.timeout, "timeout", 30*time.Second, "Overall command timeout")
	rootCmd.PersistentFlags().BoolVarP(&g.verbose, "verbose", "v", false, "Debug logging to stderr")

	rootCmd.AddCommand(
		listCmd(g),
		composeCmd(g),
		renderCmd(g),
		validateCmd(g),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func (g *globals) logger() *zap.Logger {
	if !g.verbose {
		return zap.NewNop()
	}
	return logging.MustNew(logging.Config{
		Level:       "debug",
		Development: true,
		OutputPaths: []string{"stderr"},
	}).Logger
}

func (g *globals) context(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), g.timeout)
}

// client returns the asset API client, or nil when working from a catalog
// without one.
func (g *globals) client() (*assetapi.Client, error) {
	if g.api == "" {
		return nil, nil
	}
	return assetapi.New(assetapi.Options{
		BaseURL:   g.api,
		Token:     g.token,
		UserAgent: "sandboxctl",
		Logger:    g.logger(),
	})
}

func (g *globals) resolver(ctx context.Context) (bundle.Resolver, error) {
	if g.catalog != "" {
		return catalog.Load(ctx, g.catalog, g.logger())
	}
	api, err := g.client()
	if err != nil {
		return nil, err
	}
	if api == nil {
		return nil, errors.New("either --catalog or --api is required")
	}
	return bundle.NewAPIResolver(api, g.logger()), nil
}

func printJSON(cmd *cobra.Command, v any) error {
	out, err := sonic.ConfigStd.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return err
}

// queryFlag joins repeated --param k=v values into a query string.
func queryFlag(pairs []string) string {
	return strings.Join(pairs, "&")
}
