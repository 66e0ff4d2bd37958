package cmd

import (
	"fmt"
	"time"

	"github.com/Jeffail/gabs/v2"
	"github.com/go-resty/resty/v2"
	"github.com/spf13/cobra"

	"gantry/runtime"
)

var routesServerURL string

var routesCmd = &cobra.Command{
	Use:   "routes",
	Short: "Show the plugin manifest of a running server",
	Long: `Routes fetches the manifest from a server started with --debug and
prints what was registered, at which prefix and order.

Example:
  gantry routes
  gantry routes --server http://localhost:9090
`,
	Args: cobra.NoArgs,
	RunE: runRoutes,
}

func init() {
	routesCmd.Flags().StringVarP(&routesServerURL, "server", "s", "http://localhost:8080", "Base URL of the running server")
}

func runRoutes(_ *cobra.Command, _ []string) error {
	client := resty.New().SetTimeout(5 * time.Second)

	resp, err := client.R().Get(routesServerURL + runtime.ManifestRoute)
	if err != nil {
		return fmt.Errorf("failed to reach server: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("server returned %s (is it running with --debug?)", resp.Status())
	}

	doc, err := gabs.ParseJSON(resp.Body())
	if err != nil {
		return fmt.Errorf("failed to parse manifest: %w", err)
	}

	fmt.Println(doc.StringIndent("", "  "))
	return nil
}
