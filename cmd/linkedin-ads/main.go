package main

import (
	"fmt"
	"os"
	"runtime"
	"text/tabwriter"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/ajitpratap0/linkedin-ads-tap/pkg/config"
	linkedinads "github.com/ajitpratap0/linkedin-ads-tap/pkg/connector/sources/linkedin_ads"
	jsonpool "github.com/ajitpratap0/linkedin-ads-tap/pkg/json"

	// Import all connectors to register them
	_ "github.com/ajitpratap0/linkedin-ads-tap/pkg/connector/destinations"
	_ "github.com/ajitpratap0/linkedin-ads-tap/pkg/connector/sources"
)

var version = linkedinads.Version

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &runOptions{}

	root := &cobra.Command{
		Use:   "linkedin-ads",
		Short: "Extract LinkedIn Ads account structure and analytics",
		Long: `linkedin-ads extracts accounts, campaign groups, campaigns, creatives,
video ads, account users and ad analytics from the LinkedIn Marketing API
and writes them as SCHEMA, RECORD and STATE messages.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&opts.configFile, "config", "c", "", "configuration file (YAML or JSON)")

	root.AddCommand(
		newVersionCmd(),
		newStreamsCmd(),
		newDiscoverCmd(),
		newSyncCmd(opts),
		newScheduleCmd(opts),
		newConfigCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, _ []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "linkedin-ads v%s\n", version)
			fmt.Fprintf(out, "Go version: %s\n", runtime.Version())
			fmt.Fprintf(out, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	}
}

func newStreamsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "streams",
		Short: "List the available streams",
		RunE: func(cmd *cobra.Command, _ []string) error {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "STREAM\tREPLICATION\tBOOKMARK\tPARENT")
			for _, d := range linkedinads.Streams() {
				parent := d.Parent
				if parent == "" {
					parent = "-"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", d.Name, d.Replication, d.BookmarkField, parent)
			}
			return w.Flush()
		},
	}
}

func newDiscoverCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "discover",
		Short: "Print the JSON schema of every stream, one per line",
		RunE: func(cmd *cobra.Command, _ []string) error {
			enc := jsonpool.NewLineEncoder(cmd.OutOrStdout())
			for _, d := range linkedinads.Streams() {
				if err := enc.Encode(d.Schema()); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func newConfigCmd() *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration files",
	}

	var force bool
	initCmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Write a starter configuration file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "linkedin-ads.yaml"
			if len(args) == 1 {
				path = args[0]
			}
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists, use --force to overwrite", path)
			}

			cfg := config.NewConfig()
			cfg.StartDate = "2024-01-01"
			cfg.Credentials.AccessToken = "${LINKEDIN_ACCESS_TOKEN}"
			cfg.State.URI = "state.json"
			for _, name := range []string{"accounts", "campaigns", "ad_analytics_by_campaign"} {
				cfg.Streams[name] = config.StreamSelection{Selected: true}
			}
			if err := config.Save(path, cfg); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
			return nil
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")

	configCmd.AddCommand(initCmd)
	return configCmd
}
