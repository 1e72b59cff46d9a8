package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/donovanmuller/spring-cloud-dataflow/internal/client"
)

var serverURL string

func buildRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "dataflow",
		Short: "Command line shell for the data flow server",
		Long: `dataflow manages definitions and deployments on a running data flow
server: register apps, create stream, task, and standalone definitions,
compose them into application groups, and deploy the groups as a unit.`,
		Version:      fmt.Sprintf("%s (built %s)", Version, BuildTime),
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:9393", "data flow server URL")

	rootCmd.AddCommand(buildGroupCommand())
	rootCmd.AddCommand(buildAppCommand())
	rootCmd.AddCommand(buildDefinitionCommand("stream", "Manage stream definitions"))
	rootCmd.AddCommand(buildDefinitionCommand("task", "Manage task definitions"))
	rootCmd.AddCommand(buildDefinitionCommand("standalone", "Manage standalone definitions"))
	rootCmd.AddCommand(buildAboutCommand())

	return rootCmd
}

// apiClient builds a client for the server named by the --server flag.
func apiClient() *client.Client {
	return client.NewClient(client.Config{BaseURL: serverURL})
}

// newTabWriter aligns columnar output on stdout.
func newTabWriter() *tabwriter.Writer {
	return tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
}

// printMembers writes one line per member dispatch result.
func printMembers(members []client.MemberResult) {
	w := newTabWriter()
	for _, m := range members {
		status := "ok"
		if m.Error != "" {
			status = "failed: " + m.Error
		}
		fmt.Fprintf(w, "  %s\t(%s)\t%s\n", m.Name, m.Kind, status)
	}
	w.Flush()
}

func buildAboutCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "about",
		Short: "Show data flow server information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			info, err := apiClient().About(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("%s %s\n", info.Name, info.Version)
			return nil
		},
	}
}
