package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func buildAppCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "app",
		Short: "Manage app registrations",
	}

	cmd.AddCommand(buildAppRegisterCommand())
	cmd.AddCommand(buildAppListCommand())
	cmd.AddCommand(buildAppUnregisterCommand())

	return cmd
}

func buildAppRegisterCommand() *cobra.Command {
	var uri string
	var force bool

	cmd := &cobra.Command{
		Use:   "register KIND NAME",
		Short: "Register a deployable app artifact under (kind, name)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := apiClient().RegisterApp(cmd.Context(), args[0], args[1], uri, force)
			if err != nil {
				return err
			}
			fmt.Printf("Registered %s app %q (%s)\n", app.Kind, app.Name, app.URI)
			return nil
		},
	}

	cmd.Flags().StringVar(&uri, "uri", "", `artifact URI, e.g. "docker:springcloudstream/http-source:1.0.0"`)
	cmd.Flags().BoolVar(&force, "force", false, "replace an existing registration")
	cmd.MarkFlagRequired("uri")

	return cmd
}

func buildAppListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List app registrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			apps, err := apiClient().ListApps(cmd.Context())
			if err != nil {
				return err
			}
			if len(apps) == 0 {
				fmt.Println("No apps registered")
				return nil
			}
			w := newTabWriter()
			fmt.Fprintln(w, "KIND\tNAME\tURI")
			for _, a := range apps {
				fmt.Fprintf(w, "%s\t%s\t%s\n", a.Kind, a.Name, a.URI)
			}
			return w.Flush()
		},
	}
}

func buildAppUnregisterCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "unregister KIND NAME",
		Short: "Remove an app registration",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := apiClient().UnregisterApp(cmd.Context(), args[0], args[1]); err != nil {
				return err
			}
			fmt.Printf("Unregistered %s app %q\n", args[0], args[1])
			return nil
		},
	}
}
