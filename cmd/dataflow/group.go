package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func buildGroupCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "group",
		Short: "Manage application groups",
	}

	cmd.AddCommand(buildGroupCreateCommand())
	cmd.AddCommand(buildGroupListCommand())
	cmd.AddCommand(buildGroupInfoCommand())
	cmd.AddCommand(buildGroupDeployCommand())
	cmd.AddCommand(buildGroupRedeployCommand())
	cmd.AddCommand(buildGroupUndeployCommand())
	cmd.AddCommand(buildGroupUndeployAllCommand())
	cmd.AddCommand(buildGroupDestroyCommand())
	cmd.AddCommand(buildGroupDestroyAllCommand())
	cmd.AddCommand(buildGroupStateCommand())
	cmd.AddCommand(buildGroupImportCommand())

	return cmd
}

func buildGroupCreateCommand() *cobra.Command {
	var definition string
	var force, deploy bool

	cmd := &cobra.Command{
		Use:   "create NAME",
		Short: "Create an application group definition",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			created, err := apiClient().CreateGroup(cmd.Context(), args[0], definition, force, deploy)
			if err != nil {
				return err
			}
			fmt.Printf("Created application group %q (state: %s)\n", created.Name, created.State)
			if created.Deployment != nil {
				fmt.Printf("Deployment ID: %s\n", created.Deployment.DeploymentID)
				printMembers(created.Deployment.Members)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&definition, "definition", "", `group definition, e.g. "myHttp:stream & myHdfs:standalone"`)
	cmd.Flags().BoolVar(&force, "force", false, "replace an existing group with the same name")
	cmd.Flags().BoolVar(&deploy, "deploy", false, "deploy the group after creating it")
	cmd.MarkFlagRequired("definition")

	return cmd
}

func buildGroupListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List application groups with their deployment states",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			groups, err := apiClient().ListGroups(cmd.Context())
			if err != nil {
				return err
			}
			if len(groups) == 0 {
				fmt.Println("No application groups defined")
				return nil
			}
			w := newTabWriter()
			fmt.Fprintln(w, "NAME\tSTATE\tDEFINITION")
			for _, g := range groups {
				fmt.Fprintf(w, "%s\t%s\t%s\n", g.Name, g.State, g.DSL)
			}
			return w.Flush()
		},
	}
}

func buildGroupInfoCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "info NAME",
		Short: "Show one application group",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			group, err := apiClient().GetGroup(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Printf("Name:       %s\n", group.Name)
			fmt.Printf("State:      %s\n", group.State)
			fmt.Printf("Definition: %s\n", group.DSL)
			fmt.Println("Members:")
			w := newTabWriter()
			for _, m := range group.Members {
				fmt.Fprintf(w, "  %s\t(%s)\n", m.Name, m.Kind)
			}
			return w.Flush()
		},
	}
}

func buildGroupDeployCommand() *cobra.Command {
	var properties string

	cmd := &cobra.Command{
		Use:   "deploy NAME",
		Short: "Deploy every member of an application group",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dep, err := apiClient().DeployGroup(cmd.Context(), args[0], properties)
			if err != nil {
				return err
			}
			fmt.Printf("Deployed application group %q (deployment ID %s)\n", dep.Name, dep.DeploymentID)
			printMembers(dep.Members)
			return nil
		},
	}

	cmd.Flags().StringVar(&properties, "properties", "",
		`deployment properties, comma-delimited key=value pairs scoped by "app.<member>." or "app.*."`)

	return cmd
}

func buildGroupRedeployCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "redeploy NAME",
		Short: "Undeploy and deploy an application group again",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dep, err := apiClient().RedeployGroup(cmd.Context(), args[0], "")
			if err != nil {
				return err
			}
			fmt.Printf("Redeployed application group %q (deployment ID %s)\n", dep.Name, dep.DeploymentID)
			printMembers(dep.Members)
			return nil
		},
	}
}

func buildGroupUndeployCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "undeploy NAME",
		Short: "Undeploy every member of an application group",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dep, err := apiClient().UndeployGroup(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if len(dep.Members) == 0 {
				fmt.Printf("Application group %q has no active deployment\n", args[0])
				return nil
			}
			fmt.Printf("Undeployed application group %q\n", args[0])
			printMembers(dep.Members)
			return nil
		},
	}
}

func buildGroupUndeployAllCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "undeploy-all",
		Short: "Undeploy every application group",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := apiClient().UndeployAllGroups(cmd.Context()); err != nil {
				return err
			}
			fmt.Println("Undeployed all application groups")
			return nil
		},
	}
}

func buildGroupDestroyCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "destroy NAME",
		Short: "Undeploy an application group and delete it with its member definitions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := apiClient().DestroyGroup(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Printf("Destroyed application group %q\n", args[0])
			return nil
		},
	}
}

func buildGroupDestroyAllCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "destroy-all",
		Short: "Destroy every application group",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := apiClient().DestroyAllGroups(cmd.Context()); err != nil {
				return err
			}
			fmt.Println("Destroyed all application groups")
			return nil
		},
	}
}

func buildGroupStateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "state NAME",
		Short: "Show an application group's aggregate deployment state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			state, err := apiClient().GetDeploymentState(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Println(state.State)
			return nil
		},
	}
}

func buildGroupImportCommand() *cobra.Command {
	var uri string
	var force bool

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import apps, definitions, and groups from a descriptor artifact",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			report, err := apiClient().ImportDescriptor(cmd.Context(), uri, force)
			if err != nil {
				return err
			}
			fmt.Printf("Imported %d apps, %d definitions, %d groups\n",
				report.Apps, report.Definitions, report.Groups)
			return nil
		},
	}

	cmd.Flags().StringVar(&uri, "uri", "", "descriptor artifact URI (YAML file or zip)")
	cmd.Flags().BoolVar(&force, "force", false, "replace existing apps, definitions, and groups")
	cmd.MarkFlagRequired("uri")

	return cmd
}
