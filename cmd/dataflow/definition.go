package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// buildDefinitionCommand builds the stream, task, and standalone command
// trees, which differ only in the definition kind they manage.
func buildDefinitionCommand(kind, short string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   kind,
		Short: short,
	}

	cmd.AddCommand(buildDefinitionCreateCommand(kind))
	cmd.AddCommand(buildDefinitionListCommand(kind))
	cmd.AddCommand(buildDefinitionInfoCommand(kind))
	cmd.AddCommand(buildDefinitionDestroyCommand(kind))

	return cmd
}

func buildDefinitionCreateCommand(kind string) *cobra.Command {
	var definition string
	var force bool

	cmd := &cobra.Command{
		Use:   "create NAME",
		Short: fmt.Sprintf("Create a %s definition", kind),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			def, err := apiClient().CreateDefinition(cmd.Context(), kind, args[0], definition, force)
			if err != nil {
				return err
			}
			fmt.Printf("Created %s definition %q\n", kind, def.Name)
			return nil
		},
	}

	cmd.Flags().StringVar(&definition, "definition", "", kind+" definition text")
	cmd.Flags().BoolVar(&force, "force", false, "replace an existing definition")
	cmd.MarkFlagRequired("definition")

	return cmd
}

func buildDefinitionListCommand(kind string) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: fmt.Sprintf("List %s definitions", kind),
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			defs, err := apiClient().ListDefinitions(cmd.Context(), kind)
			if err != nil {
				return err
			}
			if len(defs) == 0 {
				fmt.Printf("No %s definitions\n", kind)
				return nil
			}
			w := newTabWriter()
			fmt.Fprintln(w, "NAME\tDEFINITION")
			for _, d := range defs {
				fmt.Fprintf(w, "%s\t%s\n", d.Name, d.DSL)
			}
			return w.Flush()
		},
	}
}

func buildDefinitionInfoCommand(kind string) *cobra.Command {
	return &cobra.Command{
		Use:   "info NAME",
		Short: fmt.Sprintf("Show one %s definition", kind),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			def, err := apiClient().GetDefinition(cmd.Context(), kind, args[0])
			if err != nil {
				return err
			}
			fmt.Printf("Name:       %s\n", def.Name)
			fmt.Printf("Definition: %s\n", def.DSL)
			return nil
		},
	}
}

func buildDefinitionDestroyCommand(kind string) *cobra.Command {
	return &cobra.Command{
		Use:   "destroy NAME",
		Short: fmt.Sprintf("Delete a %s definition", kind),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := apiClient().DeleteDefinition(cmd.Context(), kind, args[0]); err != nil {
				return err
			}
			fmt.Printf("Destroyed %s definition %q\n", kind, args[0])
			return nil
		},
	}
}
