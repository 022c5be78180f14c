package cmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

// Setup help command
func setupHelpCommand(rootCmd *cobra.Command) {
	defaultHelp := rootCmd.HelpFunc()
	rootCmd.SetHelpFunc(func(cmd *cobra.Command, args []string) {
		if cmd != cmd.Root() {
			defaultHelp(cmd, args)
			return
		}
		printRootHelpOrdered(cmd)
	})
	rootCmd.SetHelpCommand(&cobra.Command{
		Use:   "help [command]",
		Short: "Show help information",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				target, _, err := cmd.Root().Find(args)
				if err != nil {
					return err
				}
				return target.Help()
			}
			printRootHelpOrdered(cmd.Root())
			return nil
		},
	})
}

// printRootHelpOrdered prints the root help with commands ordered by a custom priority
func printRootHelpOrdered(cmd *cobra.Command) {
	// Priority order for top-level commands
	priority := []string{"transcode", "remux", "probe", "version", "completion", "help"}
	priorityIndex := map[string]int{}
	for i, name := range priority {
		priorityIndex[name] = i
	}
	out := cmd.OutOrStdout()

	// Header
	if cmd.Long != "" {
		fmt.Fprintln(out, cmd.Long)
	} else if cmd.Short != "" {
		fmt.Fprintln(out, cmd.Short)
	}

	fmt.Fprintln(out, "\nUsage:")
	fmt.Fprintf(out, "  %s [flags]\n", cmd.Name())
	fmt.Fprintf(out, "  %s [command]\n", cmd.Name())

	// Collect and sort available commands
	commands := []*cobra.Command{}
	for _, c := range cmd.Commands() {
		if !c.IsAvailableCommand() || c.Hidden {
			continue
		}
		commands = append(commands, c)
	}

	// Custom sort by priority, then by name
	sort.SliceStable(commands, func(i, j int) bool {
		pi, okI := priorityIndex[commands[i].Name()]
		pj, okJ := priorityIndex[commands[j].Name()]
		switch {
		case okI && okJ:
			return pi < pj
		case okI:
			return true
		case okJ:
			return false
		}
		return commands[i].Name() < commands[j].Name()
	})

	fmt.Fprintln(out, "\nAvailable Commands:")
	for _, c := range commands {
		fmt.Fprintf(out, "  %-14s %s\n", c.Name(), c.Short)
	}

	fmt.Fprintln(out, "\nFlags:")
	fmt.Fprint(out, cmd.Flags().FlagUsages())

	fmt.Fprintf(out, "\nUse \"%s [command] --help\" for more information about a command.\n", cmd.Name())
}
