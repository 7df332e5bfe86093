package commands

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// InteractiveCmd runs several commands against one store, which keeps the in-memory
// store alive between them
func InteractiveCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "interactive",
		Short: "Start an interactive session (connect once, run multiple commands)",
		Long: `Start an interactive session where you can run multiple commands on one connection.
The session will keep running until you type 'exit' or 'quit'.

Type 'as <user>' to change the acting user and 'help' to see available commands.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println("\nStarting interactive session...")
			fmt.Println("Type 'help' for available commands, 'exit' or 'quit' to leave")
			return runSession(app, cmd.Root(), os.Stdin, os.Stdout)
		},
	}
}

func runSession(app *AppContext, root *cobra.Command, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)

	for {
		prompt := "> "
		if app.As != "" {
			prompt = app.As + "> "
		}
		fmt.Fprint(out, prompt)

		if !scanner.Scan() {
			break
		}

		parts := strings.Fields(scanner.Text())
		if len(parts) == 0 {
			continue
		}

		switch parts[0] {
		case "exit", "quit":
			fmt.Fprintln(out, "Goodbye!")
			return nil
		case "help":
			printInteractiveHelp(out, root)
			continue
		case "as":
			if len(parts) != 2 {
				fmt.Fprintf(out, "Usage: as <user>\n\n")
				continue
			}
			app.SwitchActor(parts[1])
			if _, err := app.Actor(); err != nil {
				fmt.Fprintf(out, "Error: %v\n\n", err)
				app.SwitchActor("")
			}
			continue
		}

		if err := runLine(root, parts); err != nil {
			fmt.Fprintf(out, "Error: %v\n\n", err)
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading input: %w", err)
	}
	return nil
}

// runLine executes the RunE of the command named by parts directly, which skips
// PersistentPreRunE so the app is not initialised again
func runLine(root *cobra.Command, parts []string) error {
	target, rest, err := root.Find(parts)
	if err != nil || target == root {
		return fmt.Errorf("unknown command: %s (type 'help' for available commands)", parts[0])
	}
	if target.Name() == "interactive" {
		return fmt.Errorf("already in an interactive session")
	}
	if target.RunE == nil {
		return fmt.Errorf("%s needs a subcommand: %s", target.Name(), strings.Join(subcommandNames(target), ", "))
	}

	if name := sessionFlag(root, rest); name != "" {
		if name == "as" {
			return fmt.Errorf("--as cannot be used inside a session, use 'as <user>' to change the acting user")
		}
		return fmt.Errorf("--%s is fixed for the session", name)
	}

	// root flags hold session state, only the command's own flags start over
	target.Flags().VisitAll(func(flag *pflag.Flag) {
		if root.PersistentFlags().Lookup(flag.Name) != nil {
			return
		}
		flag.Changed = false
		if sv, ok := flag.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
			return
		}
		_ = flag.Value.Set(flag.DefValue)
	})

	if err := target.ParseFlags(rest); err != nil {
		return fmt.Errorf("error parsing flags: %w", err)
	}
	args := target.Flags().Args()
	if target.Args != nil {
		if err := target.Args(target, args); err != nil {
			return err
		}
	}
	return target.RunE(target, args)
}

// sessionFlag returns the name of the first root persistent flag in args
func sessionFlag(root *cobra.Command, args []string) string {
	persistent := root.PersistentFlags()
	for _, arg := range args {
		if arg == "--" {
			break
		}
		switch {
		case strings.HasPrefix(arg, "--"):
			name, _, _ := strings.Cut(arg[2:], "=")
			if persistent.Lookup(name) != nil {
				return name
			}
		case strings.HasPrefix(arg, "-") && len(arg) > 1:
			if flag := persistent.ShorthandLookup(arg[1:2]); flag != nil {
				return flag.Name
			}
		}
	}
	return ""
}

func subcommandNames(cmd *cobra.Command) []string {
	var names []string
	for _, sub := range cmd.Commands() {
		names = append(names, sub.Name())
	}
	sort.Strings(names)
	return names
}

func printInteractiveHelp(out io.Writer, root *cobra.Command) {
	fmt.Fprintln(out, "\nAvailable commands:")

	var lines []string
	var walk func(cmd *cobra.Command, prefix string)
	walk = func(cmd *cobra.Command, prefix string) {
		for _, sub := range cmd.Commands() {
			switch sub.Name() {
			case "interactive", "completion", "help":
				continue
			}
			if sub.HasSubCommands() {
				walk(sub, prefix+sub.Name()+" ")
				continue
			}
			lines = append(lines, fmt.Sprintf("  %-60s %s", prefix+sub.Use, sub.Short))
		}
	}
	walk(root, "")
	sort.Strings(lines)
	for _, line := range lines {
		fmt.Fprintln(out, line)
	}

	fmt.Fprintln(out, "\n  as <user>                                                    Change the acting user")
	fmt.Fprintln(out, "  help                                                         Show this help message")
	fmt.Fprintln(out, "  exit, quit                                                   Exit the interactive session")
}
