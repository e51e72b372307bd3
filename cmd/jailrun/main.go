// Command jailrun is an OCI Runtime Specification compliant runtime that
// launches containers as FreeBSD jails.
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"jailrun/internal/jaillog"
	"jailrun/internal/reexec"
	"jailrun/internal/runtime"
)

var (
	flagRoot        string
	flagLog         string
	flagLogFormat   string
	flagAudit       string
	flagTestingMode string
)

func main() {
	// Must run before any cobra parsing: a re-exec'd container-init or
	// exec-init process never reaches the normal CLI surface below.
	if reexec.Init() {
		return
	}

	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "jailrun:", err)
		if flagLog != "" {
			if logger, f, logErr := jaillog.New(jaillog.Options{Path: flagLog, Format: jaillog.Format(flagLogFormat)}); logErr == nil {
				logger.Error(err)
				f.Close()
			}
		}
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "jailrun",
		Short:         "An OCI runtime that launches containers as FreeBSD jails",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&flagRoot, "root", "/var/run/jailrun", "root directory for container state")
	root.PersistentFlags().StringVar(&flagLog, "log", "", "log file path (default: stderr)")
	root.PersistentFlags().StringVar(&flagLogFormat, "log-format", "text", "log format: text or json")
	root.PersistentFlags().StringVar(&flagAudit, "audit", "", "append a JSON-lines audit record of every command to this file")
	root.PersistentFlags().StringVar(&flagTestingMode, "testing", "", "internal testing mode, e.g. \"validation\"")

	root.AddCommand(
		newCreateCommand(),
		newStartCommand(),
		newKillCommand(),
		newDeleteCommand(),
		newStateCommand(),
		newExecCommand(),
		newListCommand(),
		newFeaturesCommand(),
	)
	return root
}

func newRuntime() (*runtime.Runtime, func(), error) {
	logger, f, err := jaillog.New(jaillog.Options{Path: flagLog, Format: jaillog.Format(flagLogFormat)})
	if err != nil {
		return nil, nil, err
	}
	audit, err := runtime.NewAuditLogger(flagAudit)
	if err != nil {
		return nil, nil, err
	}
	entry := jaillog.Component(logger, "runtime")
	rt := runtime.New(flagRoot, entry, audit)
	cleanup := func() {
		audit.Close()
		if f != nil {
			f.Close()
		}
	}
	return rt, cleanup, nil
}

func newCreateCommand() *cobra.Command {
	var opts runtime.CreateOptions
	cmd := &cobra.Command{
		Use:   "create <container-id>",
		Short: "Create a container",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.ID = args[0]
			opts.TestValidate = flagTestingMode == "validation"
			rt, cleanup, err := newRuntime()
			if err != nil {
				return err
			}
			defer cleanup()
			return rt.Create(opts)
		},
	}
	cmd.Flags().StringVar(&opts.Bundle, "bundle", ".", "path to the bundle directory containing config.json")
	cmd.Flags().StringVar(&opts.ConsoleSocket, "console-socket", "", "path to a socket which will receive the console pty descriptor")
	cmd.Flags().StringVar(&opts.PIDFile, "pid-file", "", "path to write the container process id")
	cmd.Flags().IntVar(&opts.PreserveFds, "preserve-fds", 0, "number of additional file descriptors above stdio to pass to the container")
	return cmd
}

func newStartCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "start <container-id>",
		Short: "Start a created container",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, cleanup, err := newRuntime()
			if err != nil {
				return err
			}
			defer cleanup()
			return rt.Start(args[0])
		},
	}
}

func newKillCommand() *cobra.Command {
	var all bool
	var pid int
	cmd := &cobra.Command{
		Use:   "kill <container-id> [signal]",
		Short: "Send a signal to a container",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if pid != 0 && all {
				return fmt.Errorf("--all and --pid are mutually exclusive")
			}
			sig := ""
			if len(args) > 1 {
				sig = args[1]
			}
			rt, cleanup, err := newRuntime()
			if err != nil {
				return err
			}
			defer cleanup()
			return rt.Kill(args[0], sig, all)
		},
	}
	cmd.Flags().BoolVarP(&all, "all", "a", false, "send the signal to all processes in the container")
	cmd.Flags().IntVarP(&pid, "pid", "p", 0, "process id; only checked against --all, the signal always goes to the container's entry process")
	return cmd
}

func newDeleteCommand() *cobra.Command {
	var opts runtime.DeleteOptions
	cmd := &cobra.Command{
		Use:   "delete <container-id>",
		Short: "Delete a container",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.ID = args[0]
			rt, cleanup, err := newRuntime()
			if err != nil {
				return err
			}
			defer cleanup()
			return rt.Delete(opts)
		},
	}
	cmd.Flags().BoolVar(&opts.Force, "force", false, "delete even if running")
	return cmd
}

func newStateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "state <container-id>",
		Short: "Get the state of a container",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, cleanup, err := newRuntime()
			if err != nil {
				return err
			}
			defer cleanup()
			doc, err := rt.State(args[0])
			if err != nil {
				return err
			}
			return printJSON(doc)
		},
	}
}

func newExecCommand() *cobra.Command {
	var opts runtime.ExecOptions
	cmd := &cobra.Command{
		Use:   "exec <container-id>",
		Short: "Execute a command in a running container",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.ID = args[0]
			opts.TestValidate = flagTestingMode == "validation"
			rt, cleanup, err := newRuntime()
			if err != nil {
				return err
			}
			defer cleanup()
			return rt.Exec(opts)
		},
	}
	cmd.Flags().StringVar(&opts.ProcessPath, "process", "", "path to a file containing the process json")
	cmd.MarkFlagRequired("process")
	cmd.Flags().StringVar(&opts.ConsoleSocket, "console-socket", "", "path to a socket which will receive the console pty descriptor")
	cmd.Flags().StringVar(&opts.PIDFile, "pid-file", "", "path to write the exec'd process id")
	cmd.Flags().BoolVarP(&opts.Detach, "detach", "d", false, "detach the command and execute in the background")
	cmd.Flags().IntVar(&opts.PreserveFds, "preserve-fds", 0, "number of additional file descriptors above stdio to pass to the command")
	cmd.Flags().BoolVar(&opts.TTY, "tty", false, "allocate a pty for the command, overriding process.json's terminal field")
	return cmd
}

func newListCommand() *cobra.Command {
	var format string
	var quiet bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List containers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, cleanup, err := newRuntime()
			if err != nil {
				return err
			}
			defer cleanup()
			entries, err := rt.List()
			if err != nil {
				return err
			}
			return printList(entries, format, quiet)
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "table", "output format: table or json")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "show only IDs")
	return cmd
}

func newFeaturesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "features",
		Short: "Get the enabled feature set of the runtime",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, cleanup, err := newRuntime()
			if err != nil {
				return err
			}
			defer cleanup()
			return printJSON(rt.GetFeatures())
		},
	}
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printList(entries []runtime.ListEntry, format string, quiet bool) error {
	if format == "json" {
		return printJSON(entries)
	}
	if quiet {
		for _, e := range entries {
			fmt.Println(e.ID)
		}
		return nil
	}
	fmt.Printf("%-24s %-10s %-8s %s\n", "ID", "PID", "STATUS", "BUNDLE")
	for _, e := range entries {
		fmt.Printf("%-24s %-10d %-8s %s\n", e.ID, e.PID, e.Status, e.Bundle)
	}
	return nil
}
