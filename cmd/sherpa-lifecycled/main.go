// sherpa-lifecycled — local/manual wiring for the lab lifecycle engine.
//
// It loads a manifest, connects every backend collaborator from
// /etc/sherpa/config.json, and drives one lifecycle operation to
// completion. The out-of-scope RPC/WebSocket transport would call into
// pkg/sherpa/lifecycle and pkg/sherpa/rpcapi the same way.
//
// Usage:
//
//	sherpa-lifecycled up <lab-id> <manifest-path>
//	sherpa-lifecycled inspect <lab-id>
//	sherpa-lifecycled destroy <lab-id>
//	sherpa-lifecycled clean <lab-id>
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sherpa-labs/sherpa/pkg/cli"
	"github.com/sherpa-labs/sherpa/pkg/sherpa/artifact"
	"github.com/sherpa-labs/sherpa/pkg/sherpa/backend/dockerdriver"
	"github.com/sherpa-labs/sherpa/pkg/sherpa/backend/hostnet"
	sherpalibvirt "github.com/sherpa-labs/sherpa/pkg/sherpa/backend/libvirt"
	"github.com/sherpa-labs/sherpa/pkg/sherpa/catalog"
	"github.com/sherpa-labs/sherpa/pkg/sherpa/config"
	"github.com/sherpa-labs/sherpa/pkg/sherpa/lifecycle"
	"github.com/sherpa-labs/sherpa/pkg/sherpa/manifest"
	"github.com/sherpa-labs/sherpa/pkg/sherpa/registry"
	"github.com/sherpa-labs/sherpa/pkg/sherpa/templates"
	"github.com/sherpa-labs/sherpa/pkg/util"
	"github.com/sherpa-labs/sherpa/pkg/version"
)

var (
	configPath string
	owner      string
	admin      bool
	verbose    bool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, cli.Red(err.Error()))
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:               "sherpa-lifecycled",
	Short:             "Drive the Sherpa lab lifecycle engine",
	SilenceUsage:      true,
	SilenceErrors:     true,
	CompletionOptions: cobra.CompletionOptions{HiddenDefaultCmd: true},
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if verbose {
			util.SetLogLevel("debug")
		} else {
			util.SetLogLevel("info")
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config path (default /etc/sherpa/config.json)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(
		newUpCmd(),
		newInspectCmd(),
		newDestroyCmd(),
		newCleanCmd(),
		newVersionCmd(),
	)
}

// loadSettings resolves --config (or the default path) into Settings.
func loadSettings() (*config.Settings, error) {
	if configPath != "" {
		return config.LoadFrom(configPath)
	}
	return config.Load()
}

// buildEngine connects every collaborator an Engine needs. A failure to
// reach libvirtd or the Docker daemon aborts it, so every subcommand that
// builds an Engine (inspect included) needs both to be reachable.
func buildEngine(ctx context.Context, settings *config.Settings) (*lifecycle.Engine, error) {
	reg := registry.New()
	cat := catalog.New(settings.CatalogAddr)

	lv, err := sherpalibvirt.Dial(ctx, settings.LibvirtSocket)
	if err != nil {
		return nil, fmt.Errorf("connect libvirt: %w", err)
	}
	dk, err := dockerdriver.New(settings.DockerHost)
	if err != nil {
		return nil, fmt.Errorf("connect docker: %w", err)
	}
	hn := hostnet.New()

	renderer := templates.NewDirRenderer(settings.TemplatesDir())
	builder := artifact.NewBuilder(renderer)

	return lifecycle.New(reg, cat, lv, dk, hn, builder, settings), nil
}

func newUpCmd() *cobra.Command {
	var writeTestbed bool
	cmd := &cobra.Command{
		Use:   "up <lab-id> <manifest-path>",
		Short: "Validate a manifest and bring a lab up",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			labID, manifestPath := args[0], args[1]
			m, err := manifest.Load(manifestPath)
			if err != nil {
				return fmt.Errorf("load manifest: %w", err)
			}
			settings, err := loadSettings()
			if err != nil {
				return fmt.Errorf("load settings: %w", err)
			}
			ctx := context.Background()
			engine, err := buildEngine(ctx, settings)
			if err != nil {
				return err
			}

			req := lifecycle.UpRequest{LabID: labID, Owner: owner, Manifest: m, WriteTestbed: writeTestbed}
			result, err := engine.Up(ctx, req, func(step string) {
				fmt.Fprintln(os.Stderr, cli.Dim("-> "+step))
			})
			if err != nil {
				return err
			}
			printUpResult(result)
			return nil
		},
	}
	cmd.Flags().StringVar(&owner, "owner", "", "lab owner recorded in the catalog")
	cmd.Flags().BoolVar(&writeTestbed, "testbed", false, "also write a pyATS testbed.yaml")
	return cmd
}

func printUpResult(r *lifecycle.UpResult) {
	fmt.Printf("%s  state=%s  mgmt=%s  gateway=%s\n", cli.Bold(r.LabID), r.State, r.MgmtNet, r.Gateway)

	t := cli.NewTable("NODE", "KIND", "BACKEND", "MGMT ADDRESS")
	for _, n := range r.Nodes {
		t.Row(n.Name, string(n.Kind), n.BackendName, n.MgmtAddress)
	}
	t.Flush()

	if len(r.Laggards) > 0 {
		fmt.Println(cli.Yellow(fmt.Sprintf("not ready: %v", r.Laggards)))
	}
	if r.Warning != "" {
		fmt.Println(cli.Yellow(r.Warning))
	}
}

func newInspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <lab-id>",
		Short: "Show a lab's catalog and filesystem state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			labID := args[0]
			settings, err := loadSettings()
			if err != nil {
				return fmt.Errorf("load settings: %w", err)
			}
			ctx := context.Background()
			engine, err := buildEngine(ctx, settings)
			if err != nil {
				return err
			}
			result, err := engine.Inspect(labID)
			if err != nil {
				return err
			}
			fmt.Printf("%s  owner=%s  state=%s  mgmt=%s\n", cli.Bold(result.Lab.Name), result.Lab.Owner, result.Lab.State, result.Lab.MgmtPrefix)
			t := cli.NewTable("NODE", "ORDINAL", "IMAGE")
			for _, n := range result.Nodes {
				t.Row(n.Name, fmt.Sprintf("%d", n.Ordinal), n.ImageID)
			}
			t.Flush()
			for _, w := range result.Warnings {
				fmt.Println(cli.Yellow(w))
			}
			return nil
		},
	}
}

func newDestroyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "destroy <lab-id>",
		Short: "Tear down a lab the caller owns (or any, with --admin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDestroy(args[0], false)
		},
	}
	cmd.Flags().StringVar(&owner, "caller", "", "caller identity checked against the lab owner")
	cmd.Flags().BoolVar(&admin, "admin", false, "bypass the owner check")
	return cmd
}

func newCleanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clean <lab-id>",
		Short: "Admin-only teardown that tolerates an already-partial lab",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDestroy(args[0], true)
		},
	}
}

func runDestroy(labID string, clean bool) error {
	settings, err := loadSettings()
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}
	ctx := context.Background()
	engine, err := buildEngine(ctx, settings)
	if err != nil {
		return err
	}

	var result *lifecycle.DestroyResult
	if clean {
		result, err = engine.Clean(ctx, labID)
	} else {
		result, err = engine.Destroy(ctx, lifecycle.DestroyRequest{LabID: labID, Caller: owner, Admin: admin})
	}
	if err != nil {
		return err
	}

	for kind, n := range result.Summary.Succeeded {
		fmt.Printf("%s %s\n", cli.Green(fmt.Sprintf("%d", n)), kind)
	}
	for kind, n := range result.Summary.Failed {
		fmt.Println(cli.Red(fmt.Sprintf("%d %s failed", n, kind)))
	}
	for _, e := range result.Errors {
		fmt.Fprintln(os.Stderr, cli.Dim(e.Error()))
	}
	return nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			if version.Version == "dev" {
				fmt.Println("sherpa-lifecycled dev build")
			} else {
				fmt.Printf("sherpa-lifecycled %s (%s)\n", version.Version, version.GitCommit)
			}
		},
	}
}
