package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/matzehuels/pypifeed/pkg/integrations/pypi"
)

// packageOpts holds the flags of the package command.
type packageOpts struct {
	json bool
	deps bool
}

// packageCommand creates the package metadata command.
func (c *CLI) packageCommand() *cobra.Command {
	var opts packageOpts

	cmd := &cobra.Command{
		Use:     "package <name> [version]",
		Aliases: []string{"pkg"},
		Short:   "Show metadata for a PyPI package",
		Long: `Show metadata for a PyPI package.

Without a version the latest release is shown. The name is sent to PyPI
as given; PyPI redirects non-canonical spellings.`,
		Example: `  pypifeed package flask
  pypifeed package flask 2.3.3 --deps
  pypifeed package requests --json`,
		Args:              cobra.RangeArgs(1, 2),
		ValidArgsFunction: c.completePackageArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := c.newClient()
			if err != nil {
				return err
			}
			var version string
			if len(args) == 2 {
				version = args[1]
			}
			return c.showPackage(cmd.Context(), client, args[0], version, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.json, "json", false, "print the full metadata document as JSON")
	cmd.Flags().BoolVar(&opts.deps, "deps", false, "list runtime dependencies")

	return cmd
}

// showPackage fetches and prints one package's metadata.
func (c *CLI) showPackage(ctx context.Context, client *pypi.Client, name, version string, opts packageOpts) error {
	prog := newProgress(ctx)

	label := name
	if version != "" {
		label = name + " " + version
	}

	spinner := newSpinnerWithContext(ctx, fmt.Sprintf("Fetching %s...", label))
	spinner.Start()
	meta, err := client.FetchPackage(ctx, name, version)
	spinner.Stop()
	if err != nil {
		return err
	}
	prog.done("Fetched package", "name", meta.Info.Name, "version", meta.Info.Version, "files", len(meta.URLs))

	if opts.json {
		return writeJSON(os.Stdout, meta)
	}

	printPackage(meta)
	if opts.deps {
		printNewline()
		printDependencies(meta)
	}
	printNewline()
	printNextStep("Download", fmt.Sprintf("%s fetch --package %s --version %s", appName, meta.Info.Name, meta.Info.Version))
	return nil
}
