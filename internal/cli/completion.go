package cli

import (
	"context"
	"strings"

	"github.com/spf13/cobra"
)

// completionCommand creates the completion command for generating shell completions.
// Besides flags and subcommands, the scripts complete feed names, fetch
// --type values, package names from the latest releases feed, and the
// release versions of a named package.
func (c *CLI) completionCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion scripts",
		Long: `Generate shell completion scripts for pypifeed.

To load completions:

Bash:
  $ source <(pypifeed completion bash)

  # To load completions for each session, execute once:
  # Linux:
  $ pypifeed completion bash > /etc/bash_completion.d/pypifeed
  # macOS:
  $ pypifeed completion bash > $(brew --prefix)/etc/bash_completion.d/pypifeed

Zsh:
  # If shell completion is not already enabled in your environment,
  # you will need to enable it. You can execute the following once:
  $ echo "autoload -U compinit; compinit" >> ~/.zshrc

  # To load completions for each session, execute once:
  $ pypifeed completion zsh > "${fpath[1]}/_pypifeed"

  # You will need to start a new shell for this setup to take effect.

Fish:
  $ pypifeed completion fish | source

  # To load completions for each session, execute once:
  $ pypifeed completion fish > ~/.config/fish/completions/pypifeed.fish

PowerShell:
  PS> pypifeed completion powershell | Out-String | Invoke-Expression

  # To load completions for every new session, run:
  PS> pypifeed completion powershell > pypifeed.ps1
  # and source this file from your PowerShell profile.
`,
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletionV2(out, true)
			case "zsh":
				return cmd.Root().GenZshCompletion(out)
			case "fish":
				return cmd.Root().GenFishCompletion(out, true)
			case "powershell":
				return cmd.Root().GenPowerShellCompletionWithDesc(out)
			}
			return nil
		},
	}

	return cmd
}

// completeFileTypes completes fetch --type.
func completeFileTypes(*cobra.Command, []string, string) ([]cobra.Completion, cobra.ShellCompDirective) {
	return []cobra.Completion{kindSdist, kindWheel}, cobra.ShellCompDirectiveNoFileComp
}

// completePackageArgs completes "package <name> [version]": names come from
// the latest releases feed, versions from the package's release list.
func (c *CLI) completePackageArgs(cmd *cobra.Command, args []string, toComplete string) ([]cobra.Completion, cobra.ShellCompDirective) {
	switch len(args) {
	case 0:
		return c.completeRecentPackages(cmd, args, toComplete)
	case 1:
		return c.completeVersions(cmd, args[0], toComplete)
	}
	return nil, cobra.ShellCompDirectiveNoFileComp
}

// completeRecentPackages offers the names of recently released packages.
func (c *CLI) completeRecentPackages(cmd *cobra.Command, _ []string, toComplete string) ([]cobra.Completion, cobra.ShellCompDirective) {
	client, err := c.newClient()
	if err != nil {
		return nil, cobra.ShellCompDirectiveError
	}
	items, err := client.FetchFeed(completionContext(cmd), client.PackageUpdatesFeedURL())
	if err != nil {
		return nil, cobra.ShellCompDirectiveError
	}

	prefix := strings.ToLower(toComplete)
	seen := make(map[string]bool, len(items))
	var names []cobra.Completion
	for _, it := range items {
		if seen[it.Name] || !strings.HasPrefix(strings.ToLower(it.Name), prefix) {
			continue
		}
		seen[it.Name] = true
		names = append(names, it.Name)
	}
	return names, cobra.ShellCompDirectiveNoFileComp
}

// completeVersions offers the release versions of name, newest first.
func (c *CLI) completeVersions(cmd *cobra.Command, name, toComplete string) ([]cobra.Completion, cobra.ShellCompDirective) {
	client, err := c.newClient()
	if err != nil {
		return nil, cobra.ShellCompDirectiveError
	}
	meta, err := client.FetchPackage(completionContext(cmd), name, "")
	if err != nil {
		return nil, cobra.ShellCompDirectiveError
	}

	versions := meta.ReleaseVersions()
	out := make([]cobra.Completion, 0, len(versions))
	for i := len(versions) - 1; i >= 0; i-- {
		if strings.HasPrefix(versions[i], toComplete) {
			out = append(out, versions[i])
		}
	}
	return out, cobra.ShellCompDirectiveNoFileComp | cobra.ShellCompDirectiveKeepOrder
}

func completionContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
