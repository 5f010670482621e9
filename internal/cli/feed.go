package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/matzehuels/pypifeed/pkg/errors"
	"github.com/matzehuels/pypifeed/pkg/integrations/pypi"
)

// Feed names accepted by the feed command.
const (
	feedNewest  = "newest"
	feedUpdates = "updates"
)

// feedOpts holds the flags of the feed command.
type feedOpts struct {
	limit       int
	json        bool
	interactive bool
}

// feedCommand creates the feed command.
func (c *CLI) feedCommand() *cobra.Command {
	var opts feedOpts

	cmd := &cobra.Command{
		Use:   "feed [newest|updates]",
		Short: "List the newest packages or latest releases on PyPI",
		Long: `List items from one of the PyPI RSS feeds.

  newest   projects that were just created
  updates  the latest release uploads (default)`,
		Example: `  pypifeed feed
  pypifeed feed newest --limit 10
  pypifeed feed updates --json
  pypifeed feed -i`,
		ValidArgs: []string{feedNewest, feedUpdates},
		Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := feedUpdates
			if len(args) == 1 {
				name = args[0]
			}
			return c.runFeed(cmd.Context(), name, opts)
		},
	}

	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 0, "show at most n items (0 = all)")
	cmd.Flags().BoolVar(&opts.json, "json", false, "print items as JSON")
	cmd.Flags().BoolVarP(&opts.interactive, "interactive", "i", false, "browse items and show the selected package")

	return cmd
}

func (c *CLI) runFeed(ctx context.Context, name string, opts feedOpts) error {
	if opts.limit < 0 {
		return errors.New(errors.ErrCodeInvalidInput, "--limit must not be negative")
	}
	if opts.json && opts.interactive {
		return errors.New(errors.ErrCodeInvalidInput, "--json and --interactive are mutually exclusive")
	}

	client, err := c.newClient()
	if err != nil {
		return err
	}
	feedURL, title, err := resolveFeed(client, name)
	if err != nil {
		return err
	}

	prog := newProgress(ctx)

	spinner := newSpinnerWithContext(ctx, fmt.Sprintf("Fetching %s feed...", name))
	spinner.Start()
	items, err := client.FetchFeed(ctx, feedURL)
	spinner.Stop()
	if err != nil {
		return err
	}
	prog.done("Fetched feed", "feed", name, "items", len(items))

	if opts.limit > 0 && opts.limit < len(items) {
		items = items[:opts.limit]
	}

	switch {
	case opts.json:
		return writeJSON(os.Stdout, items)
	case opts.interactive:
		return c.browseFeed(ctx, client, title, items)
	}

	fmt.Println(StyleTitle.Render(title))
	fmt.Println(renderFeedTable(items, time.Now()))
	printNextStep("Details", appName+" package <name>")
	return nil
}

// resolveFeed maps a feed name to its URL on the client's index.
func resolveFeed(client *pypi.Client, name string) (feedURL, title string, err error) {
	switch name {
	case feedNewest:
		return client.NewestPackagesFeedURL(), "Newest packages", nil
	case feedUpdates:
		return client.PackageUpdatesFeedURL(), "Latest releases", nil
	}
	return "", "", errors.New(errors.ErrCodeInvalidInput, "unknown feed %q (want %s or %s)", name, feedNewest, feedUpdates)
}

// browseFeed runs the interactive list and prints the selected package.
func (c *CLI) browseFeed(ctx context.Context, client *pypi.Client, title string, items []pypi.FeedItem) error {
	m := NewFeedListModel(title, items)
	p := tea.NewProgram(m, tea.WithContext(ctx))
	finalModel, err := p.Run()
	if err != nil {
		return err
	}

	fm, ok := finalModel.(FeedListModel)
	if !ok || fm.Selected == nil {
		printDetail("No selection made")
		return nil
	}

	// Newest-package items carry no version; ask for the latest release then.
	return c.showPackage(ctx, client, fm.Selected.Name, fm.Selected.Version, packageOpts{})
}
