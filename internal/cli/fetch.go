package cli

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/pypifeed/pkg/errors"
	"github.com/matzehuels/pypifeed/pkg/integrations/pypi"
)

// fetchOpts holds the flags of the fetch command.
type fetchOpts struct {
	output  string
	pkg     string
	version string
	kind    string
}

// Values accepted by --type.
const (
	kindSdist = "sdist"
	kindWheel = "wheel"
)

// fetchCommand creates the download command.
func (c *CLI) fetchCommand() *cobra.Command {
	var opts fetchOpts

	cmd := &cobra.Command{
		Use:   "fetch [url]",
		Short: "Download a URL or a release file",
		Long: `Download a URL into memory and write it out.

With --package the file is looked up in the package metadata instead, and
its size and sha256 digest are checked against what PyPI reports.`,
		Example: `  pypifeed fetch https://pypi.org/rss/updates.xml -o updates.xml
  pypifeed fetch --package flask
  pypifeed fetch --package flask --version 3.0.0 --type wheel -o -`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var rawURL string
			if len(args) == 1 {
				rawURL = args[0]
			}
			return c.runFetch(cmd.Context(), rawURL, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.output, "output", "o", "", `output file ("-" = stdout; default: stdout for URLs, the file name for --package)`)
	cmd.Flags().StringVar(&opts.pkg, "package", "", "download a file of this package")
	cmd.Flags().StringVar(&opts.version, "version", "", "package version (default: latest)")
	cmd.Flags().StringVar(&opts.kind, "type", kindSdist, "file type for --package: sdist or wheel")
	_ = cmd.RegisterFlagCompletionFunc("type", completeFileTypes)
	_ = cmd.RegisterFlagCompletionFunc("package", c.completeRecentPackages)

	return cmd
}

func (c *CLI) runFetch(ctx context.Context, rawURL string, opts fetchOpts) error {
	if (rawURL == "") == (opts.pkg == "") {
		return errors.New(errors.ErrCodeInvalidInput, "give either a URL or --package")
	}

	client, err := c.newClient()
	if err != nil {
		return err
	}

	var file *pypi.Distribution
	if opts.pkg != "" {
		file, err = selectFile(ctx, client, opts)
		if err != nil {
			return err
		}
		rawURL = file.URL
		if opts.output == "" {
			if opts.output, err = localFileName(file.Filename); err != nil {
				return err
			}
		}
	}

	prog := newProgress(ctx)
	spinner := newSpinnerWithContext(ctx, fmt.Sprintf("Downloading %s...", path.Base(rawURL)))
	spinner.Start()
	r, err := client.FetchBytes(ctx, rawURL)
	spinner.Stop()
	if err != nil {
		return err
	}
	prog.done("Downloaded", "file", path.Base(rawURL), "bytes", r.Size())

	if file != nil {
		if err := verifyFile(r, file); err != nil {
			return err
		}
	}

	if opts.output == "" || opts.output == "-" {
		_, err := io.Copy(os.Stdout, r)
		return err
	}
	if err := writeFile(opts.output, r); err != nil {
		return err
	}
	printSuccess("Saved %s", opts.output)
	printFile(opts.output)
	return nil
}

// selectFile resolves --package/--version/--type to a single release file.
func selectFile(ctx context.Context, client *pypi.Client, opts fetchOpts) (*pypi.Distribution, error) {
	var packageType string
	switch opts.kind {
	case kindSdist:
		packageType = pypi.PackageTypeSdist
	case kindWheel:
		packageType = pypi.PackageTypeWheel
	default:
		return nil, errors.New(errors.ErrCodeInvalidInput, "unknown --type %q (want %s or %s)", opts.kind, kindSdist, kindWheel)
	}

	meta, err := client.FetchPackage(ctx, opts.pkg, opts.version)
	if err != nil {
		return nil, err
	}
	files := meta.Files(packageType)
	if len(files) == 0 {
		return nil, errors.New(errors.ErrCodeNotFound, "%s has no %s file", meta, opts.kind)
	}
	if len(files) > 1 {
		loggerFromContext(ctx).Info("multiple files match, using the first", "count", len(files), "file", files[0].Filename)
	}
	return &files[0], nil
}

// verifyFile checks a download against the size and sha256 digest PyPI
// reports. The reader is rewound afterwards.
func verifyFile(r *bytes.Reader, file *pypi.Distribution) error {
	if file.Size > 0 && r.Size() != file.Size {
		return errors.New(errors.ErrCodeTransport, "%s: got %d bytes, want %d", file.Filename, r.Size(), file.Size)
	}
	if file.Digests.SHA256 == "" {
		return nil
	}
	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return err
	}
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return err
	}
	if got := hex.EncodeToString(h.Sum(nil)); got != file.Digests.SHA256 {
		return errors.New(errors.ErrCodeTransport, "%s: sha256 mismatch: got %s, want %s", file.Filename, got, file.Digests.SHA256)
	}
	return nil
}

// localFileName reduces a file name reported by the index to its last
// element so a download always lands in the working directory.
func localFileName(name string) (string, error) {
	base := path.Base(strings.ReplaceAll(name, `\`, "/"))
	switch base {
	case ".", "..", "/":
		return "", errors.New(errors.ErrCodeInvalidInput, "refusing to save release file as %q", name)
	}
	return base, nil
}

func writeFile(name string, r io.Reader) error {
	f, err := os.Create(name)
	if err != nil {
		return fmt.Errorf("create %s: %w", name, err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", name, err)
	}
	return f.Close()
}
