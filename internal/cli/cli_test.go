package cli

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/pypifeed/pkg/errors"
	"github.com/matzehuels/pypifeed/pkg/integrations/pypi/pypitest"
	"github.com/matzehuels/pypifeed/pkg/observability"
)

// runCLI executes the root command against a fake index and returns the log output.
func runCLI(t *testing.T, srv *pypitest.Server, args ...string) (string, error) {
	t.Helper()
	t.Cleanup(observability.Reset)

	cfg := writeConfig(t, fmt.Sprintf("service_root = %q\n", srv.URL))

	var logs bytes.Buffer
	c := New(&logs, log.DebugLevel)
	root := c.RootCommand()
	root.SetArgs(append([]string{"--config", cfg}, args...))
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	err := root.ExecuteContext(context.Background())
	return logs.String(), err
}

func demoRelease(files ...map[string]any) map[string]any {
	return map[string]any{
		"info": map[string]any{"name": "demo", "version": "1.0", "requires_dist": []string{"attrs"}},
		"urls": files,
	}
}

func TestRootCommand_Subcommands(t *testing.T) {
	root := New(&bytes.Buffer{}, log.InfoLevel).RootCommand()

	want := []string{"feed", "package", "fetch", "config", "completion"}
	for _, name := range want {
		if cmd, _, err := root.Find([]string{name}); err != nil || cmd.Name() != name {
			t.Errorf("subcommand %q not registered", name)
		}
	}
	if root.PersistentFlags().Lookup("config") == nil {
		t.Error("--config flag not registered")
	}
}

func TestFeedCommand(t *testing.T) {
	srv := pypitest.NewServer()
	defer srv.Close()
	srv.SetFeed(pypitest.UpdatesFeedPath,
		pypitest.Item{Title: "flask 3.0.0", Link: "https://pypi.org/project/flask/3.0.0/"},
		pypitest.Item{Title: "requests 2.32.3", Link: "https://pypi.org/project/requests/2.32.3/"},
	)
	srv.SetFeed(pypitest.NewestFeedPath,
		pypitest.Item{Title: "brand-new added to PyPI", Link: "https://pypi.org/project/brand-new/"},
	)

	tests := []struct {
		name     string
		args     []string
		wantPath string
		wantErr  bool
	}{
		{"default is updates", []string{"feed"}, pypitest.UpdatesFeedPath, false},
		{"newest", []string{"feed", "newest", "--limit", "1"}, pypitest.NewestFeedPath, false},
		{"json", []string{"feed", "updates", "--json"}, pypitest.UpdatesFeedPath, false},
		{"unknown feed", []string{"feed", "simple"}, "", true},
		{"negative limit", []string{"feed", "--limit", "-1"}, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := len(srv.Requests())
			logs, err := runCLI(t, srv, tt.args...)
			if (err != nil) != tt.wantErr {
				t.Fatalf("error = %v, wantErr %v\nlogs:\n%s", err, tt.wantErr, logs)
			}
			reqs := srv.Requests()[before:]
			if tt.wantErr {
				if len(reqs) != 0 {
					t.Errorf("invalid input should not reach the index, got %v", reqs)
				}
				return
			}
			if len(reqs) != 1 || reqs[0] != tt.wantPath {
				t.Errorf("requests = %v, want [%s]", reqs, tt.wantPath)
			}
			for _, want := range []string{"http response", "Fetched feed", "elapsed="} {
				if !strings.Contains(logs, want) {
					t.Errorf("logs missing %q:\n%s", want, logs)
				}
			}
		})
	}
}

func TestPackageCommand(t *testing.T) {
	srv := pypitest.NewServer()
	defer srv.Close()
	srv.SetProject("demo", demoRelease())
	srv.SetRelease("demo", "0.9", demoRelease())

	if _, err := runCLI(t, srv, "package", "demo", "--deps"); err != nil {
		t.Fatalf("package demo: %v", err)
	}
	if _, err := runCLI(t, srv, "package", "demo", "0.9", "--json"); err != nil {
		t.Fatalf("package demo 0.9: %v", err)
	}

	_, err := runCLI(t, srv, "package", "missing")
	if !errors.Is(err, errors.ErrCodeNotFound) {
		t.Errorf("expected NOT_FOUND, got %v", err)
	}

	want := []string{"/pypi/demo/json", "/pypi/demo/0.9/json", "/pypi/missing/json"}
	if got := srv.Requests(); strings.Join(got, " ") != strings.Join(want, " ") {
		t.Errorf("requests = %v, want %v", got, want)
	}
}

func TestFetchCommand_URL(t *testing.T) {
	srv := pypitest.NewServer()
	defer srv.Close()
	u := srv.SetFile("notes.txt", []byte("release notes"))

	out := filepath.Join(t.TempDir(), "notes.txt")
	logs, err := runCLI(t, srv, "fetch", u, "-o", out)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	for _, want := range []string{"Downloaded", "file=notes.txt", "bytes=13"} {
		if !strings.Contains(logs, want) {
			t.Errorf("logs missing %q:\n%s", want, logs)
		}
	}
	got, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "release notes" {
		t.Errorf("file = %q, want %q", got, "release notes")
	}
}

func TestFetchCommand_Package(t *testing.T) {
	payload := []byte("demo sdist contents")
	sum := sha256.Sum256(payload)

	tests := []struct {
		name    string
		digest  string
		size    int
		wantErr bool
	}{
		{"verified", hex.EncodeToString(sum[:]), len(payload), false},
		{"no digest", "", 0, false},
		{"digest mismatch", strings.Repeat("0", 64), len(payload), true},
		{"size mismatch", hex.EncodeToString(sum[:]), len(payload) + 1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := pypitest.NewServer()
			defer srv.Close()
			u := srv.SetFile("demo-1.0.tar.gz", payload)
			srv.SetProject("demo", demoRelease(map[string]any{
				"filename":    "demo-1.0.tar.gz",
				"url":         u,
				"packagetype": "sdist",
				"size":        tt.size,
				"digests":     map[string]string{"sha256": tt.digest},
			}))

			out := filepath.Join(t.TempDir(), "demo.tar.gz")
			_, err := runCLI(t, srv, "fetch", "--package", "demo", "-o", out)
			if (err != nil) != tt.wantErr {
				t.Fatalf("error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				if _, statErr := os.Stat(out); !os.IsNotExist(statErr) {
					t.Error("a failed verification should not write the file")
				}
				return
			}
			got, _ := os.ReadFile(out)
			if string(got) != string(payload) {
				t.Errorf("file = %q, want %q", got, payload)
			}
		})
	}
}

func TestFetchCommand_PackageFileName(t *testing.T) {
	payload := []byte("demo sdist contents")

	tests := []struct {
		name     string
		filename string
		want     string
	}{
		{"plain", "demo-1.0.tar.gz", "demo-1.0.tar.gz"},
		{"parent traversal", "../../demo-1.0.tar.gz", "demo-1.0.tar.gz"},
		{"absolute", "/tmp/evil/demo-1.0.tar.gz", "demo-1.0.tar.gz"},
		{"backslashes", `..\..\demo-1.0.tar.gz`, "demo-1.0.tar.gz"},
		{"dot dot", "..", ""},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			work := filepath.Join(t.TempDir(), "a", "b")
			if err := os.MkdirAll(work, 0o755); err != nil {
				t.Fatal(err)
			}
			t.Chdir(work)

			srv := pypitest.NewServer()
			defer srv.Close()
			u := srv.SetFile("demo-1.0.tar.gz", payload)
			srv.SetProject("demo", demoRelease(map[string]any{
				"filename":    tt.filename,
				"url":         u,
				"packagetype": "sdist",
			}))

			_, err := runCLI(t, srv, "fetch", "--package", "demo")
			if tt.want == "" {
				if !errors.Is(err, errors.ErrCodeInvalidInput) {
					t.Fatalf("expected INVALID_INPUT, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("fetch: %v", err)
			}

			entries, _ := os.ReadDir(work)
			if len(entries) != 1 || entries[0].Name() != tt.want {
				t.Errorf("working directory holds %v, want only %s", entries, tt.want)
			}
			if _, err := os.Stat(filepath.Join(work, "..", "..", "demo-1.0.tar.gz")); !os.IsNotExist(err) {
				t.Error("download escaped the working directory")
			}
		})
	}
}

func TestFetchCommand_InvalidInput(t *testing.T) {
	srv := pypitest.NewServer()
	defer srv.Close()
	srv.SetProject("demo", demoRelease())

	tests := []struct {
		name string
		args []string
		code errors.Code
	}{
		{"nothing to fetch", []string{"fetch"}, errors.ErrCodeInvalidInput},
		{"url and package", []string{"fetch", srv.URL + "/packages/x", "--package", "demo"}, errors.ErrCodeInvalidInput},
		{"bad type", []string{"fetch", "--package", "demo", "--type", "egg"}, errors.ErrCodeInvalidInput},
		{"no matching file", []string{"fetch", "--package", "demo", "--type", "wheel"}, errors.ErrCodeNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := runCLI(t, srv, tt.args...)
			if !errors.Is(err, tt.code) {
				t.Errorf("expected %s, got %v", tt.code, err)
			}
		})
	}
}
