// Testing Strategy Design Decision:
//
// The cmd/ package contains CLI integration tests that exercise the full
// stack: command parsing -> service layer -> store layer -> SQLite.
// internal/fetch, internal/annotate, internal/vacuum, internal/config,
// etc. all carry their own package-level tests; these tests additionally
// confirm the CLI wiring itself (flag parsing, config resolution, store
// bootstrap) behaves as operators actually invoke it.
package cmd

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

var (
	binaryPath string
	buildOnce  sync.Once
	buildErr   error
)

// buildBinary compiles the foiacorpus binary once for all tests.
func buildBinary(t *testing.T) string {
	t.Helper()

	buildOnce.Do(func() {
		tmpDir, err := os.MkdirTemp("", "foiacorpus-test-bin-*")
		if err != nil {
			buildErr = err
			return
		}

		binaryName := "foiacorpus"
		if os.PathSeparator == '\\' {
			binaryName = "foiacorpus.exe"
		}
		binaryPath = filepath.Join(tmpDir, binaryName)

		wd := mustGetwd()
		projectRoot := filepath.Dir(wd)

		cmd := exec.Command("go", "build", "-o", binaryPath, ".")
		cmd.Dir = projectRoot
		if out, err := cmd.CombinedOutput(); err != nil {
			buildErr = &buildError{err: err, output: string(out)}
		}
	})

	if buildErr != nil {
		t.Fatalf("failed to build binary: %v", buildErr)
	}
	return binaryPath
}

type buildError struct {
	err    error
	output string
}

func (e *buildError) Error() string {
	return e.err.Error() + "\n" + e.output
}

func mustGetwd() string {
	dir, err := os.Getwd()
	if err != nil {
		panic(err)
	}
	return dir
}

// testEnv holds an isolated working directory and a fake HOME, so config
// and the default sqlite/cas paths never touch the operator's real home
// or repository.
type testEnv struct {
	t      *testing.T
	dir    string
	home   string
	binary string
}

// newTestEnv creates a temporary working directory for one test case.
// Unlike the teacher's store, there is no "init" subcommand: the store
// bootstraps lazily on first use (cmd/store.go's initStore).
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	binary := buildBinary(t)
	return &testEnv{t: t, dir: t.TempDir(), home: t.TempDir(), binary: binary}
}

func (e *testEnv) run(args ...string) string {
	e.t.Helper()
	out, err := e.runErr(args...)
	if err != nil {
		e.t.Fatalf("foiacorpus %v failed: %v\noutput: %s", args, err, out)
	}
	return out
}

func (e *testEnv) runErr(args ...string) (string, error) {
	e.t.Helper()
	cmd := exec.Command(e.binary, args...)
	cmd.Dir = e.dir
	cmd.Env = append(os.Environ(), "HOME="+e.home)
	out, err := cmd.CombinedOutput()
	return string(out), err
}

func (e *testEnv) contains(output, expected string) {
	e.t.Helper()
	assert.Contains(e.t, output, expected)
}

func (e *testEnv) notContains(output, unexpected string) {
	e.t.Helper()
	if strings.Contains(output, unexpected) {
		e.t.Errorf("output unexpectedly contains %q:\n%s", unexpected, output)
	}
}
