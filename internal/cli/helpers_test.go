package cli

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/lotledger/internal/config"
	"github.com/roach88/lotledger/internal/docstore"
	"github.com/roach88/lotledger/internal/docstore/sqlstore"
	"github.com/roach88/lotledger/internal/testutil"
)

// testEnv runs CLI commands against one SQLite file with deterministic
// event ids and timestamps.
type testEnv struct {
	t      *testing.T
	dbPath string
	opts   *RootOptions
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	ids := docstore.NewSequenceGenerator("ev")

	env := &testEnv{
		t:      t,
		dbPath: filepath.Join(t.TempDir(), "cli.db"),
	}
	env.opts = &RootOptions{
		OpenStore: func(ctx context.Context, cfg *config.Config) (docstore.Store, error) {
			return sqlstore.Open(cfg.DB, sqlstore.WithIDGenerator(ids))
		},
		Now: testutil.NewStepClock().Now,
	}
	return env
}

// run executes one command line and returns stdout, stderr and the error.
func (e *testEnv) run(args ...string) (string, string, error) {
	e.t.Helper()
	return e.runContext(context.Background(), args...)
}

func (e *testEnv) runContext(ctx context.Context, args ...string) (string, string, error) {
	e.t.Helper()

	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	cmd := newRootCommand(e.opts)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetArgs(append([]string{"--db=" + e.dbPath, "--env-file="}, args...))

	err := cmd.ExecuteContext(ctx)
	return stdout.String(), stderr.String(), err
}

// mustRun fails the test when the command fails.
func (e *testEnv) mustRun(args ...string) string {
	e.t.Helper()
	out, stderr, err := e.run(args...)
	require.NoError(e.t, err, "lotledger %v\nstderr: %s", args, stderr)
	return out
}
