package watch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Alon769/lity/internal/rete"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

const pensionRuleSrc = `
rule "GrantPension" when {
	b: Budget();
	p: Person(age >= 65, b.amount >= 10);
} then {
	b.amount = b.amount - 10;
	update b;
};
`

func TestWatcherReloadsChangedRuleFile(t *testing.T) {
	defer goleak.VerifyNone(t,
		goleak.IgnoreTopFunction("internal/poll.runtime_pollWait"),
	)

	dir := t.TempDir()
	g := rete.NewGraph()
	w, err := New(dir, g, 20*time.Millisecond)
	require.NoError(t, err)

	reloaded := make(chan CompileResult, 1)
	w.OnReload = func(cr CompileResult) { reloaded <- cr }

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))
	defer w.Stop()

	path := filepath.Join(dir, "pension.rule")
	require.NoError(t, os.WriteFile(path, []byte(pensionRuleSrc), 0o644))

	select {
	case cr := <-reloaded:
		require.Len(t, cr.Results, 1)
		require.Equal(t, "GrantPension", cr.Results[0].Rule)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for reload")
	}

	w.Stop()
	cancel()
}

func TestWatcherReportsSyntaxErrorsWithoutCrashing(t *testing.T) {
	dir := t.TempDir()
	g := rete.NewGraph()
	w, err := New(dir, g, 20*time.Millisecond)
	require.NoError(t, err)

	errs := make(chan error, 1)
	w.OnError = func(path string, err error) { errs <- err }

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))
	defer w.Stop()

	path := filepath.Join(dir, "broken.rule")
	require.NoError(t, os.WriteFile(path, []byte("rule \"Broken\" when { b Budget() } then { }"), 0o644))

	select {
	case err := <-errs:
		require.Error(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for error report")
	}
}
