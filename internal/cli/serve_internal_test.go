package cli

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"etfhistory/internal/instrument"
	"etfhistory/internal/pipeline"
	"etfhistory/internal/record"
)

type unresolved struct{}

func (unresolved) Resolve(_ context.Context, q instrument.Query) instrument.Resolved {
	return instrument.UnresolvedFor(q)
}

func TestRefreshJob(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	input := filepath.Join(dir, "in.csv")
	require.NoError(t, os.WriteFile(input, []byte("name,ticker\nGhost,ZZZ\n"), 0o644))
	runner := &pipeline.Runner{
		Resolver: unresolved{},
		Sink:     record.NewCSVSink(filepath.Join(dir, "out.csv"), record.ModeAppend),
		Log:      zerolog.Nop(),
	}

	assert.NoError(t, refreshJob(runner, input)(t.Context()), "an empty run is not a job failure")
	assert.Error(t, refreshJob(runner, filepath.Join(dir, "missing.csv"))(t.Context()))
}
