package main

import (
	"bytes"
	"errors"
	"path/filepath"
	"testing"

	"github.com/baderkha/sql2mongo/pkg/migrate/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunsCommands(t *testing.T) {
	statePath := filepath.Join(t.TempDir(), "state.sqlite")
	mger, err := state.NewSqliteGormManager(statePath)
	require.NoError(t, err)
	require.NoError(t, mger.InitRunLog("run-1", 2, false))
	require.NoError(t, mger.InitModelRunLog("run-1", "public", "app_author", "author"))
	require.NoError(t, mger.PassedModelRun("run-1", "public", "app_author", state.Counts{Read: 3, Migrated: 3}))
	require.NoError(t, mger.InitModelRunLog("run-1", "public", "app_book", "book"))
	require.NoError(t, mger.FailedModelRun("run-1", "public", "app_book", state.Counts{Read: 1}, errors.New("relation does not exist")))
	require.NoError(t, mger.FailedRunLog("run-1", state.Counts{Read: 4, Migrated: 3}, errors.New("relation does not exist")))
	require.NoError(t, mger.Close())

	t.Run("list", func(t *testing.T) {
		var out bytes.Buffer
		rootCmd.SetOut(&out)
		rootCmd.SetArgs([]string{"runs", "--state", statePath})
		require.NoError(t, rootCmd.Execute())
		assert.Contains(t, out.String(), "RUN ID")
		assert.Contains(t, out.String(), "run-1")
		assert.Contains(t, out.String(), "FAILED")
	})

	t.Run("show", func(t *testing.T) {
		var out bytes.Buffer
		rootCmd.SetOut(&out)
		rootCmd.SetArgs([]string{"runs", "show", "run-1", "--state", statePath})
		require.NoError(t, rootCmd.Execute())
		assert.Contains(t, out.String(), "public.app_author")
		assert.Contains(t, out.String(), "relation does not exist")
	})

	t.Run("show missing run", func(t *testing.T) {
		rootCmd.SetOut(&bytes.Buffer{})
		rootCmd.SetArgs([]string{"runs", "show", "nope", "--state", statePath})
		assert.Error(t, rootCmd.Execute())
	})
}
