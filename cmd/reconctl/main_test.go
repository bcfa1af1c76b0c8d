package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "github.com/odyssey-erp/odyssey-recon/internal/testing/guard"
	"github.com/odyssey-erp/odyssey-recon/jobs"
)

func execute(args ...string) (string, error) {
	root := NewRootCommand()
	var out bytes.Buffer
	root.SetArgs(args)
	root.SetOut(&out)
	root.SetErr(&out)
	err := root.Execute()
	return out.String(), err
}

func TestRootHelpListsCommands(t *testing.T) {
	out, err := execute("--help")
	require.NoError(t, err)
	assert.Contains(t, out, "migrate")
	assert.Contains(t, out, "jobs")
}

func TestJobsWithoutSubcommandPrintsHelp(t *testing.T) {
	out, err := execute("jobs")
	require.NoError(t, err)
	for _, sub := range []string{"trigger", "stats", "scheduled"} {
		assert.Contains(t, out, sub)
	}
}

func TestInvalidInvocationsFailBeforeConnecting(t *testing.T) {
	for _, args := range [][]string{
		{"migrate"},
		{"migrate", "sideways"},
		{"migrate", "up", "down"},
		{"jobs", "trigger"},
		{"jobs", "stats", "extra"},
		{"jobs", "scheduled", "extra"},
		{"seed", "all"},
		{"--bogus"},
	} {
		_, err := execute(args...)
		assert.Error(t, err, args)
	}
}

func TestMigrateAcceptsDirections(t *testing.T) {
	cmd := MigrateCommand()
	for _, dir := range []string{"up", "down"} {
		assert.NoError(t, cmd.ValidateArgs([]string{dir}), dir)
	}
	assert.Error(t, cmd.ValidateArgs([]string{"sideways"}))
}

func TestTaskForKnownJobs(t *testing.T) {
	for _, name := range []string{jobs.TaskSummaryWarmup, jobs.TaskIdempotencyCleanup} {
		task, err := taskFor(name)
		require.NoError(t, err)
		assert.Equal(t, name, task.Type())
	}
	_, err := taskFor("mail:send")
	assert.Error(t, err)
}
