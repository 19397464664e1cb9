package main

import (
	"testing"

	"github.com/ab180/mandelmr"
	"github.com/stretchr/testify/require"
)

func TestCheckWorkerGroup(t *testing.T) {
	opt := mandelmr.DefaultOptions()
	require.NoError(t, checkWorkerGroup(opt, false))
	require.NoError(t, checkWorkerGroup(opt, true))

	opt.LocalWorkers = 4
	require.NoError(t, checkWorkerGroup(opt, false), "-local alone sets the group size")

	opt.Coordinator.Workers = 4
	require.NoError(t, checkWorkerGroup(opt, true))

	opt.Coordinator.Workers = 3
	require.EqualError(t, checkWorkerGroup(opt, true), "-workers 3 conflicts with -local 4")

	opt.LocalWorkers = -1
	require.Error(t, checkWorkerGroup(opt, false))
}
