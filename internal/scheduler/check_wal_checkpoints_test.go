package scheduler

import (
	"testing"

	"github.com/aristath/fundval/internal/database"
	testingpkg "github.com/aristath/fundval/internal/testing"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestCheckWALCheckpointsJob_Name(t *testing.T) {
	job := NewCheckWALCheckpointsJob(nil, zerolog.Nop())
	assert.Equal(t, "check_wal_checkpoints", job.Name())
}

func TestCheckWALCheckpointsJob_Run_NilDatabases(t *testing.T) {
	job := NewCheckWALCheckpointsJob(map[string]*database.DB{"fundval": nil}, zerolog.Nop())
	assert.NoError(t, job.Run())
}

func TestCheckWALCheckpointsJob_Run(t *testing.T) {
	dbs := map[string]*database.DB{
		"fundval":     testingpkg.NewTestDB(t, "fundval"),
		"client_data": testingpkg.NewTestDB(t, "client_data"),
	}
	job := NewCheckWALCheckpointsJob(dbs, zerolog.Nop())
	assert.NoError(t, job.Run())
}
