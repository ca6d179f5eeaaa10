package logger_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/taskboard/taskboard.go/pkg/logger"
)

func TestBuildFromBuffer(t *testing.T) {
	buff := bytes.NewBuffer([]byte{})
	templogger, err := logger.NewBuild().FromBuffer(buff).Make()
	require.NoError(t, err)
	require.NotNil(t, templogger)
	require.NotNil(t, templogger.Logger)
	// Get Stats Before
	require.Equal(t, buff.Len(), 0)
	templogger.Logger.Info().Msg("Test")
	// Get Stats After
	require.Contains(t, buff.String(), "Test")
}

func TestBuildSatisfiesLogger(t *testing.T) {
	buff := bytes.NewBuffer([]byte{})
	built, err := logger.NewBuild().FromBuffer(buff).Make()
	require.NoError(t, err)

	var log logger.Logger = built
	log.Info("reconnecting", "attempt", 3)

	require.Contains(t, buff.String(), "reconnecting")
	require.Contains(t, buff.String(), `"attempt":3`)
}
