package processstate

import (
	"math"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsProcessRunning_Self(t *testing.T) {
	running, err := IsProcessRunning(os.Getpid())
	require.NoError(t, err)
	assert.True(t, running)
}

func TestIsProcessRunning_InvalidPID(t *testing.T) {
	for _, pid := range []int{0, -1, -42} {
		running, err := IsProcessRunning(pid)
		assert.Error(t, err)
		assert.False(t, running)
	}
}

func TestIsProcessRunning_NonexistentPID(t *testing.T) {
	// Far beyond any realistic pid_max.
	running, _ := IsProcessRunning(math.MaxInt32)
	assert.False(t, running)
}
