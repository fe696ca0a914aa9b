package caldav

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Owl23007/synapse-android-sub000/adapter/cli"
)

func TestCommands_RequireCalDAV(t *testing.T) {
	cli.SetApp(&cli.App{})
	t.Cleanup(func() { cli.SetApp(nil) })

	for _, c := range Cmd.Commands() {
		t.Run(c.Name(), func(t *testing.T) {
			c.SetContext(context.Background())
			err := c.RunE(c, nil)
			assert.ErrorIs(t, err, cli.ErrNotConfigured)
		})
	}
}

func TestPull_RequiresApp(t *testing.T) {
	cli.SetApp(nil)

	pullCmd.SetContext(context.Background())
	err := pullCmd.RunE(pullCmd, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store is unavailable")
}

func TestFlags(t *testing.T) {
	assert.NotNil(t, pushCmd.Flags().Lookup("delete-missing"))
	assert.Equal(t, "caldav", pullCmd.Flags().Lookup("calendar").DefValue)
	assert.Equal(t, "skip", pullCmd.Flags().Lookup("strategy").DefValue)
	assert.Equal(t, "30", pushCmd.Flags().Lookup("days").DefValue)
	assert.Equal(t, "30", pullCmd.Flags().Lookup("days").DefValue)
}
