package mcp

import (
	"context"
	"testing"

	"github.com/felixgeelhaar/mcp-go/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Owl23007/synapse-android-sub000/adapter/cli"
	"github.com/Owl23007/synapse-android-sub000/pkg/config"
	"github.com/Owl23007/synapse-android-sub000/pkg/observability"
)

func TestNewServer_RegistersTools(t *testing.T) {
	srv, err := NewServer(&cli.App{}, observability.DiscardLogger())
	require.NoError(t, err)

	tc := testutil.NewTestClient(t, srv)
	defer tc.Close()

	tools, err := tc.ListTools()
	require.NoError(t, err)
	assert.NotEmpty(t, tools)
}

func TestNewServer_RequiresApp(t *testing.T) {
	_, err := NewServer(nil, observability.DiscardLogger())
	assert.Error(t, err)
}

func TestServe_ValidatesArguments(t *testing.T) {
	ctx := context.Background()
	assert.Error(t, Serve(ctx, nil, &cli.App{}, nil))
	assert.Error(t, Serve(ctx, &config.Config{}, nil, nil))
}
