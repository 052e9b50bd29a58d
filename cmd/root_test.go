package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	cmds := rootCmd.Commands()

	names := make(map[string]bool)
	for _, c := range cmds {
		names[c.Name()] = true
	}

	expected := []string{"render", "serve", "vector", "geocode", "tiles", "fetch"}
	for _, name := range expected {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "geospython", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestRenderCommand_Flags(t *testing.T) {
	flag := renderCmd.Flags().Lookup("out")
	require.NotNil(t, flag, "render command should have --out flag")
}

func TestServeCommand_Flags(t *testing.T) {
	flag := serveCmd.Flags().Lookup("port")
	require.NotNil(t, flag, "serve command should have --port flag")
	assert.Equal(t, "0", flag.DefValue)

	require.NotNil(t, serveCmd.Flags().Lookup("layer"))
	require.NotNil(t, serveCmd.Flags().Lookup("map"))
}

func TestVectorCommand_HasSubcommands(t *testing.T) {
	cmds := vectorCmd.Commands()
	names := make(map[string]bool)
	for _, c := range cmds {
		names[c.Name()] = true
	}

	for _, name := range []string{"info", "convert", "export"} {
		assert.True(t, names[name], "expected vector subcommand %q not found", name)
	}
}

func TestTilesCommand_HasSubcommands(t *testing.T) {
	cmds := tilesCmd.Commands()
	names := make(map[string]bool)
	for _, c := range cmds {
		names[c.Name()] = true
	}

	for _, name := range []string{"seed", "runs", "prune"} {
		assert.True(t, names[name], "expected tiles subcommand %q not found", name)
	}
}

func TestTilesSeedCommand_Flags(t *testing.T) {
	flag := tilesSeedCmd.Flags().Lookup("basemap")
	require.NotNil(t, flag)
	assert.Equal(t, "OpenStreetMap", flag.DefValue)

	require.NotNil(t, tilesSeedCmd.Flags().Lookup("bbox"))
	require.NotNil(t, tilesSeedCmd.Flags().Lookup("min-zoom"))
	require.NotNil(t, tilesSeedCmd.Flags().Lookup("max-zoom"))
}

func TestGeocodeCommand_Flags(t *testing.T) {
	for _, name := range []string{"city", "state", "zip", "batch", "reverse", "no-cache"} {
		require.NotNil(t, geocodeCmd.Flags().Lookup(name), "geocode command should have --%s flag", name)
	}
}

func TestParseBBoxFlag(t *testing.T) {
	minLng, minLat, maxLng, maxLat, err := parseBBoxFlag("-84.39,25.77,-80.19,33.75")
	require.NoError(t, err)
	assert.Equal(t, -84.39, minLng)
	assert.Equal(t, 25.77, minLat)
	assert.Equal(t, -80.19, maxLng)
	assert.Equal(t, 33.75, maxLat)

	_, _, _, _, err = parseBBoxFlag("1,2,3")
	require.Error(t, err)

	_, _, _, _, err = parseBBoxFlag("a,b,c,d")
	require.Error(t, err)
}
