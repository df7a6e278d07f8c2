package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "shelf", cmd.Use)
	assert.Contains(t, cmd.Long, "release feed")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := [][]string{
		{"status"},
		{"sync"},
		{"check"},
		{"reset"},
		{"records", "list"},
		{"records", "search"},
		{"records", "get"},
		{"asset"},
		{"watch"},
		{"config", "init"},
		{"config", "show"},
		{"version"},
	}

	for _, path := range commands {
		name := path[len(path)-1]
		t.Run(name, func(t *testing.T) {
			subCmd, _, err := cmd.Find(path)
			require.NoError(t, err, "Command %v should exist", path)
			require.NotNil(t, subCmd)
			assert.Equal(t, name, subCmd.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verboseFlag := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verboseFlag)
	assert.Equal(t, "v", verboseFlag.Shorthand)
	assert.Equal(t, "false", verboseFlag.DefValue)

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)

	configFlag := cmd.PersistentFlags().Lookup("config")
	require.NotNil(t, configFlag)
	assert.Contains(t, configFlag.DefValue, "config.yaml")
}

func TestCommandFlags(t *testing.T) {
	tests := []struct {
		path      []string
		flag      string
		shorthand string
		def       string
	}{
		{[]string{"sync"}, "force", "", "false"},
		{[]string{"reset"}, "offline", "", "false"},
		{[]string{"records", "list"}, "category", "", ""},
		{[]string{"asset"}, "output", "o", ""},
		{[]string{"watch"}, "interval", "", "0s"},
		{[]string{"watch"}, "auto-install", "", "false"},
		{[]string{"config", "init"}, "feed-url", "", ""},
	}

	root := NewRootCommand()
	for _, tt := range tests {
		t.Run(tt.flag, func(t *testing.T) {
			cmd, _, err := root.Find(tt.path)
			require.NoError(t, err)
			f := cmd.Flags().Lookup(tt.flag)
			require.NotNil(t, f, "flag --%s on %v", tt.flag, tt.path)
			assert.Equal(t, tt.shorthand, f.Shorthand)
			assert.Equal(t, tt.def, f.DefValue)
		})
	}
}

func TestInvalidFormat(t *testing.T) {
	cmd := NewRootCommand()
	cmd.SetArgs([]string{"version", "--format", "xml"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
