package daemon

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGeneratePlist(t *testing.T) {
	plist, err := GeneratePlist(PlistConfig{
		BinaryPath:       "/usr/local/bin/loopwatch",
		Target:           "https://www.youtube.com/watch?v=abc",
		LogPath:          "/tmp/logs",
		WorkingDirectory: "/tmp",
	})
	require.NoError(t, err)

	assert.Contains(t, plist, "<string>"+LaunchdLabel+"</string>")
	assert.Contains(t, plist, "<string>/usr/local/bin/loopwatch</string>")
	assert.Contains(t, plist, "<string>https://www.youtube.com/watch?v=abc</string>")
	assert.Contains(t, plist, "<string>/tmp/logs/loopwatch.log</string>")
	assert.Contains(t, plist, "<string>/tmp/logs/loopwatch.err</string>")
}

func TestGeneratePlist_EscapesTarget(t *testing.T) {
	plist, err := GeneratePlist(PlistConfig{
		BinaryPath: "/usr/local/bin/loopwatch",
		Target:     "https://www.youtube.com/watch?app=desktop&v=abc",
		LogPath:    "/tmp/logs",
	})
	require.NoError(t, err)

	assert.Contains(t, plist, "watch?app=desktop&amp;v=abc")
	assert.NotContains(t, plist, "desktop&v=")
}

func TestGeneratePlist_NoTarget(t *testing.T) {
	plist, err := GeneratePlist(PlistConfig{
		BinaryPath: "/usr/local/bin/loopwatch",
		LogPath:    "/tmp/logs",
	})
	require.NoError(t, err)

	args := plist[strings.Index(plist, "<array>"):strings.Index(plist, "</array>")]
	assert.Equal(t, 3, strings.Count(args, "<string>"))
	assert.NotContains(t, args, "youtube")
}

func TestGetPlistPath(t *testing.T) {
	t.Setenv("HOME", "/home/tester")

	path, err := GetPlistPath()
	require.NoError(t, err)
	assert.Equal(t, "/home/tester/Library/LaunchAgents/com.loopwatch.agent.plist", path)

	logs, err := GetDefaultLogPath()
	require.NoError(t, err)
	assert.Equal(t, "/home/tester/.local/share/loopwatch/logs", logs)
}
