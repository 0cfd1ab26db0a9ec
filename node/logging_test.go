package node

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewLoggerFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "node.log")
	l, err := NewLogger("debug", path)
	require.NoError(t, err)
	moduleLogger(l, "chain").Info("hello")
	_ = l.Sync()

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	line := string(raw)
	require.True(t, strings.Contains(line, `"msg":"hello"`), line)
	require.True(t, strings.Contains(line, `"module":"chain"`), line)
}

func TestNewLoggerRejectsLevel(t *testing.T) {
	_, err := NewLogger("loud", "")
	require.Error(t, err)
	l, err := NewLogger("WARN", "")
	require.NoError(t, err)
	require.NotNil(t, moduleLogger(nil, "x"))
	_ = l
}
