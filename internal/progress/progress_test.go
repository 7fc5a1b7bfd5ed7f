package progress

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestLog_AppendsTimestampedLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "progress.log")
	log, err := Open(path, discardLogger())
	require.NoError(t, err)

	log.Printf("Scanning folder %s (%d files)", "/repo/a", 3)
	log.Printf("Scan complete")
	require.NoError(t, log.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "Scanning folder /repo/a (3 files)")
	assert.Contains(t, lines[1], "Scan complete")
	// Each line carries a bracketed timestamp prefix.
	assert.True(t, strings.HasPrefix(lines[0], "["))
}

func TestLog_AppendsAcrossReopens(t *testing.T) {
	path := filepath.Join(t.TempDir(), "progress.log")

	first, err := Open(path, discardLogger())
	require.NoError(t, err)
	first.Printf("run one")
	require.NoError(t, first.Close())

	second, err := Open(path, discardLogger())
	require.NoError(t, err)
	second.Printf("run two")
	require.NoError(t, second.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "run one")
	assert.Contains(t, string(data), "run two")
}

func TestLog_NilSafe(t *testing.T) {
	var log *Log
	log.Printf("no file backing")
	assert.NoError(t, log.Close())
}

func TestLog_ConcurrentWrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "progress.log")
	log, err := Open(path, discardLogger())
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			log.Printf("writer %d", n)
		}(i)
	}
	wg.Wait()
	require.NoError(t, log.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	assert.Len(t, lines, 10)
}
