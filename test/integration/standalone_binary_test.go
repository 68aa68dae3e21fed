package integration

import (
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quotagate/quotagate/internal/core"
)

// buildBinary compiles cmd/quotagate into a directory outside the module so
// nothing resolves relative to the repo at run time.
func buildBinary(t *testing.T) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("standalone binary test is unix-focused")
	}
	if testing.Short() {
		t.Skip("builds the binary")
	}

	gomod, err := exec.Command("go", "env", "GOMOD").Output()
	require.NoError(t, err, "go env GOMOD")
	repoRoot := filepath.Dir(strings.TrimSpace(string(gomod)))
	require.NotEqual(t, ".", repoRoot, "go env GOMOD returned empty")

	binary := filepath.Join(t.TempDir(), "quotagate")
	build := exec.Command("go", "build", "-o", binary, "./cmd/quotagate")
	build.Dir = repoRoot
	out, err := build.CombinedOutput()
	require.NoError(t, err, "go build:\n%s", out)
	return binary
}

func runBinary(t *testing.T, binary string, env []string, args ...string) string {
	t.Helper()
	cmd := exec.Command(binary, args...)
	cmd.Dir = t.TempDir()
	cmd.Env = append(os.Environ(), append([]string{"XDG_CONFIG_HOME=" + t.TempDir()}, env...)...)
	out, err := cmd.CombinedOutput()
	require.NoError(t, err, "quotagate %s:\n%s", strings.Join(args, " "), out)
	return string(out)
}

func TestStandaloneBinary(t *testing.T) {
	binary := buildBinary(t)

	t.Run("version", func(t *testing.T) {
		runBinary(t, binary, nil, "version")
	})

	t.Run("config show honours environment", func(t *testing.T) {
		out := runBinary(t, binary, []string{"QUOTAGATE_LIMITER_MAX_REQUESTS=9"}, "config", "show")
		assert.Contains(t, out, "max_requests: 9")
	})

	t.Run("demo keeps every window within quota", func(t *testing.T) {
		reportPath := filepath.Join(t.TempDir(), "demo.json")
		runBinary(t, binary, nil, "demo",
			"--quota", "4", "--window", "150ms", "--call-delay", "0s",
			"--output-format", "json", "--out", reportPath)

		data, err := os.ReadFile(reportPath)
		require.NoError(t, err)
		var report core.RunReport
		require.NoError(t, json.Unmarshal(data, &report))

		assert.Equal(t, "demo", report.Source)
		assert.Equal(t, 4, report.Limit)
		assert.Equal(t, 150*time.Millisecond, report.Window)
		assert.Empty(t, report.Violations)
		assert.Len(t, report.Rejected, 1, "the oversized batch is refused")
		assert.NotEmpty(t, report.Admissions)
	})

	t.Run("help", func(t *testing.T) {
		assert.Contains(t, runBinary(t, binary, nil, "--help"), "demo")
	})
}
