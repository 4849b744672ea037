package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testSpec struct {
	Port         string        `envconfig:"PORT" default:"8080"`
	DatabaseURL  string        `envconfig:"DATABASE_URL" required:"true"`
	ScanInterval time.Duration `envconfig:"REMINDER_SCAN_INTERVAL" default:"60s"`
	Timezone     string        `envconfig:"TIMEZONE" default:"Europe/Istanbul"`
}

func TestLoadReadsDotEnvWithoutOverridingEnvironment(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("DATABASE_URL=postgres://from-file\nTIMEZONE=UTC\n"), 0o600))

	t.Setenv("TIMEZONE", "Europe/Berlin")
	t.Setenv("DATABASE_URL", "")
	require.NoError(t, os.Unsetenv("DATABASE_URL"))

	var spec testSpec
	require.NoError(t, Load(&spec, path))

	assert.Equal(t, "postgres://from-file", spec.DatabaseURL)
	assert.Equal(t, "Europe/Berlin", spec.Timezone)
	assert.Equal(t, "8080", spec.Port)
	assert.Equal(t, time.Minute, spec.ScanInterval)
}

func TestLoadMissingFileIsFine(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://env")

	var spec testSpec
	require.NoError(t, Load(&spec, filepath.Join(t.TempDir(), "absent.env")))
	assert.Equal(t, "postgres://env", spec.DatabaseURL)
}

func TestLoadRequired(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	require.NoError(t, os.Unsetenv("DATABASE_URL"))

	var spec testSpec
	require.Error(t, Load(&spec, filepath.Join(t.TempDir(), "absent.env")))
}

func TestPortDecode(t *testing.T) {
	type spec struct {
		Port     Port `envconfig:"PORT" default:"8083"`
		GRPCPort Port `envconfig:"GRPC_PORT"`
	}
	dotenv := filepath.Join(t.TempDir(), "absent.env")

	t.Setenv("PORT", "")
	require.NoError(t, os.Unsetenv("PORT"))
	var s spec
	require.NoError(t, Load(&s, dotenv))
	assert.Equal(t, ":8083", s.Port.Addr())
	assert.Empty(t, s.GRPCPort)

	t.Setenv("PORT", " 9090 ")
	require.NoError(t, Load(&s, dotenv))
	assert.Equal(t, Port("9090"), s.Port)

	t.Setenv("PORT", "70000")
	require.Error(t, Load(&s, dotenv))
}
