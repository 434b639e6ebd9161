package buildfile

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const fullManifest = `
from: docker.io/library/alpine:3.18
layers:
  - source: ./build/classes
    target: /app/classes
  - source: ./build/resources
    target: /app/resources
env:
  APP_MODE: prod
labels:
  maintainer: team@example.com
entrypoint: ["/app/run"]
args: ["--serve"]
ports:
  - "8080"
  - 9090/udp
  - "8080/tcp"
workingDir: /app
created: "2024-03-01T10:00:00Z"
`

func TestParse(t *testing.T) {
	bf, err := Parse([]byte(fullManifest))
	require.NoError(t, err)

	require.Equal(t, "docker.io/library/alpine:3.18", bf.From)
	require.False(t, bf.Scratch())
	require.Len(t, bf.Layers, 2)
	require.Equal(t, "./build/classes", bf.Layers[0].Source)
	require.Equal(t, "/app/classes", bf.Layers[0].Target)
	require.Equal(t, map[string]string{"APP_MODE": "prod"}, bf.Env)
	require.Equal(t, []string{"/app/run"}, bf.Entrypoint)
	require.Equal(t, "/app", bf.WorkingDir)

	// Bare ports get /tcp, duplicates collapse, order is kept.
	require.Equal(t, []string{"8080/tcp", "9090/udp"}, bf.Ports)
}

func TestParseScratch(t *testing.T) {
	bf, err := Parse([]byte("from: scratch\nlayers:\n  - source: ./bin/app\n    target: /app\n"))
	require.NoError(t, err)
	require.True(t, bf.Scratch())
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name     string
		manifest string
		want     string
	}{
		{"missing from", "layers: []\n", "from is required"},
		{"missing source", "from: alpine\nlayers:\n  - target: /app\n", "layer 0: source is required"},
		{"missing target", "from: alpine\nlayers:\n  - source: ./app\n", "layer 0: target is required"},
		{"bad created", "from: alpine\ncreated: yesterday\n", "not \"epoch\", \"now\" or RFC 3339"},
		{"bad yaml", "from: [\n", "parse buildfile"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.manifest))
			require.ErrorContains(t, err, tt.want)
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gantry.yaml")
	require.NoError(t, os.WriteFile(path, []byte(fullManifest), 0o644))

	bf, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "docker.io/library/alpine:3.18", bf.From)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.ErrorContains(t, err, "read buildfile")
}

func TestAppLayers(t *testing.T) {
	bf, err := Parse([]byte(fullManifest))
	require.NoError(t, err)

	appLayers := bf.AppLayers()
	require.Len(t, appLayers, 2)
	require.Equal(t, "copy ./build/classes /app/classes", appLayers[0].Action())
	require.Equal(t, "copy ./build/resources /app/resources", appLayers[1].Action())
}

func TestContainerConfig(t *testing.T) {
	bf, err := Parse([]byte(fullManifest))
	require.NoError(t, err)

	cfg, err := bf.ContainerConfig()
	require.NoError(t, err)
	require.Equal(t, []string{"/app/run"}, cfg.Entrypoint)
	require.Equal(t, []string{"--serve"}, cfg.Args)
	require.Equal(t, []string{"8080/tcp", "9090/udp"}, cfg.Ports)
	require.Equal(t, "/app", cfg.WorkingDir)
	require.NotNil(t, cfg.Created)
	require.Equal(t, time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC), *cfg.Created)
}

func TestContainerConfigInheritVersusClear(t *testing.T) {
	t.Run("AbsentInherits", func(t *testing.T) {
		bf, err := Parse([]byte("from: alpine\n"))
		require.NoError(t, err)
		cfg, err := bf.ContainerConfig()
		require.NoError(t, err)
		require.Nil(t, cfg.Entrypoint)
		require.Nil(t, cfg.Args)
		require.Nil(t, cfg.Ports)
		require.Nil(t, cfg.Created)
	})

	t.Run("EmptyClears", func(t *testing.T) {
		bf, err := Parse([]byte("from: alpine\nentrypoint: []\nargs: []\n"))
		require.NoError(t, err)
		cfg, err := bf.ContainerConfig()
		require.NoError(t, err)
		require.NotNil(t, cfg.Entrypoint)
		require.Empty(t, cfg.Entrypoint)
		require.NotNil(t, cfg.Args)
		require.Empty(t, cfg.Args)
	})
}

func TestCreatedModes(t *testing.T) {
	t.Run("Epoch", func(t *testing.T) {
		bf, err := Parse([]byte("from: alpine\ncreated: epoch\n"))
		require.NoError(t, err)
		cfg, err := bf.ContainerConfig()
		require.NoError(t, err)
		require.Equal(t, time.Unix(0, 0).UTC(), *cfg.Created)
	})

	t.Run("Now", func(t *testing.T) {
		before := time.Now().UTC()
		bf, err := Parse([]byte("from: alpine\ncreated: now\n"))
		require.NoError(t, err)
		cfg, err := bf.ContainerConfig()
		require.NoError(t, err)
		require.False(t, cfg.Created.Before(before))
	})
}
