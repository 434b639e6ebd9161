package assemble

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/gantrybuild/gantry/lib/image"
)

func seededBuilder() *image.Builder {
	return image.NewBuilder().
		SetCreated(time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC)).
		AddEnv(map[string]string{"PATH": "/usr/bin", "LANG": "C.UTF-8"}).
		AddLabels(map[string]string{"maintainer": "base", "tier": "runtime"}).
		SetWorkingDir("/srv").
		SetEntrypoint([]string{"/bin/base"}).
		SetArgs([]string{"--serve"}).
		SetPorts([]string{"80/tcp"})
}

func TestApplyContainerConfigNil(t *testing.T) {
	b := seededBuilder()
	before := b.Build()

	applyContainerConfig(b, nil)

	require.Equal(t, before, b.Build())
}

func TestApplyContainerConfigMergesEnvAndLabels(t *testing.T) {
	b := seededBuilder()
	applyContainerConfig(b, &ContainerConfig{
		Env:    map[string]string{"PATH": "/app/bin", "APP_MODE": "prod"},
		Labels: map[string]string{"tier": "app"},
	})
	img := b.Build()

	// Union with the override winning on collision; untouched base keys
	// survive.
	require.Equal(t, map[string]string{
		"PATH":     "/app/bin",
		"LANG":     "C.UTF-8",
		"APP_MODE": "prod",
	}, img.Env)
	require.Equal(t, map[string]string{
		"maintainer": "base",
		"tier":       "app",
	}, img.Labels)
}

func TestApplyContainerConfigReplacesListsWholesale(t *testing.T) {
	t.Run("NilInherits", func(t *testing.T) {
		b := seededBuilder()
		applyContainerConfig(b, &ContainerConfig{})
		img := b.Build()

		require.Equal(t, []string{"/bin/base"}, img.Entrypoint)
		require.Equal(t, []string{"--serve"}, img.Args)
		require.Equal(t, []string{"80/tcp"}, img.Ports)
	})

	t.Run("NonNilReplaces", func(t *testing.T) {
		b := seededBuilder()
		applyContainerConfig(b, &ContainerConfig{
			Entrypoint: []string{"/app/run"},
			Args:       []string{"--migrate", "--serve"},
			Ports:      []string{"8080/tcp", "9090/tcp"},
		})
		img := b.Build()

		// No element of the base lists leaks through.
		require.Equal(t, []string{"/app/run"}, img.Entrypoint)
		require.Equal(t, []string{"--migrate", "--serve"}, img.Args)
		require.Equal(t, []string{"8080/tcp", "9090/tcp"}, img.Ports)
	})

	t.Run("EmptyClears", func(t *testing.T) {
		b := seededBuilder()
		applyContainerConfig(b, &ContainerConfig{
			Entrypoint: []string{},
			Args:       []string{},
			Ports:      []string{},
		})
		img := b.Build()

		require.Empty(t, img.Entrypoint)
		require.Empty(t, img.Args)
		require.Empty(t, img.Ports)
	})
}

func TestApplyContainerConfigWorkingDir(t *testing.T) {
	b := seededBuilder()
	applyContainerConfig(b, &ContainerConfig{WorkingDir: ""})
	require.Equal(t, "/srv", b.Build().WorkingDir)

	applyContainerConfig(b, &ContainerConfig{WorkingDir: "/app"})
	require.Equal(t, "/app", b.Build().WorkingDir)
}

func TestApplyContainerConfigCreated(t *testing.T) {
	base := time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC)
	override := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	b := seededBuilder()
	applyContainerConfig(b, &ContainerConfig{})
	require.Equal(t, base, b.Build().Created)

	applyContainerConfig(b, &ContainerConfig{Created: &override})
	require.Equal(t, override, b.Build().Created)
}

func TestEffectiveCreated(t *testing.T) {
	base := time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC)
	override := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	tests := []struct {
		name     string
		config   *ContainerConfig
		expected time.Time
	}{
		{"nil config", nil, base},
		{"no override", &ContainerConfig{}, base},
		{"override", &ContainerConfig{Created: &override}, override},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.expected, effectiveCreated(tt.config, base))
		})
	}
}

func TestConfigCreatedBy(t *testing.T) {
	t.Run("Default", func(t *testing.T) {
		var cfg Config
		require.Equal(t, "gantry:copy app /app", cfg.createdBy("copy app /app"))
	})

	t.Run("CustomTool", func(t *testing.T) {
		cfg := Config{Tool: "forge"}
		require.Equal(t, "forge:run make", cfg.createdBy("run make"))
	})

	t.Run("CustomFormatter", func(t *testing.T) {
		cfg := Config{
			Tool: "forge",
			CreatedBy: func(tool, action string) string {
				return tool + " | " + action
			},
		}
		require.Equal(t, "forge | run make", cfg.createdBy("run make"))
	})
}
