package assemble

import "time"

const defaultTool = "gantry"

// Config carries the per-build settings for one assembly.
type Config struct {
	// Tool identifies the builder in generated history entries: it becomes
	// the author of application layer entries and the default created-by
	// prefix. Empty means "gantry".
	Tool string

	// Workers bounds how many layer resolutions run concurrently. Zero or
	// negative means unbounded.
	Workers int

	// Container holds the caller's configuration overrides; nil applies
	// none.
	Container *ContainerConfig

	// CreatedBy renders the created-by string for an application layer's
	// history entry from the tool identity and the layer's build action.
	// Nil uses "tool:action".
	CreatedBy func(tool, action string) string
}

func (c Config) tool() string {
	if c.Tool != "" {
		return c.Tool
	}
	return defaultTool
}

func (c Config) createdBy(action string) string {
	if c.CreatedBy != nil {
		return c.CreatedBy(c.tool(), action)
	}
	return c.tool() + ":" + action
}

// ContainerConfig is the caller-supplied set of container configuration
// overrides applied on top of the base image's own configuration.
type ContainerConfig struct {
	// Created overrides the image creation timestamp; nil inherits the base
	// image's.
	Created *time.Time

	// Env and Labels are united with the base maps; on key collision these
	// values win.
	Env    map[string]string
	Labels map[string]string

	// Entrypoint, Args and Ports replace the base values wholesale when
	// non-nil. An explicitly empty, non-nil slice clears the inherited
	// value; nil inherits it unchanged.
	Entrypoint []string
	Args       []string
	Ports      []string

	// WorkingDir overrides the base working directory when non-empty.
	WorkingDir string
}
