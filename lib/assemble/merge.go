package assemble

import (
	"time"

	"github.com/gantrybuild/gantry/lib/image"
)

// applyContainerConfig layers caller overrides onto a builder already seeded
// with the base image configuration. Env and labels merge with the override
// winning on collision; entrypoint, args and ports replace wholesale when
// specified; working directory and creation time override only when set.
func applyContainerConfig(b *image.Builder, c *ContainerConfig) {
	if c == nil {
		return
	}
	b.AddEnv(c.Env)
	b.AddLabels(c.Labels)
	if c.WorkingDir != "" {
		b.SetWorkingDir(c.WorkingDir)
	}
	if c.Entrypoint != nil {
		b.SetEntrypoint(c.Entrypoint)
	}
	if c.Args != nil {
		b.SetArgs(c.Args)
	}
	if c.Ports != nil {
		b.SetPorts(c.Ports)
	}
	if c.Created != nil {
		b.SetCreated(*c.Created)
	}
}

// effectiveCreated is the timestamp stamped onto generated history entries:
// the caller's override when present, the base image's otherwise.
func effectiveCreated(c *ContainerConfig, base time.Time) time.Time {
	if c != nil && c.Created != nil {
		return *c.Created
	}
	return base
}
