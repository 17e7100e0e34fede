package serving

import (
	"time"

	"github.com/vineetp6/serving/pkg/types"
)

// Status builds a detailed status response for /status.
func (c *Core) Status() types.StatusResponse {
	now := time.Now()
	return types.StatusResponse{
		Servables:      c.Registry.snapshot(),
		LoadsTotal:     c.Registry.loadsTotal.Load(),
		UnloadsTotal:   c.Registry.unloadsTotal.Load(),
		OpenStreams:    c.Router.openStreams.Load(),
		UptimeSeconds:  int64(now.Sub(c.startTime).Seconds()),
		ServerTimeUnix: now.Unix(),
	}
}

// Models lists every known name with its versions and states.
func (c *Core) Models() []types.ModelVersions {
	return c.Registry.Models()
}

// Ready reports whether any servable can take traffic.
func (c *Core) Ready() bool {
	for _, mv := range c.Registry.Models() {
		for _, v := range mv.Versions {
			if v.State == string(StateAvailable) {
				return true
			}
		}
	}
	return false
}
