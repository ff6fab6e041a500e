// Package sources implements gallery.DataSource over the HTTP data service,
// a local directory of exported frames, and a disk-backed cache in front of
// either.
package sources

const (
	TimestepsPath = "/variables/%s/timesteps"
	PlotPath      = "/variables/%s/timesteps/%d/plot"
	ItemPath      = "/item/%s"

	// TokenHeader carries the session token to the data service.
	TokenHeader = "girderToken"
)
