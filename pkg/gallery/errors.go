package gallery

import (
	"errors"
	"fmt"
)

var (
	ErrFetch              = errors.New("frame fetch failed")
	ErrNoStepAvailable    = errors.New("no time steps available")
	ErrSyncConflict       = errors.New("zoom rejected: panel is not the sync origin")
	ErrStaleFetch         = errors.New("fetch result belongs to an abandoned selection")
	ErrSurfaceUnavailable = errors.New("rendering backend could not allocate a surface")
	ErrUnknownPanel       = errors.New("unknown panel")
	ErrNoItem             = errors.New("panel has no item selected")
)

// FetchError is returned when the data service fails to deliver a time step
// list or a frame. The panel keeps whatever it was showing before.
type FetchError struct {
	PanelID PanelID
	ItemID  string
	Step    int
	Err     error
}

func (e *FetchError) Error() string {
	if e.Step < 0 {
		return fmt.Sprintf("panel %s: fetch time steps for %s: %v", e.PanelID, e.ItemID, e.Err)
	}
	return fmt.Sprintf("panel %s: fetch %s step %d: %v", e.PanelID, e.ItemID, e.Step, e.Err)
}

func (e *FetchError) Unwrap() []error { return []error{ErrFetch, e.Err} }
