package gallery

import "log"

const (
	EventGalleryReady  = "gallery-ready"
	EventParamSelected = "param-selected"
	EventItemAdded     = "item-added"
)

// EventBus receives events produced for the host application.
type EventBus interface {
	Emit(name string, payload any)
}

// EventFunc adapts a function to EventBus.
type EventFunc func(name string, payload any)

func (f EventFunc) Emit(name string, payload any) { f(name, payload) }

// Fanout delivers every event to each bus in order.
type Fanout []EventBus

func (f Fanout) Emit(name string, payload any) {
	for _, b := range f {
		if b != nil {
			b.Emit(name, payload)
		}
	}
}

// LogBus writes events to the standard logger.
type LogBus struct{}

func (LogBus) Emit(name string, payload any) {
	log.Printf("[EVENT] %s %+v", name, payload)
}

type GalleryReady struct {
	PanelID PanelID `json:"panelId"`
	Step    int     `json:"step"`
	HasData bool    `json:"hasData"`
}

type ParamSelected struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	IsChartMode bool   `json:"isChartMode"`
}

type ItemAdded struct {
	PanelID PanelID `json:"panelId"`
	ItemID  string  `json:"itemId"`
}
