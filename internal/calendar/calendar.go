// Package calendar annotates alerts with upcoming macro events. Purely
// cosmetic: it never influences scoring or dispatch.
package calendar

import (
	"fmt"
	"math"
	"time"

	"vigil/internal/config"
)

// Annotator reports upcoming economic events inside a horizon.
type Annotator struct {
	horizon time.Duration
	events  []config.CalendarEvent
}

// New creates an annotator from the configured static event list.
func New(cfg config.CalendarConfig) *Annotator {
	return &Annotator{
		horizon: time.Duration(cfg.HorizonDays) * 24 * time.Hour,
		events:  cfg.Events,
	}
}

// Annotation returns a warning line for the nearest future event within the
// horizon, or "" when there is none.
func (a *Annotator) Annotation(now time.Time) string {
	var nearest *config.CalendarEvent
	for i := range a.events {
		e := a.events[i]
		if e.Time.Before(now) || e.Time.Sub(now) > a.horizon {
			continue
		}
		if nearest == nil || e.Time.Before(nearest.Time) {
			nearest = &a.events[i]
		}
	}
	if nearest == nil {
		return ""
	}

	days := int(math.Ceil(nearest.Time.Sub(now).Hours() / 24))
	if days <= 1 {
		return fmt.Sprintf("%s within 24h - reduced position sizing recommended", nearest.Name)
	}
	return fmt.Sprintf("%s in %d days - reduced position sizing recommended", nearest.Name, days)
}
