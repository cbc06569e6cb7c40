package natsadapter

import (
	"strings"

	"github.com/samirrijal/livemap/internal/core/domain"
)

// Ride update subjects: ride.<id>.driver, ride.<id>.route and ride.<id>.status.
const (
	RideUpdatesStream  = "RIDE_UPDATES"
	RideUpdatesSubject = "ride.>"
)

var subjectToken = strings.NewReplacer(".", "_", "*", "_", ">", "_", " ", "_")

// SubjectFor returns the subject an update is published on. Route changes win over
// status changes, which win over driver ticks.
func SubjectFor(ev *domain.RideUpdate) string {
	kind := "driver"
	switch {
	case ev.RideRoute != nil || ev.ApproachRoute != nil:
		kind = "route"
	case ev.Offline != nil:
		kind = "status"
	}
	return "ride." + subjectToken.Replace(ev.RideID) + "." + kind
}
