// Package stage defines what the workflow manager needs from a processing
// step over catalogued recordings.
package stage

import (
	"context"

	"holocap/internal/queue"
)

// Handler is one catalogue processing step. Prepare validates inputs and
// seeds progress; Execute does the work and may set rec.Status to an
// outcome other than the lane's default.
type Handler interface {
	Prepare(ctx context.Context, rec *queue.Recording) error
	Execute(ctx context.Context, rec *queue.Recording) error
	HealthCheck(ctx context.Context) Health
}

// Health is a handler's readiness as shown by status surfaces.
type Health struct {
	Name   string `json:"name"`
	Ready  bool   `json:"ready"`
	Detail string `json:"detail,omitempty"`
}

func Healthy(name string) Health { return Health{Name: name, Ready: true} }

func Unhealthy(name, detail string) Health { return Health{Name: name, Detail: detail} }
