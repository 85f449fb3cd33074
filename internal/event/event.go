package event

import (
	"context"

	"github.com/sirupsen/logrus"
)

const (
	// DocumentCreated fires when a document receives its first version.
	DocumentCreated = "document.created"
	// VersionCreated fires once per successfully ingested version.
	VersionCreated = "document.version.created"
	// VersionUploaded is the upload signal emitted alongside VersionCreated.
	VersionUploaded = "document.version.uploaded"
	// VersionReverted fires when a document is reverted to an older version.
	VersionReverted = "document.version.reverted"
)

// Event is a lifecycle notification. Actor is empty for system-initiated
// operations.
type Event struct {
	Name   string `json:"name"`
	Actor  string `json:"actor,omitempty"`
	Target string `json:"target"`
	Object string `json:"object,omitempty"`
}

// Sink receives lifecycle events. Emission is fire-and-forget from the
// pipeline's perspective; sink errors are logged and never abort the
// pipeline.
type Sink interface {
	Emit(ctx context.Context, ev Event) error
}

// LogSink writes events to the process log.
type LogSink struct{}

func NewLogSink() LogSink {
	return LogSink{}
}

func (LogSink) Emit(ctx context.Context, ev Event) error {
	logrus.WithFields(logrus.Fields{
		"event":  ev.Name,
		"actor":  ev.Actor,
		"target": ev.Target,
		"object": ev.Object,
	}).Info("lifecycle event")
	return nil
}

// NopSink drops every event.
type NopSink struct{}

func NewNopSink() NopSink {
	return NopSink{}
}

func (NopSink) Emit(ctx context.Context, ev Event) error {
	return nil
}
