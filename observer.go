package keel

import (
	"time"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/google/uuid"
)

// Lifecycle event types emitted by the application as modules move through
// their states. Observers can use these for audit logging or diagnostics.
const (
	EventTypeModuleRegistered   = "com.forgeline.keel.module.registered"
	EventTypeModuleInitialized  = "com.forgeline.keel.module.initialized"
	EventTypeModuleFailed       = "com.forgeline.keel.module.failed"
	EventTypeModuleStopped      = "com.forgeline.keel.module.stopped"
	EventTypeApplicationStarted = "com.forgeline.keel.application.started"
	EventTypeApplicationStopped = "com.forgeline.keel.application.stopped"
	EventTypeConfigChanged      = "com.forgeline.keel.config.changed"
)

// CloudEvent is an alias for the CloudEvents Event type for convenience.
type CloudEvent = cloudevents.Event

// Observer receives lifecycle events from the application. Observers run
// synchronously on the lifecycle goroutine and must not block.
type Observer interface {
	OnEvent(event CloudEvent)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(event CloudEvent)

// OnEvent calls f.
func (f ObserverFunc) OnEvent(event CloudEvent) { f(event) }

// RegisterObserver subscribes an observer to application lifecycle events.
// Observers registered after startup only see subsequent events.
func (app *StdApplication) RegisterObserver(observer Observer) {
	app.observers = append(app.observers, observer)
}

// EmitEvent delivers a module-originated event to all registered
// observers.
func (app *StdApplication) EmitEvent(event CloudEvent) {
	app.notifyObservers(event)
}

func (app *StdApplication) notifyObservers(event CloudEvent) {
	for _, observer := range app.observers {
		observer.OnEvent(event)
	}
}

// NewLifecycleEvent builds a CloudEvent describing a lifecycle transition.
// The module extension carries the module name when the event concerns a
// single module.
func NewLifecycleEvent(eventType, moduleName string, data map[string]any) CloudEvent {
	event := cloudevents.NewEvent()
	event.SetID(newEventID())
	event.SetSource("keel/application")
	event.SetType(eventType)
	event.SetTime(time.Now())
	event.SetSpecVersion(cloudevents.VersionV1)
	if moduleName != "" {
		event.SetExtension("module", moduleName)
	}
	if data != nil {
		_ = event.SetData(cloudevents.ApplicationJSON, data)
	}
	return event
}

// newEventID generates a time-ordered event identifier, falling back to a
// random UUID if v7 generation fails.
func newEventID() string {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return id.String()
}
