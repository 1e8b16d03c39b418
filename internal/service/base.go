package service

import (
	"github.com/jaofeng/cctvgw/internal/logger"
)

// ServiceBase is embedded by long-running components registered with
// Manager. It supplies the bits every service needs (a name, a logger, a
// reference to the manager's async EventBus) without each component
// reimplementing them.
type ServiceBase struct {
	name     string
	log      *logger.Logger
	eventBus *EventBus
}

// NewServiceBase constructs a ServiceBase with the given name and logger.
func NewServiceBase(name string, log *logger.Logger) *ServiceBase {
	return &ServiceBase{name: name, log: log}
}

// Name returns the service's registered name.
func (b *ServiceBase) Name() string { return b.name }

// SetEventBus satisfies ServiceWithEvents; Manager calls this on
// Register.
func (b *ServiceBase) SetEventBus(bus *EventBus) { b.eventBus = bus }

// GetEventBus returns the manager's event bus, or nil if this service
// hasn't been registered yet.
func (b *ServiceBase) GetEventBus() *EventBus { return b.eventBus }

// PublishEvent publishes a manager-level lifecycle event if an event bus
// has been attached.
func (b *ServiceBase) PublishEvent(eventType EventType, data map[string]interface{}) {
	if b.eventBus == nil {
		return
	}
	b.eventBus.Publish(Event{Type: eventType, Source: b.name, Data: data})
}

// LogInfo logs at info level with the service name attached.
func (b *ServiceBase) LogInfo(msg string, fields ...interface{}) {
	if b.log == nil {
		return
	}
	b.log.Info(msg, append([]interface{}{"service", b.name}, fields...)...)
}

// LogError logs at error level with the service name attached.
func (b *ServiceBase) LogError(msg string, fields ...interface{}) {
	if b.log == nil {
		return
	}
	b.log.Error(msg, append([]interface{}{"service", b.name}, fields...)...)
}

// LogDebug logs at debug level with the service name attached.
func (b *ServiceBase) LogDebug(msg string, fields ...interface{}) {
	if b.log == nil {
		return
	}
	b.log.Debug(msg, append([]interface{}{"service", b.name}, fields...)...)
}
