package metrics

import (
	"sync"
	"time"

	"oiflow/logger"
)

// Metric is one structured measurement taken during a run.
type Metric struct {
	Timestamp time.Time
	Component string
	Name      string
	Value     interface{}
	Type      string
	Fields    logger.Fields
}

// MetricHandler receives every emitted metric.
type MetricHandler func(Metric)

// MetricHandlerID identifies a registered handler.
type MetricHandlerID uint64

var (
	handlersMu    sync.RWMutex
	handlers      = make(map[MetricHandlerID]MetricHandler)
	nextHandlerID MetricHandlerID
)

// RegisterMetricHandler subscribes handler to every metric emitted from now
// on. A nil handler is ignored and yields the zero id.
func RegisterMetricHandler(handler MetricHandler) MetricHandlerID {
	if handler == nil {
		return 0
	}

	handlersMu.Lock()
	defer handlersMu.Unlock()

	nextHandlerID++
	handlers[nextHandlerID] = handler
	return nextHandlerID
}

// UnregisterMetricHandler removes a handler. The zero id is ignored.
func UnregisterMetricHandler(id MetricHandlerID) {
	if id == 0 {
		return
	}
	handlersMu.Lock()
	delete(handlers, id)
	handlersMu.Unlock()
}

// record logs the metric and fans it out to the registered handlers. The
// caller's fields are copied, never mutated.
func record(log *logger.Log, component, name string, value interface{}, metricType string, fields logger.Fields) (Metric, bool) {
	if name == "" {
		return Metric{}, false
	}
	if metricType == "" {
		metricType = "counter"
	}
	if log == nil {
		log = logger.GetLogger()
	}

	own := make(logger.Fields, len(fields))
	for k, v := range fields {
		own[k] = v
	}

	logFields := make(logger.Fields, len(own)+3)
	for k, v := range own {
		logFields[k] = v
	}
	logFields["metric"] = name
	logFields["metric_type"] = metricType
	logFields["value"] = value
	log.WithComponent(component).WithFields(logFields).Info("metric")

	m := Metric{
		Timestamp: time.Now().UTC(),
		Component: component,
		Name:      name,
		Value:     value,
		Type:      metricType,
		Fields:    own,
	}

	handlersMu.RLock()
	subscribers := make([]MetricHandler, 0, len(handlers))
	for _, h := range handlers {
		subscribers = append(subscribers, h)
	}
	handlersMu.RUnlock()

	for _, h := range subscribers {
		h(m)
	}
	return m, true
}
