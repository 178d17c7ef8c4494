package logger

import (
	"github.com/ThreeDotsLabs/watermill"
)

// watermillAdapter routes watermill's router and pubsub logs through zap.
// Watermill's info level is chatty per message, so it is logged at debug.
type watermillAdapter struct {
	logger *Logger
	fields watermill.LogFields
}

// Watermill returns l as a watermill logger
func (l *Logger) Watermill() watermill.LoggerAdapter {
	return &watermillAdapter{logger: l, fields: watermill.LogFields{}}
}

func (a *watermillAdapter) Error(msg string, err error, fields watermill.LogFields) {
	a.logger.Errorw(msg, a.keysAndValues(fields.Add(watermill.LogFields{"error": err}))...)
}

func (a *watermillAdapter) Info(msg string, fields watermill.LogFields) {
	a.logger.Debugw(msg, a.keysAndValues(fields)...)
}

func (a *watermillAdapter) Debug(msg string, fields watermill.LogFields) {
	a.logger.Debugw(msg, a.keysAndValues(fields)...)
}

func (a *watermillAdapter) Trace(string, watermill.LogFields) {}

func (a *watermillAdapter) With(fields watermill.LogFields) watermill.LoggerAdapter {
	return &watermillAdapter{logger: a.logger, fields: a.fields.Add(fields)}
}

func (a *watermillAdapter) keysAndValues(fields watermill.LogFields) []interface{} {
	all := a.fields.Add(fields)
	kv := make([]interface{}, 0, len(all)*2)
	for k, v := range all {
		kv = append(kv, k, v)
	}
	return kv
}
