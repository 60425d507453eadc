package notify

import (
	"context"
	"errors"

	"go.uber.org/zap"
)

var (
	ErrDelivery       = errors.New("notification delivery failed")
	ErrInvalidPhone   = errors.New("invalid destination phone")
	ErrDispatcherDown = errors.New("notification dispatcher is closed")
	ErrQueueFull      = errors.New("notification queue is full")
)

// Response is what a provider reported for a single send. Providers give no
// delivery confirmation; Accepted only means the request was taken.
type Response struct {
	Provider  string
	MessageID string
	Status    string
	Accepted  bool
}

// Sink delivers a text message to a phone number out-of-band.
type Sink interface {
	Send(ctx context.Context, phone int64, message string) (Response, error)
}

// LogSink writes messages to the log instead of delivering them. Only for
// development: the message carries the entry code.
type LogSink struct {
	logger *zap.Logger
}

func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger}
}

func (s *LogSink) Send(_ context.Context, phone int64, message string) (Response, error) {
	if phone <= 0 {
		return Response{}, ErrInvalidPhone
	}
	s.logger.Debug("sms_dev_delivery", zap.Int64("phone", phone), zap.String("message", message))
	return Response{Provider: "log", Status: "logged", Accepted: true}, nil
}
