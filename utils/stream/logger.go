package stream

import "go.uber.org/zap"

// Log logs values as they pass through.
func Log[T any](logger *zap.Logger) Processor[T] {
	return func(stream Stream[T]) Stream[T] {
		return &loggedStream[T]{stream, logger}
	}
}

type loggedStream[T any] struct {
	Stream[T]
	logger *zap.Logger
}

func (stream *loggedStream[T]) Next() bool {
	if !stream.Stream.Next() {
		if err := stream.Stream.Error(); err != nil {
			stream.logger.Debug("stream stopped", zap.Error(err))
		}

		return false
	}

	stream.logger.Debug("next value", zap.Any("value", stream.Value()))

	return true
}
