package logattr

import "log/slog"

func ServiceName(serviceName string) slog.Attr {
    return slog.String("service_name", serviceName)
}

func Component(component string) slog.Attr {
    return slog.String("component", component)
}

func CardId(cardId string) slog.Attr {
    return slog.String("card_id", cardId)
}

func EventType(eventType string) slog.Attr {
    return slog.String("event_type", eventType)
}

func EventId(eventId string) slog.Attr {
    return slog.String("event_id", eventId)
}

func Error(err string) slog.Attr {
    return slog.String("error", err)
}

func CorrelationId(correlationId string) slog.Attr {
    return slog.String("correlation_id", correlationId)
}

func StreamName(streamName string) slog.Attr {
    return slog.String("stream_name", streamName)
}

func StreamVersion(version int64) slog.Attr {
    return slog.Int64("stream_version", version)
}

func Position(position uint64) slog.Attr {
    return slog.Uint64("position", position)
}

func Projection(projectionName string) slog.Attr {
    return slog.String("projection", projectionName)
}

func Runner(runnerName string) slog.Attr {
    return slog.String("runner", runnerName)
}

func DropReason(reason string) slog.Attr {
    return slog.String("drop_reason", reason)
}

func EventLogDriver(driver string) slog.Attr {
    return slog.String("eventlog_driver", driver)
}

func HTTPMethod(method string) slog.Attr {
    return slog.String("http_method", method)
}

func HTTPPath(path string) slog.Attr {
    return slog.String("http_path", path)
}

func HTTPStatus(status int) slog.Attr {
    return slog.Int("http_status", status)
}
