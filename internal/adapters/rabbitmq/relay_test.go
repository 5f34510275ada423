package rabbitmq

import (
    "context"
    "encoding/json"
    "errors"
    "log/slog"
    "testing"
    "time"

    "github.com/google/uuid"
    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"
    "github.com/walletera/eventskit/events"
    "github.com/walletera/kanban/internal/domain/cards"
    "github.com/walletera/kanban/internal/eventsourcing"
)

type published struct {
    data events.EventData
    info events.RoutingInfo
}

type fakePublisher struct {
    published []published
    err       error
}

func (f *fakePublisher) Publish(_ context.Context, data events.EventData, info events.RoutingInfo) error {
    if f.err != nil {
        return f.err
    }
    f.published = append(f.published, published{data: data, info: info})
    return nil
}

func recordedCardEvent(eventType string, version int64, data string) eventsourcing.RecordedEvent {
    return eventsourcing.RecordedEvent{
        EventId:       uuid.New(),
        StreamName:    "Card-1",
        StreamVersion: version,
        Position:      uint64(version + 1),
        Type:          eventType,
        Data:          []byte(data),
        Metadata:      eventsourcing.Metadata{CorrelationId: "corr-1"},
        CreatedAt:     time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
    }
}

func TestRelay_PublishesEveryCardEventWithItsRoutingKey(t *testing.T) {
    publisher := &fakePublisher{}
    projection := NewRelay(publisher, slog.New(slog.DiscardHandler)).Projection()

    inputs := []eventsourcing.RecordedEvent{
        recordedCardEvent(cards.TaskOpenedEventType, 0, `{"cardId":"1","title":"Write docs"}`),
        recordedCardEvent(cards.CardAssignedEventType, 1, `{"cardId":"1","currentAssignee":"ana"}`),
        recordedCardEvent(cards.DevelopmentStartedEventType, 2, `{"cardId":"1"}`),
    }
    for _, input := range inputs {
        require.True(t, projection.CanHandle(input.Type))
        require.Nil(t, projection.Handle(context.Background(), input))
    }

    require.Len(t, publisher.published, 3)
    assert.Equal(t, []string{TaskOpenedRoutingKey, CardAssignedRoutingKey, DevelopmentStartedRoutingKey}, []string{
        publisher.published[0].info.RoutingKey,
        publisher.published[1].info.RoutingKey,
        publisher.published[2].info.RoutingKey,
    })
    for _, p := range publisher.published {
        assert.Equal(t, CardsExchangeName, p.info.Topic)
    }
}

func TestPublishableEvent_SerializesAnEnvelope(t *testing.T) {
    recorded := recordedCardEvent(cards.CardAssignedEventType, 1, `{"cardId":"1","currentAssignee":"ana"}`)
    publishable := NewPublishableEvent(recorded)

    assert.Equal(t, recorded.EventId.String(), publishable.ID())
    assert.Equal(t, uint64(1), publishable.AggregateVersion())
    assert.Equal(t, "corr-1", publishable.CorrelationID())
    assert.Equal(t, "application/json", publishable.DataContentType())

    raw, err := publishable.Serialize()
    require.NoError(t, err)

    var envelope events.EventEnvelope
    require.NoError(t, json.Unmarshal(raw, &envelope))
    assert.Equal(t, recorded.EventId, envelope.Id)
    assert.Equal(t, cards.CardAssignedEventType, envelope.Type)
    assert.Equal(t, recorded.CreatedAt, envelope.CreatedAt)
    assert.JSONEq(t, `{"cardId":"1","currentAssignee":"ana"}`, string(envelope.Data))
}

func TestRelay_PublishFailureIsRetryable(t *testing.T) {
    publisher := &fakePublisher{err: errors.New("channel closed")}
    projection := NewRelay(publisher, slog.New(slog.DiscardHandler)).Projection()

    werr := projection.Handle(context.Background(), recordedCardEvent(cards.TaskOpenedEventType, 0, `{}`))

    require.NotNil(t, werr)
    assert.True(t, werr.IsRetryable())
}
