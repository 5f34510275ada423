package tests

import (
    "context"
    "encoding/json"
    "fmt"
    "strconv"
    "testing"
    "time"

    cardsrabbitmq "github.com/walletera/kanban/internal/adapters/rabbitmq"

    "github.com/cucumber/godog"
    "github.com/walletera/eventskit/events"
    "github.com/walletera/eventskit/messages"
    "github.com/walletera/eventskit/rabbitmq"
)

const (
    consumerKey            = "consumer"
    consumerMessagesKey    = "consumerMessages"
    consumerQueueName      = "kanban-tests-cards-events"
    consumerRoutingKey     = "card.#"
    consumerReceiveTimeout = 10 * time.Second
)

func TestCardEventsRelay(t *testing.T) {

    suite := godog.TestSuite{
        ScenarioInitializer: InitializeCardEventsRelayFeature,
        Options: &godog.Options{
            Format:   "pretty",
            Paths:    []string{"features/card_events_relay.feature"},
            TestingT: t, // Testing instance that will run subtests.
        },
    }

    if suite.Run() != 0 {
        t.Fatal("non-zero status returned, failed to run feature tests")
    }
}

func InitializeCardEventsRelayFeature(ctx *godog.ScenarioContext) {
    ctx.Before(beforeScenarioHook)
    ctx.Given(`^a running kanban relaying events to rabbitmq$`, aRunningKanbanRelayingEventsToRabbitMQ)
    ctx.Given(`^a consumer bound to the cards exchange$`, aConsumerBoundToTheCardsExchange)
    ctx.Given(`^a task with id "([^"]*)" and title "([^"]*)" is opened$`, aTaskIsOpened)
    ctx.When(`^the card "([^"]*)" is assigned to "([^"]*)"$`, theCardIsAssignedTo)
    ctx.When(`^the development of card "([^"]*)" is started$`, theDevelopmentOfTheCardIsStarted)
    ctx.Then(`^the consumer receives the following events:$`, theConsumerReceivesTheFollowingEvents)
    ctx.After(closeConsumerHook)
    ctx.After(afterScenarioHook)
}

func aConsumerBoundToTheCardsExchange(ctx context.Context) (context.Context, error) {
    consumer, err := rabbitmq.NewClient(
        rabbitmq.WithExchangeName(cardsrabbitmq.CardsExchangeName),
        rabbitmq.WithExchangeType(cardsrabbitmq.CardsExchangeType),
        rabbitmq.WithQueueName(consumerQueueName),
        rabbitmq.WithConsumerRoutingKeys(consumerRoutingKey),
    )
    if err != nil {
        return ctx, fmt.Errorf("error creating rabbitmq client: %w", err)
    }
    msgs, err := consumer.Consume()
    if err != nil {
        return ctx, fmt.Errorf("error consuming from rabbitmq: %w", err)
    }
    ctx = context.WithValue(ctx, consumerKey, consumer)
    return context.WithValue(ctx, consumerMessagesKey, msgs), nil
}

func theConsumerReceivesTheFollowingEvents(ctx context.Context, table *godog.Table) (context.Context, error) {
    msgs, ok := ctx.Value(consumerMessagesKey).(<-chan messages.Message)
    if !ok {
        return ctx, fmt.Errorf("consumer messages not found in context")
    }

    // first row is the header
    for _, row := range table.Rows[1:] {
        expectedType := row.Cells[0].Value
        expectedCardId := row.Cells[1].Value
        expectedVersion, err := strconv.ParseUint(row.Cells[2].Value, 10, 64)
        if err != nil {
            return ctx, err
        }

        var msg messages.Message
        select {
        case msg = <-msgs:
        case <-time.After(consumerReceiveTimeout):
            return ctx, fmt.Errorf("timeout waiting for %s event", expectedType)
        }
        err = msg.Acknowledger().Ack()
        if err != nil {
            return ctx, fmt.Errorf("failed acking message: %w", err)
        }

        var envelope events.EventEnvelope
        err = json.Unmarshal(msg.Payload(), &envelope)
        if err != nil {
            return ctx, fmt.Errorf("failed decoding event envelope: %w", err)
        }
        var data struct {
            CardId string `json:"cardId"`
        }
        err = json.Unmarshal(envelope.Data, &data)
        if err != nil {
            return ctx, fmt.Errorf("failed decoding event data: %w", err)
        }

        if envelope.Type != expectedType {
            return ctx, fmt.Errorf("expected event type %s but got %s", expectedType, envelope.Type)
        }
        if data.CardId != expectedCardId {
            return ctx, fmt.Errorf("expected card id %s but got %s", expectedCardId, data.CardId)
        }
        if envelope.AggregateVersion != expectedVersion {
            return ctx, fmt.Errorf("expected aggregate version %d but got %d", expectedVersion, envelope.AggregateVersion)
        }
    }
    return ctx, nil
}

func closeConsumerHook(ctx context.Context, _ *godog.Scenario, err error) (context.Context, error) {
    consumer, ok := ctx.Value(consumerKey).(*rabbitmq.Client)
    if !ok {
        return ctx, nil
    }
    closeErr := consumer.Close()
    if closeErr != nil {
        return ctx, fmt.Errorf("failed closing rabbitmq consumer: %w", closeErr)
    }
    return ctx, nil
}
