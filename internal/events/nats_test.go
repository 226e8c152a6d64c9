package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sumandas0/catalog/internal/models"
)

func startTestServer(t *testing.T) *natsserver.Server {
	t.Helper()

	ns, err := natsserver.NewServer(&natsserver.Options{
		Host:   "127.0.0.1",
		Port:   -1,
		NoLog:  true,
		NoSigs: true,
	})
	require.NoError(t, err)

	go ns.Start()
	if !ns.ReadyForConnections(10 * time.Second) {
		t.Fatal("nats server failed to start")
	}
	t.Cleanup(func() {
		ns.Shutdown()
		ns.WaitForShutdown()
	})
	return ns
}

func sampleEvent() *ChangeEvent {
	return &ChangeEvent{
		EventType:          EventEntityUpdated,
		EntityType:         models.EntityTypePipeline,
		EntityID:           uuid.New(),
		FullyQualifiedName: "airflow.etl",
		Version:            models.MustParseVersion("0.2"),
		PreviousVersion:    &models.InitialVersion,
		ChangeDescription: &models.ChangeDescription{
			PreviousVersion: models.InitialVersion,
			FieldsAdded:     []models.FieldChange{{Name: "description", NewValue: "nightly"}},
		},
		UserName:  "alice",
		Timestamp: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

func TestNATSPublisher_Publish(t *testing.T) {
	ns := startTestServer(t)

	nc, err := nats.Connect(ns.ClientURL())
	require.NoError(t, err)
	defer nc.Close()

	publisher, err := ConnectNATS(ns.ClientURL(), "catalog.test", zerolog.Nop())
	require.NoError(t, err)

	received := make(chan *nats.Msg, 1)
	sub, err := nc.ChanSubscribe("catalog.test.>", received)
	require.NoError(t, err)
	defer func() { _ = sub.Unsubscribe() }()
	require.NoError(t, nc.Flush())

	event := sampleEvent()
	require.NoError(t, publisher.Publish(context.Background(), event))
	require.NoError(t, publisher.Close())

	select {
	case msg := <-received:
		assert.Equal(t, "catalog.test.pipeline.entityUpdated", msg.Subject)

		var got ChangeEvent
		require.NoError(t, json.Unmarshal(msg.Data, &got))
		assert.Equal(t, event.EntityID, got.EntityID)
		assert.Equal(t, "0.2", got.Version.String())
		assert.Equal(t, "0.1", got.PreviousVersion.String())
		require.NotNil(t, got.ChangeDescription)
		assert.Equal(t, "description", got.ChangeDescription.FieldsAdded[0].Name)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for change event")
	}
}

func TestNATSPublisher_DefaultSubject(t *testing.T) {
	ns := startTestServer(t)

	nc, err := nats.Connect(ns.ClientURL())
	require.NoError(t, err)
	defer nc.Close()

	publisher := NewNATSPublisher(nc, "", zerolog.Nop())
	event := sampleEvent()
	event.EventType = EventEntityDeleted

	assert.Equal(t, "catalog.events.pipeline.entityDeleted", publisher.Subject(event))
	require.NoError(t, publisher.Publish(context.Background(), event))
	require.NoError(t, publisher.Close())
	assert.False(t, nc.IsClosed(), "borrowed connection stays open")
}

func TestCallbackPublisher(t *testing.T) {
	var got []*ChangeEvent
	p := NewCallbackPublisher(func(_ context.Context, e *ChangeEvent) error {
		got = append(got, e)
		return nil
	})

	event := sampleEvent()
	require.NoError(t, p.Publish(context.Background(), event))
	require.NoError(t, p.Close())
	assert.Equal(t, []*ChangeEvent{event}, got)

	assert.NoError(t, NoOpPublisher{}.Publish(context.Background(), event))
}
