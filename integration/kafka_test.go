package integration

import (
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"expenses/api"
	"expenses/auth"
	"expenses/config"
	"expenses/events"
	"expenses/harness"
	"expenses/models"
	"expenses/queue"
	"expenses/store"
	"expenses/users"
)

// TestCreateExpense_EmitsEventOnKafka runs a second service instance with the
// Kafka transport against an external broker (KAFKA_BROKER) and observes the
// topic through the harness instead of a RabbitMQ queue.
func TestCreateExpense_EmitsEventOnKafka(t *testing.T) {
	if !enabled() || os.Getenv("ITEST_KAFKA") != "1" {
		t.Skip("ITEST=1 and ITEST_KAFKA=1 not set; skipping kafka scenario")
	}
	settings := env.settings
	settings.KafkaBroker = config.GetEnv("KAFKA_BROKER", settings.KafkaBroker)
	topic := settings.KafkaTopic + "." + uuid.NewString()[:8]

	creds, err := auth.NewCredentials(settings.BasicAPIUser, settings.BasicAPIUserPassword)
	require.NoError(t, err)
	publisher := events.NewKafkaPublisher(settings.KafkaBroker, topic, settings.KafkaErrorTopic)
	t.Cleanup(func() { _ = publisher.Close() })
	srv := httptest.NewServer(api.NewServer(api.Deps{
		Repo:      store.NewMemory(),
		Users:     users.NewClient(settings.UsersServicePath, nil),
		Publisher: publisher,
		Auth:      creds,
		Transport: config.TransportKafka,
	}))
	t.Cleanup(srv.Close)
	settings.WebEndpoint = srv.URL

	source := queue.NewKafkaSource([]string{settings.KafkaBroker}, "expenses-itest-"+uuid.NewString(), 500*time.Millisecond)
	sc := newScenarioWith(t, settings, harness.WithReader(source))

	user := newUser()
	sc.users.withGetUser(user.toGetUserResponse()).start(t)
	expense := newExpense().withUserID(user.ID)
	_, err = expense.create(sc)
	require.NoError(t, err)

	want := expense.toCreatedEvent()
	_, err = harness.WaitForMessage(sc.ctx, sc.Fixture, topic, func(c *harness.Check, ev models.ExpenseCreatedEvent) {
		assert.Equal(c, want, ev)
	})
	require.NoError(t, err)
}
