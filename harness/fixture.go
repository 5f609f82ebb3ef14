// Package harness drives scenarios against the running expenses service: it
// resets database and broker state, calls the HTTP API, serves fake
// downstream services and waits for eventually-consistent effects.
package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"expenses/config"
	"expenses/database"
	"expenses/logger"
	"expenses/models"
	"expenses/poll"
	"expenses/queue"
	"expenses/stub"
)

// Credentials are Basic-Auth credentials for the service under test.
type Credentials struct {
	Username string
	Password string
}

// Truncater resets persistent state between scenarios.
type Truncater interface {
	Truncate(ctx context.Context) error
}

// Timings are the poll budgets of the wait helpers.
type Timings struct {
	Message      poll.Options
	ManyMessages poll.Options
	API          poll.Options
	Database     poll.Options
}

func DefaultTimings() Timings {
	return Timings{
		Message:      poll.MessageOptions,
		ManyMessages: poll.ManyMessagesOptions,
		API:          poll.APIOptions,
		Database:     poll.DatabaseOptions,
	}
}

type Option func(*Fixture)

// WithEngine uses engine instead of dialing RabbitMQ from settings.
func WithEngine(engine queue.Engine) Option { return func(f *Fixture) { f.engine = engine } }

// WithReader reads messages from r (e.g. a queue.KafkaSource) while topology
// still goes through the engine.
func WithReader(r queue.Reader) Option { return func(f *Fixture) { f.reader = r } }

// WithDatabase replaces the Postgres cleaner built from settings.
func WithDatabase(db Truncater) Option { return func(f *Fixture) { f.db = db } }

func WithHTTPClient(c *http.Client) Option { return func(f *Fixture) { f.client = c } }

func WithTimings(t Timings) Option { return func(f *Fixture) { f.timings = t } }

// WithEventExchanges sets the production exchanges the test queue observes.
func WithEventExchanges(names ...string) Option {
	return func(f *Fixture) { f.eventExchanges = names }
}

// Fixture owns one broker connection for its lifetime and every stub server
// started through it.
type Fixture struct {
	settings       config.Settings
	engine         queue.Engine
	reader         queue.Reader
	db             Truncater
	cleaner        *database.Cleaner
	client         *http.Client
	timings        Timings
	eventExchanges []string

	serviceQueue string
	testQueue    string

	mu    sync.Mutex
	stubs []*stub.Server
}

// New builds a fixture. Unless overridden by options it dials RabbitMQ and
// prepares a Postgres cleaner from settings.
func New(ctx context.Context, settings config.Settings, opts ...Option) (*Fixture, error) {
	f := &Fixture{
		settings:       settings,
		timings:        DefaultTimings(),
		eventExchanges: []string{models.ExpenseCreatedExchange},
		serviceQueue:   strings.ToLower(settings.ServiceQueueName),
		testQueue:      strings.ToLower(settings.TestQueue),
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.client == nil {
		f.client = &http.Client{Timeout: 30 * time.Second}
	}
	if f.engine == nil {
		engine, err := queue.Dial(ctx, queue.Config{
			Host:     settings.RabbitMQHost,
			Port:     strconv.Itoa(settings.RabbitMQPort),
			Username: settings.RabbitMQUsername,
			Password: settings.RabbitMQPassword,
			VHost:    settings.RabbitMQVHost,
		})
		if err != nil {
			return nil, fmt.Errorf("harness: %w", err)
		}
		f.engine = engine
	}
	if f.reader == nil {
		f.reader = f.engine
	}
	if f.db == nil && settings.ConnectionString != "" {
		f.cleaner = database.NewCleaner(settings.ConnectionString)
		f.db = f.cleaner
	}
	if c, ok := f.db.(*database.Cleaner); ok {
		f.cleaner = c
	}
	return f, nil
}

func (f *Fixture) Settings() config.Settings { return f.settings }

func (f *Fixture) Engine() queue.Engine { return f.engine }

func (f *Fixture) ServiceQueue() string { return f.serviceQueue }

func (f *Fixture) TestQueue() string { return f.testQueue }

// DefaultCredentials are the API user from settings.
func (f *Fixture) DefaultCredentials() Credentials {
	return Credentials{Username: f.settings.BasicAPIUser, Password: f.settings.BasicAPIUserPassword}
}

// Setup resets state before a scenario. Steps run strictly in order; the
// error exchange must exist before anything is bound to it.
func (f *Fixture) Setup(ctx context.Context) error {
	if f.db != nil {
		if err := f.db.Truncate(ctx); err != nil {
			return fmt.Errorf("setup: truncate: %w", err)
		}
	}
	if err := f.engine.CreateQueueIfAbsent(ctx, f.serviceQueue, f.testQueue); err != nil {
		return fmt.Errorf("setup: create queues: %w", err)
	}
	err := f.engine.PurgeQueues(ctx,
		f.serviceQueue,
		queue.ErrorQueueName(f.serviceQueue),
		f.testQueue,
		queue.ErrorQueueName(f.testQueue))
	if err != nil {
		return fmt.Errorf("setup: purge: %w", err)
	}
	if err := f.engine.BindExchangeToExchange(ctx, queue.ErrorQueueName(f.serviceQueue), queue.ErrorQueueName(f.testQueue)); err != nil {
		return fmt.Errorf("setup: bind error exchange: %w", err)
	}
	for _, ex := range f.eventExchanges {
		if err := f.engine.BindQueueToExchange(ctx, f.testQueue, ex); err != nil {
			return fmt.Errorf("setup: bind %s: %w", ex, err)
		}
	}
	logger.Debug("scenario setup complete", logger.FieldKV("service_queue", f.serviceQueue), logger.FieldKV("test_queue", f.testQueue))
	return nil
}

// StartStub starts a stub server that is closed with the fixture.
func (f *Fixture) StartStub(baseURL string, endpoints ...stub.Endpoint) (*stub.Server, error) {
	s := stub.NewServer(baseURL, endpoints...)
	if err := s.Start(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	f.stubs = append(f.stubs, s)
	f.mu.Unlock()
	return s, nil
}

// Close stops every stub and releases the broker connection.
func (f *Fixture) Close(ctx context.Context) error {
	f.mu.Lock()
	stubs := f.stubs
	f.stubs = nil
	f.mu.Unlock()

	var g errgroup.Group
	for _, s := range stubs {
		s := s
		g.Go(func() error { return s.Close(ctx) })
	}
	g.Go(f.engine.Close)
	if c, ok := f.reader.(io.Closer); ok && f.reader != queue.Reader(f.engine) {
		g.Go(c.Close)
	}
	return g.Wait()
}

func (f *Fixture) observe(kind string) func(int, error) {
	return func(attempt int, err error) {
		logger.Debug("condition not met", logger.FieldKV("wait", kind), logger.FieldKV("attempt", attempt), logger.FieldKV("error", err.Error()))
	}
}

func withObserver(o poll.Options, fn func(int, error)) poll.Options {
	if o.OnAttempt == nil {
		o.OnAttempt = fn
	}
	return o
}

// isInfrastructure tells reader failures that should abort a wait apart from
// a malformed message, which is consumed and retried past.
func isInfrastructure(err error) bool {
	return err != nil && !errors.Is(err, queue.ErrMalformedEnvelope)
}
