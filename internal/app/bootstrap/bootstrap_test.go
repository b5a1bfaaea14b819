package bootstrap

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appconfig "github.com/vatosalfa/agenda-messaging/internal/config"
	"github.com/vatosalfa/agenda-messaging/internal/inbound"
	"github.com/vatosalfa/agenda-messaging/internal/notify"
	"github.com/vatosalfa/agenda-messaging/pkg/logging"
)

func testConfig() *appconfig.Config {
	return &appconfig.Config{
		StoreBackend:     appconfig.StoreBackendMemory,
		DispatchMode:     appconfig.DispatchSync,
		WorkerCount:      1,
		TwilioAuthToken:  "token",
		DedupeTTL:        time.Hour,
		BusinessTimezone: "America/Mexico_City",
	}
}

func TestBuildRedisClientDisabled(t *testing.T) {
	if client := BuildRedisClient(context.Background(), &appconfig.Config{}, logging.New("error"), true); client != nil {
		t.Fatalf("expected nil client without REDIS_ADDR")
	}
}

func TestBuildRedisClientVerifies(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := &appconfig.Config{RedisAddr: mr.Addr()}
	client := BuildRedisClient(context.Background(), cfg, logging.New("error"), true)
	require.NotNil(t, client)
	t.Cleanup(func() { _ = client.Close() })

	mr.Close()
	assert.Nil(t, BuildRedisClient(context.Background(), cfg, logging.New("error"), true))
}

func TestConnectPostgresRequiresURL(t *testing.T) {
	_, err := ConnectPostgres(context.Background(), " ")
	assert.Error(t, err)
}

func TestBuildStores(t *testing.T) {
	logger := logging.New("error")

	stores, err := BuildStores(context.Background(), testConfig(), AWSClients{}, logger)
	require.NoError(t, err)
	assert.NotNil(t, stores.Reservations)
	assert.NotNil(t, stores.Conversations)
	stores.Close()

	cfg := testConfig()
	cfg.StoreBackend = appconfig.StoreBackendDynamo
	_, err = BuildStores(context.Background(), cfg, AWSClients{}, logger)
	assert.ErrorContains(t, err, "dynamodb client")

	cfg.StoreBackend = "mongo"
	_, err = BuildStores(context.Background(), cfg, AWSClients{}, logger)
	assert.ErrorContains(t, err, "unknown STORE_BACKEND")
}

func TestBuildDispatchModes(t *testing.T) {
	logger := logging.New("error")
	cfg := testConfig()
	stores, err := BuildStores(context.Background(), cfg, AWSClients{}, logger)
	require.NoError(t, err)
	pipeline, err := BuildPipeline(cfg, stores, AWSClients{}, nil, logger)
	require.NoError(t, err)

	sync, err := BuildDispatch(cfg, pipeline.Processor, AWSClients{}, logger)
	require.NoError(t, err)
	assert.IsType(t, &inbound.SyncDispatcher{}, sync.Dispatcher)
	assert.Nil(t, sync.Worker)

	cfg.DispatchMode = appconfig.DispatchQueue
	cfg.UseMemoryQueue = true
	mem, err := BuildDispatch(cfg, pipeline.Processor, AWSClients{}, logger)
	require.NoError(t, err)
	assert.IsType(t, &inbound.QueueDispatcher{}, mem.Dispatcher)
	assert.NotNil(t, mem.Worker)

	cfg.UseMemoryQueue = false
	_, err = BuildDispatch(cfg, pipeline.Processor, AWSClients{}, logger)
	assert.ErrorContains(t, err, "INBOUND_QUEUE_URL")

	cfg.InboundQueueURL = "http://localhost:4566/000000000000/inbound"
	_, err = BuildDispatch(cfg, pipeline.Processor, AWSClients{}, logger)
	assert.ErrorContains(t, err, "sqs client")
}

func TestBuildEmailSenderFallsBackToStub(t *testing.T) {
	logger := logging.New("error")
	cfg := testConfig()
	cfg.EmailProvider = "sendgrid"
	assert.IsType(t, &notify.StubEmailSender{}, BuildEmailSender(cfg, AWSClients{}, logger))

	cfg.EmailProvider = "ses"
	sender := BuildEmailSender(cfg, AWSClients{}, logger)
	assert.IsType(t, &notify.StubEmailSender{}, sender)
	assert.NotPanics(t, func() {
		_ = sender.Send(context.Background(), notify.EmailMessage{To: "staff@vatosalfa.mx", Subject: "Cita cancelada", Body: "r-09"})
	})

	cfg.EmailProvider = "sendgrid"
	cfg.SendGridAPIKey = "SG.test"
	assert.IsType(t, &notify.SendGridSender{}, BuildEmailSender(cfg, AWSClients{}, logger))

	cfg.EmailProvider = "ses"
	clients := AWSClients{SES: sesv2.New(sesv2.Options{Region: "us-east-1"})}
	assert.IsType(t, &notify.SESSender{}, BuildEmailSender(cfg, clients, logger))
}

func TestBuildCancellationNotifierNeedsRecipient(t *testing.T) {
	logger := logging.New("error")
	cfg := testConfig()
	assert.Nil(t, BuildCancellationNotifier(cfg, AWSClients{}, logger))

	cfg.StaffAlertEmail = "gerencia@vatosalfa.mx"
	assert.NotNil(t, BuildCancellationNotifier(cfg, AWSClients{}, logger))
}

func TestBuildMediaArchiverDisabled(t *testing.T) {
	cfg := testConfig()
	cfg.MediaArchiveBucket = "vatosalfa-media"
	assert.Nil(t, BuildMediaArchiver(cfg, AWSClients{}, logging.New("error")))
}

func TestBuildMessagingHandlerWithoutToken(t *testing.T) {
	cfg := testConfig()
	cfg.TwilioAuthToken = ""
	logger := logging.New("error")
	stores, err := BuildStores(context.Background(), cfg, AWSClients{}, logger)
	require.NoError(t, err)
	pipeline, err := BuildPipeline(cfg, stores, AWSClients{}, nil, logger)
	require.NoError(t, err)
	dispatch, err := BuildDispatch(cfg, pipeline.Processor, AWSClients{}, logger)
	require.NoError(t, err)

	assert.NotNil(t, BuildMessagingHandler(cfg, dispatch.Dispatcher, nil, nil, logger))
	assert.Nil(t, BuildOutboundSender(cfg, nil, logger))

	inbox, err := BuildAdminInbox(pipeline.Recorder, nil, logger)
	require.NoError(t, err)
	assert.NotNil(t, inbox)
}
