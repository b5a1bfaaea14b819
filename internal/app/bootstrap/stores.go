package bootstrap

import (
	"context"
	"fmt"

	appconfig "github.com/vatosalfa/agenda-messaging/internal/config"
	"github.com/vatosalfa/agenda-messaging/internal/conversations"
	"github.com/vatosalfa/agenda-messaging/internal/reservations"
	"github.com/vatosalfa/agenda-messaging/pkg/logging"
)

// Stores groups the document-store adapters for one backend.
type Stores struct {
	Backend       string
	Reservations  reservations.Store
	Conversations conversations.Store
	close         func()
}

// Close releases backend connections.
func (s *Stores) Close() {
	if s != nil && s.close != nil {
		s.close()
	}
}

// BuildStores selects the backend named by STORE_BACKEND.
func BuildStores(ctx context.Context, cfg *appconfig.Config, clients AWSClients, logger *logging.Logger) (*Stores, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}

	switch cfg.StoreBackend {
	case appconfig.StoreBackendDynamo:
		if clients.DynamoDB == nil {
			return nil, fmt.Errorf("bootstrap: dynamodb backend needs a dynamodb client")
		}
		logger.Info("using dynamodb stores",
			"clients_table", cfg.ClientsTable,
			"reservations_table", cfg.ReservationsTable,
			"conversations_table", cfg.ConversationsTable,
			"messages_table", cfg.MessagesTable,
		)
		return &Stores{
			Backend: cfg.StoreBackend,
			Reservations: reservations.NewDynamoStore(clients.DynamoDB, reservations.DynamoTables{
				Clients:          cfg.ClientsTable,
				Reservations:     cfg.ReservationsTable,
				ClientPhoneIndex: cfg.ClientPhoneIndex,
				ReservationIndex: cfg.ReservationIndex,
			}),
			Conversations: conversations.NewDynamoStore(clients.DynamoDB, cfg.ConversationsTable, cfg.MessagesTable),
		}, nil

	case appconfig.StoreBackendPostgres:
		pool, err := ConnectPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		logger.Info("using postgres stores")
		return &Stores{
			Backend:       cfg.StoreBackend,
			Reservations:  reservations.NewPostgresStore(pool),
			Conversations: conversations.NewPostgresStore(pool),
			close:         pool.Close,
		}, nil

	case appconfig.StoreBackendMemory:
		logger.Warn("using in-memory stores; data is lost on restart")
		return &Stores{
			Backend:       cfg.StoreBackend,
			Reservations:  reservations.NewMemoryStore(),
			Conversations: conversations.NewMemoryStore(),
		}, nil

	default:
		return nil, fmt.Errorf("bootstrap: unknown STORE_BACKEND %q", cfg.StoreBackend)
	}
}
