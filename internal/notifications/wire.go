package notifications

import (
	"errors"

	"github.com/gostly/gostly-backend/pkg/config"
	"github.com/gostly/gostly-backend/pkg/db"
	"github.com/gostly/gostly-backend/pkg/logger"
	"github.com/gostly/gostly-backend/pkg/mailer"
	"github.com/gostly/gostly-backend/pkg/metrics"
	"github.com/gostly/gostly-backend/pkg/outbox"
	"github.com/gostly/gostly-backend/pkg/outbox/registry"
)

// NewHandoffRelay wires the relay used by both binaries: outbox rows from the
// database, handoff emails through mail. guard may be nil.
func NewHandoffRelay(cfg config.OutboxConfig, client *db.Client, mail mailer.Mailer, guard processedGuard, jobMetrics *metrics.JobMetrics, logg *logger.Logger) (*Relay, error) {
	if client == nil {
		return nil, errors.New("database client is required")
	}
	dispatcher, err := NewHandoffDispatcher(mail, guard, logg)
	if err != nil {
		return nil, err
	}
	return NewRelay(RelayParams{
		Config:      cfg,
		Logger:      logg,
		DB:          client,
		Repository:  outbox.NewRepository(client.DB()),
		DLQ:         outbox.NewDLQRepository(client.DB()),
		Registry:    registry.NewEventRegistry(),
		Dispatchers: map[string]Dispatcher{registry.ChannelEmail: dispatcher},
		Metrics:     jobMetrics,
	})
}
