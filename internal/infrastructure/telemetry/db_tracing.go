package telemetry

import (
	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// RegisterDBTracing registers the otelgorm plugin on the GORM instance so
// every query shows up as a child span of the request that issued it.
// Query variables are excluded from the recorded statements.
func RegisterDBTracing(db *gorm.DB, enabled bool, logger *zap.Logger) error {
	if !enabled {
		logger.Debug("Database tracing disabled, skipping otelgorm registration")
		return nil
	}

	plugin := otelgorm.NewPlugin(
		otelgorm.WithoutQueryVariables(),
	)
	if err := db.Use(plugin); err != nil {
		return err
	}

	logger.Info("Database tracing enabled")
	return nil
}
