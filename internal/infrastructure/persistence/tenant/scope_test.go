package tenant

import (
	"context"
	"testing"

	"github.com/reseller/backend/internal/infrastructure/logger"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type scopedRecord struct {
	ID       uuid.UUID `gorm:"type:uuid;primary_key"`
	TenantID uuid.UUID `gorm:"type:uuid;not null;index"`
	Name     string
}

func (scopedRecord) TableName() string { return "scoped_records" }

// plainRecord has no tenant_id column, like the tenants and plans tables.
type plainRecord struct {
	ID   uuid.UUID `gorm:"type:uuid;primary_key"`
	Name string
}

func (plainRecord) TableName() string { return "plain_records" }

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	// Unique shared-cache name so every pooled connection sees one database.
	db, err := gorm.Open(sqlite.Open("file:"+uuid.NewString()+"?mode=memory&cache=shared"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&scopedRecord{}, &plainRecord{}))
	EnableAutoTenantFilter(db, false)
	return db
}

func ctxForTenant(tenantID uuid.UUID) context.Context {
	ctx, _ := logger.WithTenantID(context.Background(), zap.NewNop(), tenantID.String())
	return ctx
}

func seed(t *testing.T, db *gorm.DB, tenantID uuid.UUID, names ...string) {
	t.Helper()
	for _, name := range names {
		require.NoError(t, db.Create(&scopedRecord{
			ID:       uuid.New(),
			TenantID: tenantID,
			Name:     name,
		}).Error)
	}
}

func TestScopedDBWithContext(t *testing.T) {
	db := newTestDB(t)
	store := NewScopedDB(db)

	tenantA := uuid.New()
	tenantB := uuid.New()
	seed(t, db, tenantA, "a1", "a2")
	seed(t, db, tenantB, "b1")

	t.Run("reads see only the context tenant's rows", func(t *testing.T) {
		var records []scopedRecord
		require.NoError(t, store.WithContext(ctxForTenant(tenantA)).Find(&records).Error)
		assert.Len(t, records, 2)
		for _, r := range records {
			assert.Equal(t, tenantA, r.TenantID)
		}
	})

	t.Run("updates cannot reach another tenant's rows", func(t *testing.T) {
		result := store.WithContext(ctxForTenant(tenantA)).
			Model(&scopedRecord{}).
			Where("name = ?", "b1").
			Update("name", "hijacked")
		require.NoError(t, result.Error)
		assert.Zero(t, result.RowsAffected)
	})

	t.Run("deletes cannot reach another tenant's rows", func(t *testing.T) {
		result := store.WithContext(ctxForTenant(tenantA)).
			Where("name = ?", "b1").
			Delete(&scopedRecord{})
		require.NoError(t, result.Error)
		assert.Zero(t, result.RowsAffected)
	})

	t.Run("queries without the context tenant pass through the filter installer", func(t *testing.T) {
		var records []scopedRecord
		require.NoError(t, db.WithContext(context.Background()).Find(&records).Error)
		assert.Len(t, records, 3)
	})

	t.Run("auto filter applies to a tenant-bound context on the raw DB", func(t *testing.T) {
		var records []scopedRecord
		require.NoError(t, db.WithContext(ctxForTenant(tenantB)).Find(&records).Error)
		require.Len(t, records, 1)
		assert.Equal(t, tenantB, records[0].TenantID)
	})

	t.Run("tables without a tenant_id column are untouched", func(t *testing.T) {
		require.NoError(t, db.Create(&plainRecord{ID: uuid.New(), Name: "p1"}).Error)
		require.NoError(t, db.Create(&plainRecord{ID: uuid.New(), Name: "p2"}).Error)

		var records []plainRecord
		require.NoError(t, db.WithContext(ctxForTenant(tenantA)).Find(&records).Error)
		assert.Len(t, records, 2)
	})

	t.Run("errors when required and no tenant in context", func(t *testing.T) {
		var records []scopedRecord
		err := store.WithContext(context.Background()).Find(&records).Error
		assert.ErrorIs(t, err, ErrTenantRequired)
	})

	t.Run("errors on malformed tenant id", func(t *testing.T) {
		ctx, _ := logger.WithTenantID(context.Background(), zap.NewNop(), "not-a-uuid")
		var records []scopedRecord
		err := store.WithContext(ctx).Find(&records).Error
		assert.ErrorIs(t, err, ErrInvalidTenantID)
	})
}

func TestScopedDBCreateAutoFill(t *testing.T) {
	db := newTestDB(t)
	store := NewScopedDB(db)
	tenantID := uuid.New()

	t.Run("fills tenant_id when the model left it empty", func(t *testing.T) {
		record := &scopedRecord{ID: uuid.New(), Name: "auto"}
		require.NoError(t, store.ForTenant(context.Background(), tenantID).Create(record).Error)
		assert.Equal(t, tenantID, record.TenantID)
	})

	t.Run("keeps an explicitly set tenant_id", func(t *testing.T) {
		other := uuid.New()
		record := &scopedRecord{ID: uuid.New(), TenantID: other, Name: "explicit"}
		require.NoError(t, db.Create(record).Error)
		assert.Equal(t, other, record.TenantID)
	})
}

func TestScopedDBUnscoped(t *testing.T) {
	db := newTestDB(t)
	store := NewScopedDB(db)

	seed(t, db, uuid.New(), "x")
	seed(t, db, uuid.New(), "y")

	var records []scopedRecord
	require.NoError(t, store.Unscoped().Find(&records).Error)
	assert.Len(t, records, 2)
}

func TestScopedDBTransaction(t *testing.T) {
	db := newTestDB(t)
	store := NewScopedDB(db)
	tenantID := uuid.New()
	ctx := ctxForTenant(tenantID)

	t.Run("rolls back on error", func(t *testing.T) {
		err := store.Transaction(ctx, func(tx *gorm.DB) error {
			if err := tx.Create(&scopedRecord{ID: uuid.New(), Name: "tx"}).Error; err != nil {
				return err
			}
			return assert.AnError
		})
		require.Error(t, err)

		var count int64
		require.NoError(t, db.Model(&scopedRecord{}).Count(&count).Error)
		assert.Zero(t, count)
	})

	t.Run("refuses without a tenant in required mode", func(t *testing.T) {
		err := store.Transaction(context.Background(), func(tx *gorm.DB) error { return nil })
		assert.ErrorIs(t, err, ErrTenantRequired)
	})
}
