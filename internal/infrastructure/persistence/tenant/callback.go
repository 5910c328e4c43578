package tenant

import (
	"reflect"
	"strings"

	"github.com/reseller/backend/internal/infrastructure/logger"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// fillTenantKey is the GORM instance setting carrying the tenant to
// auto-fill on create
const fillTenantKey = "tenant:fill_tenant_id"

// Callback installs GORM hooks that add the tenant_id filter to queries,
// updates and deletes, and fill tenant_id on create when the model left
// it empty.
type Callback struct {
	column   string
	required bool
}

// NewCallback creates a tenant callback handler
func NewCallback(column string, required bool) *Callback {
	if column == "" {
		column = "tenant_id"
	}
	return &Callback{column: column, required: required}
}

// Register installs the tenant callbacks on a GORM DB
func (c *Callback) Register(db *gorm.DB) {
	_ = db.Callback().Query().Before("gorm:query").Register("tenant:before_query", c.addFilter)
	_ = db.Callback().Update().Before("gorm:update").Register("tenant:before_update", c.addFilter)
	_ = db.Callback().Delete().Before("gorm:delete").Register("tenant:before_delete", c.addFilter)
	_ = db.Callback().Row().Before("gorm:row").Register("tenant:before_row", c.addFilter)
	_ = db.Callback().Create().Before("gorm:create").Register("tenant:before_create", c.fillOnCreate)
}

// addFilter applies the tenant_id condition to non-create statements.
// Tables without the column (tenants, billing_plans) pass through.
func (c *Callback) addFilter(db *gorm.DB) {
	if db.Statement.Context == nil || db.Statement.Unscoped {
		return
	}
	if db.Statement.Schema == nil || db.Statement.Schema.LookUpField(c.column) == nil {
		return
	}
	if c.hasTenantCondition(db) {
		return
	}

	tenantID := logger.GetTenantID(db.Statement.Context)
	if tenantID == "" {
		if c.required {
			_ = db.AddError(ErrTenantRequired)
		}
		return
	}
	if _, err := uuid.Parse(tenantID); err != nil {
		_ = db.AddError(ErrInvalidTenantID)
		return
	}

	db.Statement.AddClause(clause.Where{
		Exprs: []clause.Expression{
			clause.Eq{
				Column: clause.Column{Table: clause.CurrentTable, Name: c.column},
				Value:  tenantID,
			},
		},
	})
}

// fillOnCreate sets the model's tenant_id when the scope carries one and the
// model left the field zero. An already-set tenant_id is left alone so that
// system code creating rows for an explicit tenant keeps working.
func (c *Callback) fillOnCreate(db *gorm.DB) {
	if db.Statement.Schema == nil {
		return
	}

	tenantID, ok := c.resolveTenant(db)
	if !ok {
		return
	}

	field := db.Statement.Schema.LookUpField(c.column)
	if field == nil {
		return
	}

	switch db.Statement.ReflectValue.Kind() {
	case reflect.Slice, reflect.Array:
		for i := 0; i < db.Statement.ReflectValue.Len(); i++ {
			rv := db.Statement.ReflectValue.Index(i)
			if _, zero := field.ValueOf(db.Statement.Context, rv); zero {
				_ = field.Set(db.Statement.Context, rv, tenantID)
			}
		}
	default:
		if _, zero := field.ValueOf(db.Statement.Context, db.Statement.ReflectValue); zero {
			_ = field.Set(db.Statement.Context, db.Statement.ReflectValue, tenantID)
		}
	}
}

// resolveTenant finds the tenant for create auto-fill: the scope's explicit
// setting first, the context second
func (c *Callback) resolveTenant(db *gorm.DB) (uuid.UUID, bool) {
	if v, ok := db.Get(fillTenantKey); ok {
		if id, ok := v.(uuid.UUID); ok && id != uuid.Nil {
			return id, true
		}
	}
	if db.Statement.Context != nil {
		if raw := logger.GetTenantID(db.Statement.Context); raw != "" {
			if id, err := uuid.Parse(raw); err == nil {
				return id, true
			}
		}
	}
	return uuid.Nil, false
}

// hasTenantCondition checks whether a tenant_id condition is already present
func (c *Callback) hasTenantCondition(db *gorm.DB) bool {
	if whereClause, ok := db.Statement.Clauses["WHERE"]; ok {
		if where, ok := whereClause.Expression.(clause.Where); ok {
			for _, expr := range where.Exprs {
				if c.exprContainsTenant(expr) {
					return true
				}
			}
		}
	}
	if sql := db.Statement.SQL.String(); sql != "" && strings.Contains(sql, c.column) {
		return true
	}
	return false
}

func (c *Callback) exprContainsTenant(expr clause.Expression) bool {
	switch e := expr.(type) {
	case clause.Eq:
		if col, ok := e.Column.(clause.Column); ok {
			return col.Name == c.column
		}
	case clause.IN:
		if col, ok := e.Column.(clause.Column); ok {
			return col.Name == c.column
		}
	case clause.AndConditions:
		for _, cond := range e.Exprs {
			if c.exprContainsTenant(cond) {
				return true
			}
		}
	case clause.OrConditions:
		for _, cond := range e.Exprs {
			if c.exprContainsTenant(cond) {
				return true
			}
		}
	}
	return false
}

// EnableAutoTenantFilter installs tenant callbacks on a GORM DB instance
func EnableAutoTenantFilter(db *gorm.DB, required bool) {
	NewCallback("tenant_id", required).Register(db)
}
