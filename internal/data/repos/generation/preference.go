package generation

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/artforge-backend/internal/domain"
	"github.com/yungbote/artforge-backend/internal/platform/dbctx"
	"github.com/yungbote/artforge-backend/internal/platform/logger"
)

type PreferenceRepo interface {
	// ListByCategory returns entries in seed order.
	ListByCategory(dbc dbctx.Context, category types.PreferenceCategory) ([]*types.PreferenceEntry, error)
	// SeedMissing inserts rows whose (category, key) does not exist yet and leaves
	// existing rows untouched.
	SeedMissing(dbc dbctx.Context, rows []*types.PreferenceEntry) error
	// SaveCounters upserts the counters (and derived rating) for one entry.
	SaveCounters(dbc dbctx.Context, row *types.PreferenceEntry) error
}

type preferenceRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewPreferenceRepo(db *gorm.DB, baseLog *logger.Logger) PreferenceRepo {
	return &preferenceRepo{
		db:  db,
		log: baseLog.With("repo", "PreferenceRepo"),
	}
}

func (r *preferenceRepo) ListByCategory(dbc dbctx.Context, category types.PreferenceCategory) ([]*types.PreferenceEntry, error) {
	var out []*types.PreferenceEntry
	if err := dbc.DB(r.db).
		Where("category = ?", category).
		Order("position ASC").
		Order("key ASC").
		Find(&out).Error; err != nil {
		return nil, mapError("list preferences", err)
	}
	return out, nil
}

func (r *preferenceRepo) SeedMissing(dbc dbctx.Context, rows []*types.PreferenceEntry) error {
	if len(rows) == 0 {
		return nil
	}
	now := time.Now().UTC()
	for _, row := range rows {
		if row.ID == uuid.Nil {
			row.ID = uuid.New()
		}
		if row.UpdatedAt.IsZero() {
			row.UpdatedAt = now
		}
	}
	err := dbc.DB(r.db).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "category"}, {Name: "key"}},
			DoNothing: true,
		}).
		Create(&rows).Error
	return mapError("seed preferences", err)
}

func (r *preferenceRepo) SaveCounters(dbc dbctx.Context, row *types.PreferenceEntry) error {
	if row == nil {
		return nil
	}
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	row.UpdatedAt = time.Now().UTC()
	err := dbc.DB(r.db).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "category"}, {Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"used_count", "success_count", "rating", "updated_at"}),
		}).
		Create(row).Error
	return mapError("save preference", err)
}
