// 包 sqlite：基于 gorm + glebarez/sqlite（纯 Go）的单元存储，FTS5 全文检索可选
package sqlite

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"cambo-gazetteer/internal/domain"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	"gorm.io/plugin/opentelemetry/tracing"
)

// unitRow：administrative_units 表映射
type unitRow struct {
	Code         string  `gorm:"primaryKey"`
	NameKm       string  `gorm:"not null"`
	NameEn       string  `gorm:"not null;index"`
	Type         string  `gorm:"not null;index:idx_units_type_parent,priority:1"`
	TypeKm       *string
	TypeEn       *string
	ParentCode   *string `gorm:"index;index:idx_units_type_parent,priority:2"`
	Reference    *string
	OfficialNote *string
	CheckerNote  *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (unitRow) TableName() string { return "administrative_units" }

func (r unitRow) toDomain() domain.Unit {
	u := domain.Unit{
		Code:         r.Code,
		NameKm:       r.NameKm,
		NameEn:       r.NameEn,
		Type:         domain.UnitType(r.Type),
		TypeKm:       r.TypeKm,
		TypeEn:       r.TypeEn,
		ParentCode:   r.ParentCode,
		Reference:    r.Reference,
		OfficialNote: r.OfficialNote,
		CheckerNote:  r.CheckerNote,
	}
	if !r.CreatedAt.IsZero() {
		t := r.CreatedAt
		u.CreatedAt = &t
	}
	if !r.UpdatedAt.IsZero() {
		t := r.UpdatedAt
		u.UpdatedAt = &t
	}
	return u
}

func fromDomain(u domain.Unit) unitRow {
	return unitRow{
		Code:         u.Code,
		NameKm:       u.NameKm,
		NameEn:       u.NameEn,
		Type:         string(u.Type),
		TypeKm:       u.TypeKm,
		TypeEn:       u.TypeEn,
		ParentCode:   u.ParentCode,
		Reference:    u.Reference,
		OfficialNote: u.OfficialNote,
		CheckerNote:  u.CheckerNote,
	}
}

func toUnits(rows []unitRow) []domain.Unit {
	out := make([]domain.Unit, len(rows))
	for i, r := range rows {
		out[i] = r.toDomain()
	}
	return out
}

type Options struct {
	// Path 为空时使用共享内存库
	Path string
	// SearchIndex 为真时创建 FTS5 虚表与同步触发器
	SearchIndex bool
	Logger      *slog.Logger
}

type Store struct {
	db     *gorm.DB
	logger *slog.Logger
}

// 文档注释：打开 SQLite 存储
// 背景：文件库启用 WAL 与 busy_timeout 以支持并发只读；挂载 gorm 的 OpenTelemetry 插件。
// 约束：表结构由 AutoMigrate 维护；FTS5 仅在 SearchIndex 为真时创建，缺失时检索自动退回 LIKE。
func Open(opts Options) (*Store, error) {
	dsn := "file::memory:?cache=shared"
	if opts.Path != "" {
		dir := filepath.Dir(opts.Path)
		if _, err := os.Stat(dir); err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("failed to read data dir: %w", err)
			}
			if err := os.MkdirAll(dir, fs.ModePerm); err != nil {
				return nil, fmt.Errorf("failed to create data dir: %w", err)
			}
		}
		dsn = fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", opts.Path)
	}
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                 gormlogger.Discard,
		SkipDefaultTransaction: true,
	})
	if err != nil {
		return nil, err
	}
	s := &Store{db: gdb, logger: opts.Logger}
	if s.logger == nil {
		s.logger = slog.New(slog.DiscardHandler)
	}
	if err := gdb.Use(tracing.NewPlugin(tracing.WithoutMetrics())); err != nil {
		return nil, err
	}
	s.logger.Debug(fmt.Sprintf("creating table: %#v", &unitRow{}))
	if err := gdb.AutoMigrate(&unitRow{}); err != nil {
		return nil, err
	}
	if opts.SearchIndex {
		if err := s.ensureFTS(context.Background()); err != nil {
			return nil, fmt.Errorf("create search index: %w", err)
		}
	}
	s.logger.Info("db_open_ok", "driver", "sqlite", "path", opts.Path, "search_index", opts.SearchIndex)
	return s, nil
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *Store) GetByCode(ctx context.Context, code string) (*domain.Unit, error) {
	var row unitRow
	err := s.db.WithContext(ctx).Where("code = ?", code).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	u := row.toDomain()
	return &u, nil
}

// 文档注释：祖先链（根在前）
// 背景：自当前单元沿 parent_code 逐级上溯，树深固定，最多 MaxDepth 次点查。
// 约束：父级缺失即停止，返回已收集部分；未知编码返回空序列。
func (s *Store) Ancestors(ctx context.Context, code string) ([]domain.Unit, error) {
	cur, err := s.GetByCode(ctx, code)
	if err != nil || cur == nil {
		return []domain.Unit{}, err
	}
	var chain []domain.Unit
	for depth := 0; depth < domain.MaxDepth && !cur.IsRoot(); depth++ {
		parent, err := s.GetByCode(ctx, *cur.ParentCode)
		if err != nil {
			return nil, err
		}
		if parent == nil {
			break
		}
		chain = append(chain, *parent)
		cur = parent
	}
	out := make([]domain.Unit, len(chain))
	for i, u := range chain {
		out[len(chain)-1-i] = u
	}
	return out, nil
}

func (s *Store) Children(ctx context.Context, code string) ([]domain.Unit, error) {
	var rows []unitRow
	err := s.db.WithContext(ctx).Where("parent_code = ?", code).Order("name_en, code").Find(&rows).Error
	return toUnits(rows), err
}

// Siblings：以自身 parent_code 关联；根级单元关联不到任何行
func (s *Store) Siblings(ctx context.Context, code string, limit int) ([]domain.Unit, error) {
	var rows []unitRow
	err := s.db.WithContext(ctx).Raw(`SELECT s.* FROM administrative_units s
        JOIN administrative_units self ON self.parent_code = s.parent_code
        WHERE self.code = ? AND s.code <> ?
        ORDER BY s.name_en, s.code LIMIT ?`, code, code, limit).Scan(&rows).Error
	return toUnits(rows), err
}

func (s *Store) ChildrenCount(ctx context.Context, code string) (map[domain.UnitType]int64, error) {
	var rows []struct {
		Type string
		N    int64
	}
	err := s.db.WithContext(ctx).Model(&unitRow{}).
		Select("type, count(*) AS n").
		Where("parent_code = ?", code).
		Group("type").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[domain.UnitType]int64, len(rows))
	for _, r := range rows {
		out[domain.UnitType(r.Type)] = r.N
	}
	return out, nil
}

func (s *Store) List(ctx context.Context, f domain.ListFilter) ([]domain.Unit, int64, error) {
	types := make([]string, len(f.Types))
	for i, t := range f.Types {
		types[i] = string(t)
	}
	filtered := func() *gorm.DB {
		q := s.db.WithContext(ctx).Model(&unitRow{}).Where("type IN ?", types)
		if f.ParentCode != nil {
			q = q.Where("parent_code = ?", *f.ParentCode)
		}
		return q
	}
	var total int64
	if err := filtered().Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var rows []unitRow
	if err := filtered().Order("name_en, code").Offset(f.Offset).Limit(f.Limit).Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return toUnits(rows), total, nil
}

func (s *Store) CountByType(ctx context.Context) ([]domain.TypeCount, error) {
	var rows []struct {
		Type   string
		TypeEn string
		N      int64
	}
	err := s.db.WithContext(ctx).Model(&unitRow{}).
		Select("type, coalesce(type_en, '') AS type_en, count(*) AS n").
		Group("type, type_en").
		Order("type, type_en").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]domain.TypeCount, len(rows))
	for i, r := range rows {
		out[i] = domain.TypeCount{Type: domain.UnitType(r.Type), TypeEn: r.TypeEn, Count: r.N}
	}
	return out, nil
}

var _ domain.UnitRepository = (*Store)(nil)
