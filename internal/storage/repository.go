package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cnap-oss/agent-runner/internal/a2a"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Open은 DSN에 맞는 드라이버로 데이터베이스를 열고 스키마를 마이그레이션합니다.
func Open(cfg Config, logger *zap.Logger) (*gorm.DB, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("storage: empty DSN")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	var dialector gorm.Dialector
	dialect := cfg.Dialect()
	switch dialect {
	case DialectPostgres:
		dialector = postgres.Open(cfg.DSN)
	default:
		dialector = sqlite.Open(cfg.DSN)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.New(zap.NewStdLog(logger), gormlogger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  cfg.LogLevel,
			IgnoreRecordNotFoundError: true,
		}),
		SkipDefaultTransaction: cfg.SkipDefaultTxn,
		PrepareStmt:            cfg.PrepareStmt,
		DisableAutomaticPing:   cfg.DisableAutomaticPing,
	})
	if err != nil {
		return nil, fmt.Errorf("storage: open %s: %w", dialect, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("storage: access sql.DB: %w", err)
	}
	if dialect == DialectSQLite {
		// sqlite는 단일 연결로 쓰기를 직렬화합니다.
		// 메모리 DB는 마지막 연결이 닫히면 사라지므로 연결을 재활용하지 않습니다.
		sqlDB.SetMaxOpenConns(1)
		sqlDB.SetMaxIdleConns(1)
		sqlDB.SetConnMaxLifetime(0)
		sqlDB.SetConnMaxIdleTime(0)
	} else {
		if cfg.MaxOpenConns > 0 {
			sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
		}
		if cfg.MaxIdleConns > 0 {
			sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
		}
		if cfg.ConnMaxLifetime > 0 {
			sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
		}
	}

	if err := db.AutoMigrate(&TaskRecord{}); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("storage: migrate: %w", err)
	}

	if cfg.PurgeOnOpen {
		if err := db.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&TaskRecord{}).Error; err != nil {
			_ = sqlDB.Close()
			return nil, fmt.Errorf("storage: purge tasks: %w", err)
		}
	}

	logger.Info("Opened sql task store", zap.String("dialect", string(dialect)))
	return db, nil
}

// Repository는 gorm 기반 Store 구현입니다.
type Repository struct {
	db *gorm.DB
	// read-modify-write를 프로세스 안에서 직렬화합니다
	mu sync.Mutex
}

// ensure Repository implements Store interface
var _ Store = (*Repository)(nil)

// NewRepository는 전달된 gorm DB를 이용해 Repository를 생성합니다.
func NewRepository(db *gorm.DB) (*Repository, error) {
	if db == nil {
		return nil, fmt.Errorf("storage: repository requires a non-nil db handle")
	}
	return &Repository{db: db}, nil
}

// DB는 내부 gorm DB 참조를 반환합니다.
func (r *Repository) DB() *gorm.DB {
	return r.db
}

// Create는 새로운 태스크 레코드를 추가합니다.
func (r *Repository) Create(ctx context.Context, task *a2a.Task) error {
	if task == nil {
		return fmt.Errorf("storage: nil task payload")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&TaskRecord{}).Where("task_id = ?", task.ID).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ErrTaskExists
		}

		var record TaskRecord
		record.apply(task.Clone())
		return tx.Create(&record).Error
	})
}

// Get은 작업 식별자로 레코드를 조회합니다.
func (r *Repository) Get(ctx context.Context, taskID string) (*a2a.Task, error) {
	record, err := findTask(r.db.WithContext(ctx), taskID)
	if err != nil {
		return nil, err
	}
	return record.toTask(), nil
}

// Update는 트랜잭션 안에서 레코드를 읽고 fn을 적용한 뒤 저장합니다.
func (r *Repository) Update(ctx context.Context, taskID string, fn UpdateFunc) (*a2a.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var updated *a2a.Task
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		record, err := findTask(tx, taskID)
		if err != nil {
			return err
		}

		working := record.toTask()
		if err := fn(working); err != nil {
			return err
		}
		working.ID = taskID

		record.apply(working)
		if err := tx.Save(record).Error; err != nil {
			return err
		}
		updated = working.Clone()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Close는 데이터베이스 연결을 닫습니다.
func (r *Repository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func findTask(db *gorm.DB, taskID string) (*TaskRecord, error) {
	var record TaskRecord
	if err := db.Where("task_id = ?", taskID).First(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, err
	}
	return &record, nil
}
