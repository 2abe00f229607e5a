package storage

import (
	"strings"
	"time"

	"github.com/cnap-oss/agent-runner/internal/common"
	gormlogger "gorm.io/gorm/logger"
)

// Dialect는 sql 저장소가 사용할 데이터베이스 종류입니다.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

// Config는 GORM 데이터베이스 설정 값을 보관합니다.
type Config struct {
	DSN                  string
	LogLevel             gormlogger.LogLevel
	// 연결 풀 설정은 postgres에만 적용됩니다
	MaxIdleConns         int
	MaxOpenConns         int
	ConnMaxLifetime      time.Duration
	SkipDefaultTxn       bool
	PrepareStmt          bool
	DisableAutomaticPing bool
	// PurgeOnOpen은 열 때 기존 태스크를 모두 지웁니다. 레코드는 프로세스 수명 동안만 유효합니다.
	PurgeOnOpen bool
}

// ConfigFromStore는 common.StoreConfig에서 Config를 구성합니다.
func ConfigFromStore(cfg common.StoreConfig) Config {
	return Config{
		DSN:             cfg.DSN,
		LogLevel:        cfg.GormLogLevel(),
		MaxIdleConns:    2,
		MaxOpenConns:    10,
		ConnMaxLifetime: time.Hour,
		SkipDefaultTxn:  true,
		PurgeOnOpen:     true,
	}
}

// Dialect는 DSN 형식으로 데이터베이스 종류를 판별합니다.
func (c Config) Dialect() Dialect {
	dsn := strings.TrimSpace(c.DSN)
	switch {
	case strings.HasPrefix(dsn, "postgres://"),
		strings.HasPrefix(dsn, "postgresql://"),
		strings.HasPrefix(dsn, "host="):
		return DialectPostgres
	default:
		return DialectSQLite
	}
}
