package database

import (
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type testRow struct {
	ID   int64 `gorm:"primaryKey"`
	Name string
}

func TestParseLogLevel(t *testing.T) {
	cases := map[string]logger.LogLevel{
		"silent": logger.Silent,
		"ERROR":  logger.Error,
		"info":   logger.Info,
		"":       logger.Warn,
		"bogus":  logger.Warn,
	}
	for in, want := range cases {
		if got := ParseLogLevel(in); got != want {
			t.Errorf("ParseLogLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestConfigureAndMigrate(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("连接测试数据库失败: %v", err)
	}

	if err := Configure(db, Options{MaxOpenConns: 1}); err != nil {
		t.Fatalf("Configure 失败: %v", err)
	}
	if err := Migrate(db, &testRow{}); err != nil {
		t.Fatalf("Migrate 失败: %v", err)
	}
	if !db.Migrator().HasTable(&testRow{}) {
		t.Error("迁移后表不存在")
	}

	sqlDB, _ := db.DB()
	if got := sqlDB.Stats().MaxOpenConnections; got != 1 {
		t.Errorf("MaxOpenConnections = %d, want 1", got)
	}
	if err := Close(db); err != nil {
		t.Errorf("Close 失败: %v", err)
	}
}
