package tester

import (
	"os"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/docvault/docvault/internal/model"
)

const (
	testPath = "../../.test/"
)

var (
	db *gorm.DB
)

func Setup() {
	RemoveDBFile()

	_ = os.Setenv("ENV", "test")

	err := os.MkdirAll(testPath+"/db", os.ModePerm)
	if err != nil {
		panic(err)
	}

	// WAL and a busy timeout so concurrent writers in tests queue up
	// instead of failing with SQLITE_BUSY.
	db, err = gorm.Open(sqlite.Open(testPath+"db/docvault.db?_busy_timeout=10000&_journal_mode=WAL"), &gorm.Config{})
	if err != nil {
		panic(err)
	}

	err = model.Migrate(db)
	if err != nil {
		panic(err)
	}
}

func TestDB() *gorm.DB {
	return db
}

func RemoveDBFile() {
	err := os.RemoveAll(testPath + "db")
	if err != nil {
		panic(err)
	}
}

// ScratchDir creates a fresh directory for content and cache fixtures.
func ScratchDir(name string) string {
	dir := testPath + name
	if err := os.RemoveAll(dir); err != nil {
		panic(err)
	}
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		panic(err)
	}
	return dir
}
