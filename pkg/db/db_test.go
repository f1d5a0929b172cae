package db

import (
	"testing"

	"backflow/conf"

	"github.com/stretchr/testify/assert"
)

func TestDSN(t *testing.T) {
	cfg := NewConfig(conf.Db{DbName: "backflow", Host: "127.0.0.1", Port: "3306", Username: "bf", Password: "secret"})
	assert.Equal(t, "bf:secret@tcp(127.0.0.1:3306)/backflow?charset=utf8mb4&parseTime=true&loc=UTC", cfg.DSN())

	cfg = Config{User: "u", Password: "p", Host: "db.internal:3307", DBName: "x"}
	assert.Equal(t, "u:p@tcp(db.internal:3307)/x?charset=utf8mb4&parseTime=false&loc=UTC", cfg.DSN())
}
