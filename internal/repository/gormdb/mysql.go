package gormdb

import (
	"net"
	"time"

	mysqldriver "github.com/go-sql-driver/mysql"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"imagedetect/internal/config"
)

// mysqlDSN builds the connection string for the configured MySQL server.
func mysqlDSN(cfg *config.Config) string {
	mc := mysqldriver.NewConfig()
	mc.User = cfg.DBUser
	mc.Passwd = cfg.DBPassword
	mc.Net = "tcp"
	mc.Addr = net.JoinHostPort(cfg.DBHost, cfg.DBPort)
	mc.DBName = cfg.DBName
	mc.ParseTime = true
	mc.Loc = time.UTC
	mc.Params = map[string]string{"charset": "utf8mb4"}
	return mc.FormatDSN()
}

func mysqlDialector(cfg *config.Config) gorm.Dialector {
	return mysql.New(mysql.Config{
		DSN: mysqlDSN(cfg),
		// The version probe would dial the server inside gorm.Open.
		SkipInitializeWithVersion: true,
	})
}
