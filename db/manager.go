package db

import (
	"context"
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"
	"gorm.io/plugin/dbresolver"

	"feedgraph/config"
	"feedgraph/models"
)

var ORM *gorm.DB

func dsnFromConfig(dbConf config.DBConfig) string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		dbConf.Host, dbConf.Port, dbConf.User, dbConf.Password, dbConf.Name,
	)
}

func migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.UserTokens{},
		&models.Post{},
		&models.Like{},
		&models.Follow{},
		&models.Friend{},
		&models.TimelineEntry{},
	)
}

// ConnectDB initializes the global ORM from AppConfig: a postgres master
// plus optional read replicas routed through dbresolver.
func ConnectDB() error {
	if ORM != nil {
		return nil
	}
	if config.AppConfig == nil {
		return fmt.Errorf("AppConfig is not loaded")
	}
	conf := config.AppConfig
	if conf.Databases.Master.Host == "" && conf.Databases.Master.Driver != "sqlite" {
		return fmt.Errorf("master database configuration is missing")
	}

	var dialector gorm.Dialector
	if conf.Databases.Master.Driver == "sqlite" {
		dialector = sqlite.Open(conf.Databases.Master.Name)
	} else {
		dialector = postgres.Open(dsnFromConfig(conf.Databases.Master))
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		NamingStrategy: schema.NamingStrategy{
			SingularTable: false,
			NoLowerCase:   false,
		},
	})
	if err != nil {
		return err
	}

	if len(conf.Databases.Replicas) > 0 {
		replicaDSNs := make([]gorm.Dialector, 0, len(conf.Databases.Replicas))
		for _, r := range conf.Databases.Replicas {
			replicaDSNs = append(replicaDSNs, postgres.Open(dsnFromConfig(r)))
		}
		err = db.Use(dbresolver.Register(dbresolver.Config{
			Replicas: replicaDSNs,
			Policy:   dbresolver.RandomPolicy{},
		}))
		if err != nil {
			return err
		}
	}

	if err := migrate(db); err != nil {
		return err
	}

	ORM = db
	return nil
}

// ConnectTest replaces the global ORM with an in-memory sqlite database.
// A single open connection keeps sqlite's table locking out of the way of
// the fan-out goroutines the tests exercise.
func ConnectTest() error {
	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	sqlDB.SetMaxOpenConns(1)
	if err := migrate(db); err != nil {
		return err
	}
	ORM = db
	return nil
}

// GetReadOnlyDB returns a connection routed to the read replicas.
func GetReadOnlyDB(ctx context.Context) *gorm.DB {
	return ORM.WithContext(ctx).Clauses(dbresolver.Read)
}

// GetWriteDB returns a connection routed to the master.
func GetWriteDB(ctx context.Context) *gorm.DB {
	return ORM.WithContext(ctx).Clauses(dbresolver.Write)
}
