package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/dev7ch/api/internal/analytics"
	"github.com/dev7ch/api/internal/config"
	"github.com/dev7ch/api/internal/handler"
	"github.com/dev7ch/api/internal/migration"
	"github.com/dev7ch/api/internal/repository"
	"github.com/dev7ch/api/internal/routes"
	"github.com/dev7ch/api/internal/schema"
	"github.com/dev7ch/api/internal/service"
	pkgcache "github.com/dev7ch/api/pkg/cache"
	"github.com/dev7ch/api/pkg/jwt"
	pkglogger "github.com/dev7ch/api/pkg/logger"
	pkgredis "github.com/dev7ch/api/pkg/redis"
	"github.com/dev7ch/api/pkg/search"
	pkgstorage "github.com/dev7ch/api/pkg/storage"

	"github.com/gin-gonic/gin"
	mysqldriver "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// @title           dev7ch API
// @version         1.0
// @description     Metadata-driven content API: collections, fields, relations,
// @description     activity history and generic item CRUD.
//
// @host            localhost:8080
// @BasePath        /
//
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func getConfigPath() string {
	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "local"
	}
	return fmt.Sprintf("configs/config.%s.yaml", env)
}

func main() {
	dotenvFiles := config.LoadDotEnv()

	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "local"
	}
	pkglogger.Init(env)
	log.Info().Str("env", env).Strs("dotenv", dotenvFiles).Msg("Starting dev7ch API")

	cfg, err := config.Load(getConfigPath())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	db, err := initDB(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	if err := migration.Run(db); err != nil {
		log.Fatal().Err(err).Msg("Migration failed")
	}

	// Redis is optional; without it items are read from the database
	var cacheService pkgcache.Service
	if cfg.Redis.Host != "" {
		redisClient, err := pkgredis.NewClient(cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.PoolSize)
		if err != nil {
			log.Warn().Err(err).Msg("Redis unavailable, item cache disabled")
		} else {
			cacheService = pkgcache.NewService(redisClient)
			log.Info().Msg("Item cache enabled")
		}
	}

	var indexer *search.Indexer
	if cfg.Search.Enabled && len(cfg.Search.Addresses) > 0 {
		esClient, err := search.NewClient(cfg.Search.Addresses, cfg.Search.Username, cfg.Search.Password)
		if err != nil {
			log.Warn().Err(err).Msg("Elasticsearch unavailable, search mirror disabled")
		} else {
			indexer = search.NewIndexer(esClient, cfg.Search.IndexPrefix)
			log.Info().Msg("Search mirror enabled")
		}
	}

	var mirror *analytics.Mirror
	if cfg.Analytics.Enabled {
		chClient, err := analytics.NewClickHouseClient(analytics.ClientConfig{
			Host:     cfg.Analytics.Host,
			Port:     cfg.Analytics.Port,
			Database: cfg.Analytics.Database,
			User:     cfg.Analytics.User,
			Password: cfg.Analytics.Password,
		})
		if err != nil {
			log.Warn().Err(err).Msg("ClickHouse unavailable, activity analytics disabled")
		} else {
			mirror = analytics.NewMirror(chClient)
			log.Info().Msg("Activity analytics enabled")
		}
	}

	adapter, err := initStorage(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize storage adapter")
	}

	jwtManager := jwt.NewManager(cfg.Auth.JWTSecret)

	// Repositories
	schemaRepo := repository.NewSchemaRepository(db)
	itemRepo := repository.NewItemRepository(db)
	activityRepo := repository.NewActivityRepository(db)

	// Registry must load before the first request
	registry := schema.NewRegistry(schemaRepo)
	if err := registry.Reload(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("Failed to load schema registry")
	}
	log.Info().Int("collections", registry.CollectionCount()).Msg("Schema registry loaded")

	// Services
	relationService := service.NewRelationService(registry, itemRepo, cfg.Schema.MaxRelationDepth)
	activityService := service.NewActivityService(db, activityRepo, mirror)
	itemService := service.NewItemService(db, registry, relationService, activityService, itemRepo, cacheService, indexer)
	schemaService := service.NewSchemaService(db, registry, schemaRepo, itemRepo, activityService)
	fileService := service.NewFileService(itemService, adapter)

	// Handlers
	itemsHandler := handler.NewItemsHandler(itemService, activityService)
	filesHandler := handler.NewFilesHandler(fileService)
	collectionsHandler := handler.NewCollectionsHandler(schemaService)
	activityHandler := handler.NewActivityHandler(activityService, mirror)
	systemHandler := handler.NewSystemHandler(registry, db, cacheService)

	if env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())

	routes.Setup(router, itemsHandler, filesHandler, collectionsHandler, activityHandler, systemHandler, jwtManager)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	log.Info().Str("addr", addr).Msg("Listening")
	if err := router.Run(addr); err != nil {
		log.Fatal().Err(err).Msg("Server stopped")
	}
}

func initDB(cfg *config.Config) (*gorm.DB, error) {
	mysqlCfg, err := mysqldriver.ParseDSN(cfg.Database.DSN())
	if err != nil {
		return nil, fmt.Errorf("parse DSN: %w", err)
	}
	if mysqlCfg.Params == nil {
		mysqlCfg.Params = map[string]string{}
	}
	mysqlCfg.Params["charset"] = "utf8mb4"

	db, err := gorm.Open(mysql.Open(mysqlCfg.FormatDSN()), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(50)
	sqlDB.SetConnMaxLifetime(time.Hour)

	return db, nil
}

func initStorage(cfg *config.Config) (pkgstorage.Adapter, error) {
	if cfg.Storage.Driver == "s3" {
		return pkgstorage.NewS3Adapter(pkgstorage.S3Config{
			Endpoint:        cfg.Storage.S3.Endpoint,
			Region:          cfg.Storage.S3.Region,
			AccessKeyID:     cfg.Storage.S3.AccessKeyID,
			SecretAccessKey: cfg.Storage.S3.SecretAccessKey,
			Bucket:          cfg.Storage.S3.Bucket,
			CDNURL:          cfg.Storage.S3.CDNURL,
			BasePath:        cfg.Storage.S3.BasePath,
			ForcePathStyle:  cfg.Storage.S3.ForcePathStyle,
		})
	}
	return pkgstorage.NewLocalAdapter(cfg.Storage.Local.Path, cfg.Storage.Local.BaseURL)
}
