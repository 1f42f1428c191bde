package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/bsm/redislock"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/mohamedelshamy95/CocoERP-sub000/config"
	"github.com/mohamedelshamy95/CocoERP-sub000/models"
	"github.com/mohamedelshamy95/CocoERP-sub000/workflow"
	"github.com/sirupsen/logrus"
)

const defaultPort = "8080"

const lastRunKeyPrefix = "sync:last:"

// obtainSyncLock is a best-effort Redis lock around a sync trigger to avoid
// piling concurrent HTTP-triggered runs onto the advisory lock queue.
// Reliability never depends on Redis: posting itself is serialized by the
// database-level posting lock inside each connector.
func obtainSyncLock(ctx context.Context, logger *logrus.Logger, key string) *redislock.Lock {
	redisLock := config.GetRedisLock()
	if redisLock == nil {
		logger.WithFields(logrus.Fields{
			"key": key,
		}).Warn("redis lock not ready; proceeding without redis lock")
		return nil
	}
	lock, err := redisLock.Obtain(ctx, "lock:"+key, 30*time.Second, nil)
	if err == redislock.ErrNotObtained {
		logger.WithFields(logrus.Fields{
			"key": key,
		}).Warn("could not obtain redis lock; proceeding without redis lock")
		return nil
	}
	if err != nil {
		logger.WithFields(logrus.Fields{
			"key": key,
		}).Warn("error obtaining redis lock; proceeding without redis lock: " + err.Error())
		return nil
	}
	return lock
}

func cacheSummaries(logger *logrus.Logger, summaries []*workflow.SyncSummary) {
	for _, s := range summaries {
		if err := config.SetRedisObject(lastRunKeyPrefix+s.Connector, s, 24*time.Hour); err != nil {
			config.LogError(logger, "server.go", "cacheSummaries", s.Connector, nil, err)
		}
	}
}

func syncAllHandler(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		cfg := config.LoadInventoryConfig()

		lock := obtainSyncLock(c.Request.Context(), logger, "sync-all")
		defer func() {
			if lock != nil {
				_ = lock.Release(context.Background())
			}
		}()

		summaries, err := workflow.RunAll(c.Request.Context(), config.GetDB(), logger, cfg)
		cacheSummaries(logger, summaries)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error(), "runs": summaries})
			return
		}
		c.JSON(http.StatusOK, gin.H{"runs": summaries})
	}
}

func syncOneHandler(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		name := c.Param("connector")
		connector, ok := workflow.ConnectorByName(name)
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("unknown connector %q", name)})
			return
		}
		cfg := config.LoadInventoryConfig()

		lock := obtainSyncLock(c.Request.Context(), logger, "sync-"+name)
		defer func() {
			if lock != nil {
				_ = lock.Release(context.Background())
			}
		}()

		summary, err := connector.Sync(c.Request.Context(), config.GetDB(), logger, cfg)
		if err != nil {
			config.LogError(logger, "server.go", "syncOneHandler", name, nil, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		cacheSummaries(logger, []*workflow.SyncSummary{summary})
		c.JSON(http.StatusOK, summary)
	}
}

func rebuildSnapshotsHandler(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		cfg := config.LoadInventoryConfig()

		lock := obtainSyncLock(c.Request.Context(), logger, "snapshot-rebuild")
		defer func() {
			if lock != nil {
				_ = lock.Release(context.Background())
			}
		}()

		if err := workflow.RebuildSnapshots(c.Request.Context(), config.GetDB(), logger, cfg); err != nil {
			config.LogError(logger, "server.go", "rebuildSnapshotsHandler", "RebuildSnapshots", nil, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func listSnapshotsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		rows, err := models.ListSnapshots(config.GetDB(), c.Query("group"))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"snapshots": rows})
	}
}

func lastRunHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		name := c.Param("connector")
		var summary workflow.SyncSummary
		found, err := config.GetRedisObject(lastRunKeyPrefix+name, &summary)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if !found {
			c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("no cached run for connector %q", name)})
			return
		}
		c.JSON(http.StatusOK, summary)
	}
}

func splitAndTrim(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if v := strings.TrimSpace(p); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = defaultPort
	}

	logger := config.GetLogger()

	sigCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	// Start the HTTP server before the DB is ready; hosts with startup
	// deadlines probe the port. App endpoints return 503 until connected.
	r := gin.New()
	r.Use(func(c *gin.Context) {
		cid := c.GetHeader("x-correlation-id")
		if cid == "" {
			cid = uuid.NewString()
		}
		c.Header("x-correlation-id", cid)
		c.Next()
	})
	r.Use(func(c *gin.Context) {
		if c.Request.URL.Path == "/healthz" {
			c.Status(http.StatusNoContent)
			c.Abort()
			return
		}
		if config.GetDB() == nil {
			c.AbortWithStatus(http.StatusServiceUnavailable)
			return
		}
		c.Next()
	})
	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	corsConfig := cors.DefaultConfig()
	allowedOrigins := strings.TrimSpace(os.Getenv("CORS_ALLOWED_ORIGINS"))
	if strings.EqualFold(strings.TrimSpace(os.Getenv("GO_ENV")), "production") {
		if allowedOrigins == "" {
			corsConfig.AllowOrigins = []string{}
		} else {
			corsConfig.AllowOrigins = splitAndTrim(allowedOrigins)
		}
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AddAllowMethods("GET", "POST", "OPTIONS")
	corsConfig.AddAllowHeaders("Origin", "Content-Type", "Authorization")
	corsConfig.AddExposeHeaders("Content-Length")
	r.Use(cors.New(corsConfig))
	r.Use(gin.Recovery())

	r.POST("/sync", syncAllHandler(logger))
	r.POST("/sync/:connector", syncOneHandler(logger))
	r.GET("/sync/last/:connector", lastRunHandler())
	r.POST("/snapshots/rebuild", rebuildSnapshotsHandler(logger))
	r.GET("/snapshots", listSnapshotsHandler())

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: r,
	}
	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- srv.ListenAndServe()
	}()

	// Connect dependencies after the port is open.
	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()

	db := config.GetDB()
	sqlDB, _ := db.DB()
	defer func() {
		if sqlDB != nil {
			_ = sqlDB.Close()
		}
	}()
	if !strings.EqualFold(strings.TrimSpace(os.Getenv("SKIP_MIGRATIONS")), "true") {
		if err := models.MigrateTable(db); err != nil {
			logger.WithFields(logrus.Fields{"field": "migrations"}).Panic(err.Error())
		}
	} else {
		logger.WithFields(logrus.Fields{"field": "migrations"}).Warn("SKIP_MIGRATIONS=true; skipping AutoMigrate on startup")
	}

	logger.WithFields(logrus.Fields{"port": port}).Info("server.ready")

	select {
	case err := <-serverErrCh:
		if err != nil && err != http.ErrServerClosed {
			logger.WithFields(logrus.Fields{"field": "ListenAndServe"}).Panic(err.Error())
		}
	case <-sigCtx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			config.LogError(logger, "server.go", "main", "Shutdown", nil, err)
		}
	}
}
