package db

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
)

// PoolStats represents database connection pool statistics.
type PoolStats struct {
	Driver          string `json:"driver"`
	TotalConns      int32  `json:"total_conns"`
	IdleConns       int32  `json:"idle_conns"`
	AcquiredConns   int32  `json:"acquired_conns"`
	MaxConns        int32  `json:"max_conns"`
	AcquireDuration string `json:"acquire_duration,omitempty"`
}

// HealthChecker is implemented by each supported database handle.
type HealthChecker interface {
	Ping(ctx context.Context) error
	Stats() PoolStats
}

type pgHealth struct{ pool *pgxpool.Pool }

// PgHealth wraps a pgx pool for HealthHandler.
func PgHealth(pool *pgxpool.Pool) HealthChecker { return pgHealth{pool: pool} }

func (h pgHealth) Ping(ctx context.Context) error { return h.pool.Ping(ctx) }

func (h pgHealth) Stats() PoolStats {
	stat := h.pool.Stat()
	return PoolStats{
		Driver:          "postgres",
		TotalConns:      stat.TotalConns(),
		IdleConns:       stat.IdleConns(),
		AcquiredConns:   stat.AcquiredConns(),
		MaxConns:        stat.MaxConns(),
		AcquireDuration: stat.AcquireDuration().String(),
	}
}

type sqlHealth struct{ db *sql.DB }

// SQLHealth wraps a database/sql handle for HealthHandler.
func SQLHealth(db *sql.DB) HealthChecker { return sqlHealth{db: db} }

func (h sqlHealth) Ping(ctx context.Context) error { return h.db.PingContext(ctx) }

func (h sqlHealth) Stats() PoolStats {
	stat := h.db.Stats()
	return PoolStats{
		Driver:        "sqlite",
		TotalConns:    int32(stat.OpenConnections),
		IdleConns:     int32(stat.Idle),
		AcquiredConns: int32(stat.InUse),
		MaxConns:      int32(stat.MaxOpenConnections),
	}
}

// HealthHandler returns a handler for the database health check endpoint.
func HealthHandler(checker HealthChecker) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
		defer cancel()

		stats := checker.Stats()
		if err := checker.Ping(ctx); err != nil {
			return c.JSON(http.StatusServiceUnavailable, map[string]interface{}{
				"status": "unhealthy",
				"error":  err.Error(),
				"pool":   stats,
			})
		}
		return c.JSON(http.StatusOK, map[string]interface{}{
			"status": "healthy",
			"pool":   stats,
		})
	}
}
