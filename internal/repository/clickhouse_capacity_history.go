package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"PowerLedger/internal/domain/models"
	domrepo "PowerLedger/internal/domain/repository"
	pkgch "PowerLedger/pkg/clickhouse"
	applogger "PowerLedger/pkg/logger"
)

// CapacityHistorySchema creates the history table. Decimal columns map to
// shopspring decimals in the driver.
func CapacityHistorySchema(database string) []string {
	return []string{
		fmt.Sprintf(`CREATE DATABASE IF NOT EXISTS %s`, database),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.capacity_history (
            station_id              Int64,
            at                      DateTime64(3, 'UTC'),
            transformer_capacity_kw Decimal(14, 2),
            max_demand_kw           Decimal(14, 2),
            available_power_kw      Decimal(14, 2),
            status                  LowCardinality(String)
        ) ENGINE = MergeTree
        ORDER BY (station_id, at)`, database),
	}
}

// CHCapacityHistory implements CapacityHistory backed by ClickHouse.
type CHCapacityHistory struct {
	db    *sql.DB
	table string
	l     *applogger.Logger
}

var _ domrepo.CapacityHistory = (*CHCapacityHistory)(nil)

func NewCHCapacityHistory(ch *pkgch.Client, l *applogger.Logger) *CHCapacityHistory {
	return &CHCapacityHistory{db: ch.DB(), table: ch.Database() + ".capacity_history", l: l}
}

// Append writes samples with a multi-row VALUES insert.
func (s *CHCapacityHistory) Append(ctx context.Context, samples []models.CapacitySample) error {
	if len(samples) == 0 {
		return nil
	}
	const chunkSize = 1000
	for start := 0; start < len(samples); start += chunkSize {
		end := start + chunkSize
		if end > len(samples) {
			end = len(samples)
		}
		values := make([]string, 0, end-start)
		args := make([]interface{}, 0, (end-start)*6)
		for _, smp := range samples[start:end] {
			values = append(values, "(?, ?, ?, ?, ?, ?)")
			args = append(args,
				smp.StationID,
				smp.At.UTC(),
				smp.TransformerCapacityKW,
				smp.MaxDemandKW,
				smp.AvailablePowerKW,
				string(smp.Status),
			)
		}
		q := fmt.Sprintf(`INSERT INTO %s (station_id, at, transformer_capacity_kw, max_demand_kw, available_power_kw, status) VALUES %s`,
			s.table, strings.Join(values, ","))
		if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
			return fmt.Errorf("insert capacity history: %w", err)
		}
	}
	return nil
}

// Query returns a station's samples in [from, to], oldest first.
func (s *CHCapacityHistory) Query(ctx context.Context, stationID int64, from, to time.Time, limit int) ([]models.CapacitySample, error) {
	start := time.Now()
	if limit <= 0 {
		limit = 1000
	}
	q := fmt.Sprintf(`
        SELECT station_id, at, transformer_capacity_kw, max_demand_kw, available_power_kw, status
        FROM %s
        WHERE station_id = ? AND at >= ? AND at <= ?
        ORDER BY at DESC
        LIMIT ?`, s.table)
	rows, err := s.db.QueryContext(ctx, q, stationID, from.UTC(), to.UTC(), limit)
	if err != nil {
		s.l.Error("clickhouse capacity_history query error",
			applogger.Int64("station_id", stationID),
			applogger.Error(err))
		return nil, fmt.Errorf("query capacity history: %w", err)
	}
	defer rows.Close()

	out := make([]models.CapacitySample, 0, limit)
	for rows.Next() {
		var smp models.CapacitySample
		var status string
		if err := rows.Scan(&smp.StationID, &smp.At, &smp.TransformerCapacityKW, &smp.MaxDemandKW, &smp.AvailablePowerKW, &status); err != nil {
			return nil, fmt.Errorf("scan capacity sample: %w", err)
		}
		smp.Status = models.StationStatus(status)
		out = append(out, smp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	// reverse to ASC
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	s.l.Debug("clickhouse capacity_history ok",
		applogger.Int64("station_id", stationID),
		applogger.Int("rows", len(out)),
		applogger.Duration("duration_ms", time.Since(start)))
	return out, nil
}
