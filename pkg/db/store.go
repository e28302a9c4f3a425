package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("record not found")

// Store provides the persistence queries the trading loop depends on.
type Store struct {
	db *sql.DB
}

// NewStore creates a Store over an opened database.
func NewStore(d *Database) *Store {
	return &Store{db: d.DB}
}

// ----------------------------------------
// Positions
// ----------------------------------------

// SavePosition inserts a freshly opened position.
func (s *Store) SavePosition(ctx context.Context, p Position) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO positions (id, symbol, strategy, direction, entry_price, size, leverage,
		                       stop_loss, take_profit, order_id, status, opened_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
	`, p.ID, p.Symbol, p.Strategy, p.Direction, p.EntryPrice, p.Size, p.Leverage,
		p.StopLoss, p.TakeProfit, p.OrderID, PositionOpen)
	if err != nil {
		return fmt.Errorf("save position: %w", err)
	}
	return nil
}

// ClosePosition marks a position closed and records the exit price and pnl.
func (s *Store) ClosePosition(ctx context.Context, id string, closePrice, pnl float64) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE positions
		SET status = ?, close_price = ?, pnl = ?, closed_at = CURRENT_TIMESTAMP
		WHERE id = ? AND status = ?
	`, PositionClosed, closePrice, pnl, id, PositionOpen)
	if err != nil {
		return fmt.Errorf("close position: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// GetOpenPositions returns all positions still marked OPEN.
func (s *Store) GetOpenPositions(ctx context.Context) ([]Position, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, symbol, strategy, direction, entry_price, size, leverage,
		       stop_loss, take_profit, COALESCE(order_id, ''), status, opened_at
		FROM positions
		WHERE status = ?
		ORDER BY opened_at DESC
	`, PositionOpen)
	if err != nil {
		return nil, fmt.Errorf("query open positions: %w", err)
	}
	defer rows.Close()

	var positions []Position
	for rows.Next() {
		var p Position
		if err := rows.Scan(&p.ID, &p.Symbol, &p.Strategy, &p.Direction, &p.EntryPrice, &p.Size,
			&p.Leverage, &p.StopLoss, &p.TakeProfit, &p.OrderID, &p.Status, &p.OpenedAt); err != nil {
			return nil, fmt.Errorf("scan position: %w", err)
		}
		positions = append(positions, p)
	}
	return positions, rows.Err()
}

// GetOpenPositionBySymbol returns the open position on symbol, or ErrNotFound.
func (s *Store) GetOpenPositionBySymbol(ctx context.Context, symbol string) (*Position, error) {
	var p Position
	err := s.db.QueryRowContext(ctx, `
		SELECT id, symbol, strategy, direction, entry_price, size, leverage,
		       stop_loss, take_profit, COALESCE(order_id, ''), status, opened_at
		FROM positions
		WHERE symbol = ? AND status = ?
		ORDER BY opened_at DESC
		LIMIT 1
	`, symbol, PositionOpen).Scan(&p.ID, &p.Symbol, &p.Strategy, &p.Direction, &p.EntryPrice,
		&p.Size, &p.Leverage, &p.StopLoss, &p.TakeProfit, &p.OrderID, &p.Status, &p.OpenedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query position: %w", err)
	}
	return &p, nil
}

// CountOpenPositions returns how many positions are currently OPEN.
func (s *Store) CountOpenPositions(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM positions WHERE status = ?`, PositionOpen).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count open positions: %w", err)
	}
	return n, nil
}

// ----------------------------------------
// Decisions
// ----------------------------------------

// SaveDecision records one consensus outcome.
func (s *Store) SaveDecision(ctx context.Context, d Decision) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO decisions (id, symbol, action, direction, confidence, avg_confidence,
		                       strategies, entry_price, stop_loss, take_profit, executed, reason, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
	`, d.ID, d.Symbol, d.Action, d.Direction, d.Confidence, d.AvgConfidence,
		d.Strategies, d.EntryPrice, d.StopLoss, d.TakeProfit, d.Executed, d.Reason)
	if err != nil {
		return fmt.Errorf("save decision: %w", err)
	}
	return nil
}

// MarkDecisionExecuted flips the executed flag once orders have been placed.
func (s *Store) MarkDecisionExecuted(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE decisions SET executed = 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("mark decision executed: %w", err)
	}
	return nil
}

// RecentDecisions returns the newest decisions, most recent first.
func (s *Store) RecentDecisions(ctx context.Context, limit int) ([]Decision, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, symbol, action, COALESCE(direction, ''), confidence, avg_confidence,
		       COALESCE(strategies, ''), entry_price, stop_loss, take_profit,
		       executed, COALESCE(reason, ''), created_at
		FROM decisions
		ORDER BY created_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query decisions: %w", err)
	}
	defer rows.Close()

	var decisions []Decision
	for rows.Next() {
		var d Decision
		if err := rows.Scan(&d.ID, &d.Symbol, &d.Action, &d.Direction, &d.Confidence,
			&d.AvgConfidence, &d.Strategies, &d.EntryPrice, &d.StopLoss, &d.TakeProfit,
			&d.Executed, &d.Reason, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan decision: %w", err)
		}
		decisions = append(decisions, d)
	}
	return decisions, rows.Err()
}

// ----------------------------------------
// DCA orders
// ----------------------------------------

// SaveDcaOrder records one accumulation fill.
func (s *Store) SaveDcaOrder(ctx context.Context, o DcaOrder) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO dca_orders (id, symbol, strategy, side, price, size, order_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
	`, o.ID, o.Symbol, o.Strategy, o.Side, o.Price, o.Size, o.OrderID)
	if err != nil {
		return fmt.Errorf("save dca order: %w", err)
	}
	return nil
}

// ListDcaOrders returns the newest accumulation fills for a symbol, or all
// symbols when symbol is empty.
func (s *Store) ListDcaOrders(ctx context.Context, symbol string, limit int) ([]DcaOrder, error) {
	query := `
		SELECT id, symbol, strategy, side, price, size, COALESCE(order_id, ''), created_at
		FROM dca_orders`
	args := []any{}
	if symbol != "" {
		query += ` WHERE symbol = ?`
		args = append(args, symbol)
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query dca orders: %w", err)
	}
	defer rows.Close()

	var orders []DcaOrder
	for rows.Next() {
		var o DcaOrder
		if err := rows.Scan(&o.ID, &o.Symbol, &o.Strategy, &o.Side, &o.Price, &o.Size,
			&o.OrderID, &o.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan dca order: %w", err)
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

// ----------------------------------------
// Strategy instances
// ----------------------------------------

// UpsertStrategyInstance syncs one configured strategy into the database.
func (s *Store) UpsertStrategyInstance(ctx context.Context, inst StrategyInstance) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO strategy_instances (id, name, strategy_type, symbol, interval, parameters, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			strategy_type = excluded.strategy_type,
			symbol = excluded.symbol,
			interval = excluded.interval,
			parameters = excluded.parameters,
			is_active = excluded.is_active,
			updated_at = CURRENT_TIMESTAMP
	`, inst.ID, inst.Name, inst.StrategyType, inst.Symbol, inst.Interval, inst.Parameters, inst.IsActive)
	if err != nil {
		return fmt.Errorf("upsert strategy instance: %w", err)
	}
	return nil
}

// ListStrategyInstances returns all synced strategy instances.
func (s *Store) ListStrategyInstances(ctx context.Context) ([]StrategyInstance, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, strategy_type, symbol, interval, parameters, is_active, created_at, updated_at
		FROM strategy_instances
		ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("query strategy instances: %w", err)
	}
	defer rows.Close()

	var instances []StrategyInstance
	for rows.Next() {
		var inst StrategyInstance
		if err := rows.Scan(&inst.ID, &inst.Name, &inst.StrategyType, &inst.Symbol,
			&inst.Interval, &inst.Parameters, &inst.IsActive, &inst.CreatedAt, &inst.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan strategy instance: %w", err)
		}
		instances = append(instances, inst)
	}
	return instances, rows.Err()
}

// ----------------------------------------
// Risk metrics
// ----------------------------------------

// RecordTradeResult folds one closed trade into the day's metrics.
func (s *Store) RecordTradeResult(ctx context.Context, day time.Time, pnl float64) error {
	date := day.UTC().Format("2006-01-02")
	win := 0
	loss := 0
	if pnl >= 0 {
		win = 1
	} else {
		loss = 1
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO risk_metrics (date, daily_pnl, daily_trades, daily_wins, daily_losses)
		VALUES (?, ?, 1, ?, ?)
		ON CONFLICT(date) DO UPDATE SET
			daily_pnl = daily_pnl + excluded.daily_pnl,
			daily_trades = daily_trades + 1,
			daily_wins = daily_wins + excluded.daily_wins,
			daily_losses = daily_losses + excluded.daily_losses
	`, date, pnl, win, loss)
	if err != nil {
		return fmt.Errorf("record trade result: %w", err)
	}
	return nil
}

// GetRiskMetrics returns the metrics row for day, or a zero row if none.
func (s *Store) GetRiskMetrics(ctx context.Context, day time.Time) (RiskMetrics, error) {
	date := day.UTC().Format("2006-01-02")
	m := RiskMetrics{Date: date}
	err := s.db.QueryRowContext(ctx, `
		SELECT daily_pnl, daily_trades, daily_wins, daily_losses
		FROM risk_metrics WHERE date = ?
	`, date).Scan(&m.DailyPnL, &m.DailyTrades, &m.DailyWins, &m.DailyLosses)
	if err == sql.ErrNoRows {
		return m, nil
	}
	if err != nil {
		return m, fmt.Errorf("query risk metrics: %w", err)
	}
	return m, nil
}
