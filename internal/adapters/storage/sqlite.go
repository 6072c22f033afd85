package storage

// sqlite.go: journal de auditoría de rondas, decisiones y swaps.
//
// Estrategia:
//   - `rounds`: una fila por ronda (INSERT al empezar, UPDATE al cerrar).
//   - `decisions`: una fila por ciclo con decisión, se haya ejecutado o no.
//   - `outcomes`: una fila por swap enviado (éxito o fallo).
//   - Solo escritura: el bot nunca reconstruye estado desde aquí.
//   - Prune automático al arrancar: filas de más de 90 días.

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/alejandrodnm/roundbot/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS rounds (
    id          TEXT PRIMARY KEY,
    token       TEXT     NOT NULL,
    started_at  TEXT     NOT NULL,
    ended_at    TEXT,
    cycles      INTEGER  NOT NULL DEFAULT 0,
    executed    INTEGER  NOT NULL DEFAULT 0,
    failed      INTEGER  NOT NULL DEFAULT 0,
    first_price REAL     NOT NULL DEFAULT 0,
    last_price  REAL     NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS decisions (
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    round_id   TEXT     NOT NULL,
    hour       INTEGER  NOT NULL,
    price      REAL     NOT NULL,
    action     TEXT     NOT NULL,
    percentage REAL     NOT NULL,
    source     TEXT     NOT NULL,
    decided_at TEXT     NOT NULL
);

CREATE TABLE IF NOT EXISTS outcomes (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    round_id    TEXT     NOT NULL,
    hour        INTEGER  NOT NULL,
    action      TEXT     NOT NULL,
    amount_in   REAL     NOT NULL DEFAULT 0,
    amount_out  REAL     NOT NULL DEFAULT 0,
    tx_hash     TEXT,
    gas_used    INTEGER  NOT NULL DEFAULT 0,
    success     INTEGER  NOT NULL DEFAULT 0,
    error       TEXT,
    executed_at TEXT     NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_rounds_started ON rounds(started_at DESC);
CREATE INDEX IF NOT EXISTS idx_decisions_round ON decisions(round_id, hour);
CREATE INDEX IF NOT EXISTS idx_outcomes_round ON outcomes(round_id, hour);
`

const retention = 90 * 24 * time.Hour

// tsLayout es de ancho fijo para que ORDER BY y los prune comparen como texto.
const tsLayout = "2006-01-02T15:04:05.000000000Z07:00"

func ts(t time.Time) string { return t.UTC().Format(tsLayout) }

// RoundSummary es una fila de `rounds` para el reporte.
type RoundSummary struct {
	ID         string
	Token      string
	StartedAt  time.Time
	EndedAt    *time.Time
	Cycles     int
	Executed   int
	Failed     int
	FirstPrice float64
	LastPrice  float64
	Buys       int
	Sells      int
	NoTrades   int
}

// SQLiteJournal implementa ports.Journal usando SQLite (pure Go, sin CGo).
type SQLiteJournal struct {
	db *sql.DB
}

// NewSQLiteJournal abre (o crea) la base de datos en la ruta dada,
// aplica el schema y limpia datos antiguos.
func NewSQLiteJournal(path string) (*SQLiteJournal, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage.NewSQLiteJournal: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1) // SQLite es single-writer
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage.NewSQLiteJournal: apply schema: %w", err)
	}

	j := &SQLiteJournal{db: db}
	j.pruneOld(context.Background())
	return j, nil
}

// SaveRound registra el inicio de una ronda.
func (j *SQLiteJournal) SaveRound(ctx context.Context, r *domain.Round) error {
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO rounds (id, token, started_at) VALUES (?, ?, ?)
		 ON CONFLICT(id) DO NOTHING`,
		r.ID, r.Token, ts(r.StartedAt),
	)
	if err != nil {
		return fmt.Errorf("storage.SaveRound: %w", err)
	}
	return nil
}

// CloseRound actualiza los totales de la ronda al terminar.
func (j *SQLiteJournal) CloseRound(ctx context.Context, r *domain.Round) error {
	first, _ := r.Prices.First()
	last, _ := r.Prices.Last()

	_, err := j.db.ExecContext(ctx,
		`UPDATE rounds
		    SET ended_at = ?, cycles = ?, executed = ?, failed = ?, first_price = ?, last_price = ?
		  WHERE id = ?`,
		ts(time.Now()), r.Trades.Len(), r.Executed, r.Failed, first.Price, last.Price, r.ID,
	)
	if err != nil {
		return fmt.Errorf("storage.CloseRound: %w", err)
	}
	return nil
}

// SaveDecision registra la decisión de un ciclo.
func (j *SQLiteJournal) SaveDecision(ctx context.Context, roundID string, hour int, price float64, d domain.TradeDecision) error {
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO decisions (round_id, hour, price, action, percentage, source, decided_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		roundID, hour, price, string(d.Action), d.Percentage, d.Source, ts(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("storage.SaveDecision: %w", err)
	}
	return nil
}

// SaveOutcome registra el resultado de un swap.
func (j *SQLiteJournal) SaveOutcome(ctx context.Context, roundID string, hour int, o domain.TradeOutcome) error {
	executedAt := o.ExecutedAt
	if executedAt.IsZero() {
		executedAt = time.Now()
	}
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO outcomes (round_id, hour, action, amount_in, amount_out, tx_hash, gas_used, success, error, executed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		roundID, hour, string(o.Action), o.AmountIn, o.AmountOut, o.TxHash, int64(o.GasUsed),
		boolToInt(o.Success), o.Error, ts(executedAt),
	)
	if err != nil {
		return fmt.Errorf("storage.SaveOutcome: %w", err)
	}
	return nil
}

// RoundSummaries devuelve las últimas limit rondas, más recientes primero,
// con el conteo de decisiones por acción.
func (j *SQLiteJournal) RoundSummaries(ctx context.Context, limit int) ([]RoundSummary, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := j.db.QueryContext(ctx, `
		SELECT r.id, r.token, r.started_at, r.ended_at, r.cycles, r.executed, r.failed,
		       r.first_price, r.last_price,
		       COALESCE(SUM(CASE WHEN d.action = 'buy'  AND d.percentage > 0 THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN d.action = 'sell' AND d.percentage > 0 THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN d.percentage <= 0 THEN 1 ELSE 0 END), 0)
		  FROM rounds r
		  LEFT JOIN decisions d ON d.round_id = r.id
		 GROUP BY r.id
		 ORDER BY r.started_at DESC
		 LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("storage.RoundSummaries: %w", err)
	}
	defer rows.Close()

	var out []RoundSummary
	for rows.Next() {
		var (
			s       RoundSummary
			started string
			ended   sql.NullString
		)
		if err := rows.Scan(&s.ID, &s.Token, &started, &ended, &s.Cycles, &s.Executed, &s.Failed,
			&s.FirstPrice, &s.LastPrice, &s.Buys, &s.Sells, &s.NoTrades); err != nil {
			return nil, fmt.Errorf("storage.RoundSummaries: scan: %w", err)
		}
		s.StartedAt, _ = time.Parse(time.RFC3339Nano, started)
		if ended.Valid {
			if t, err := time.Parse(time.RFC3339Nano, ended.String); err == nil {
				s.EndedAt = &t
			}
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Close cierra la conexión.
func (j *SQLiteJournal) Close() error {
	return j.db.Close()
}

// pruneOld elimina datos antiguos para mantener la DB ligera.
func (j *SQLiteJournal) pruneOld(ctx context.Context) {
	cutoff := ts(time.Now().Add(-retention))
	_, _ = j.db.ExecContext(ctx, `DELETE FROM decisions WHERE decided_at < ?`, cutoff)
	_, _ = j.db.ExecContext(ctx, `DELETE FROM outcomes WHERE executed_at < ?`, cutoff)
	_, _ = j.db.ExecContext(ctx, `DELETE FROM rounds WHERE started_at < ?`, cutoff)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
