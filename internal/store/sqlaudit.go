package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/paulosouza-ec/Avotech/internal/models"
)

const orderColumns = `id, user_id, pharmacy_name, pharmacy_phone, drug_name, address, success, message, time`

// sqlAudit implements the audit log over database/sql. The SQLite and
// Postgres backends share it and differ only in placeholder syntax.
type sqlAudit struct {
	db      *sql.DB
	backend string
	dollar  bool // Postgres-style $n placeholders
}

// rebind rewrites '?' placeholders for backends that number them.
func (a *sqlAudit) rebind(query string) string {
	if !a.dollar {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (a *sqlAudit) exec(op, query string, args ...interface{}) error {
	if _, err := a.db.Exec(a.rebind(query), args...); err != nil {
		slog.Error("Store "+op+" failed", "backend", a.backend, "error", err)
		return fmt.Errorf("%s %s: %w", a.backend, op, err)
	}
	return nil
}

// queryAll runs query and scans every row with scan.
func queryAll[T any](a *sqlAudit, op string, scan func(*sql.Rows, *T) error, query string, args ...interface{}) ([]T, error) {
	rows, err := a.db.Query(a.rebind(query), args...)
	if err != nil {
		slog.Error("Store "+op+" query failed", "backend", a.backend, "error", err)
		return nil, fmt.Errorf("%s %s: %w", a.backend, op, err)
	}
	defer rows.Close()

	var out []T
	for rows.Next() {
		var v T
		if err := scan(rows, &v); err != nil {
			return nil, fmt.Errorf("%s %s: scan: %w", a.backend, op, err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s %s: rows: %w", a.backend, op, err)
	}
	return out, nil
}

func scanReceipt(rows *sql.Rows, r *models.Receipt) error {
	return rows.Scan(&r.To, &r.Status, &r.Time)
}

func scanResponse(rows *sql.Rows, r *models.Response) error {
	return rows.Scan(&r.From, &r.Body, &r.Time)
}

func scanOrder(rows *sql.Rows, o *models.OrderRecord) error {
	return rows.Scan(&o.ID, &o.UserID, &o.PharmacyName, &o.PharmacyPhone, &o.DrugName,
		&o.Address, &o.Success, &o.Message, &o.Time)
}

func (a *sqlAudit) AddReceipt(r models.Receipt) error {
	return a.exec("AddReceipt", `INSERT INTO receipts (recipient, status, time) VALUES (?, ?, ?)`, r.To, r.Status, r.Time)
}

func (a *sqlAudit) GetReceipts() ([]models.Receipt, error) {
	return queryAll(a, "GetReceipts", scanReceipt, `SELECT recipient, status, time FROM receipts ORDER BY id`)
}

func (a *sqlAudit) AddResponse(r models.Response) error {
	return a.exec("AddResponse", `INSERT INTO responses (sender, body, time) VALUES (?, ?, ?)`, r.From, r.Body, r.Time)
}

func (a *sqlAudit) GetResponses() ([]models.Response, error) {
	return queryAll(a, "GetResponses", scanResponse, `SELECT sender, body, time FROM responses ORDER BY id`)
}

// AddOrder records one dispatch attempt. IDs are unique; a replayed ID fails.
func (a *sqlAudit) AddOrder(o models.OrderRecord) error {
	return a.exec("AddOrder", `INSERT INTO orders (`+orderColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		o.ID, o.UserID, o.PharmacyName, o.PharmacyPhone, o.DrugName, o.Address, o.Success, o.Message, o.Time)
}

func (a *sqlAudit) GetOrders() ([]models.OrderRecord, error) {
	return queryAll(a, "GetOrders", scanOrder, `SELECT `+orderColumns+` FROM orders ORDER BY time, id`)
}

// GetOrdersByUser uses idx_orders_user_id.
func (a *sqlAudit) GetOrdersByUser(userID string) ([]models.OrderRecord, error) {
	return queryAll(a, "GetOrdersByUser", scanOrder,
		`SELECT `+orderColumns+` FROM orders WHERE user_id = ? ORDER BY time, id`, userID)
}

func (a *sqlAudit) Close() error {
	slog.Debug("Store closing database", "backend", a.backend)
	return a.db.Close()
}

// openAudit opens driver at dsn, verifies the connection and applies the
// embedded migrations. tune may adjust pool settings before the first ping.
func openAudit(backend, driver, dsn, migrations string, tune func(*sql.DB)) (*sqlAudit, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", backend, err)
	}
	if tune != nil {
		tune(db)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s database: %w", backend, err)
	}
	if _, err := db.Exec(migrations); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate %s database: %w", backend, err)
	}
	slog.Debug("Store migrations applied", "backend", backend)
	return &sqlAudit{db: db, backend: backend, dollar: driver == "postgres"}, nil
}
