package invoices

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/bizcore/internal/inventory"
	"github.com/odyssey-erp/bizcore/internal/platform/db"
	"github.com/odyssey-erp/bizcore/internal/shared"
)

// Repository persists invoices in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
	q    queries
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool, q: queries{db: pool}}
}

// WithTx runs fn in a read-committed transaction so conditional row updates
// re-check their predicate after waiting on a concurrent writer.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTxOptions(ctx, r.pool, db.ReadCommitted, func(tx pgx.Tx) error {
		return fn(ctx, queries{db: tx})
	})
}

// Get loads an invoice with its lines.
func (r *Repository) Get(ctx context.Context, companyID, id int64) (Invoice, error) {
	return r.q.get(ctx, companyID, id, false)
}

// List returns one page of invoices newest first plus the total count. Lines are not loaded.
func (r *Repository) List(ctx context.Context, companyID int64, filter ListFilter, limit, offset int) ([]Invoice, int, error) {
	where := ` WHERE company_id = $1`
	args := []any{companyID}
	if filter.Status != "" {
		where += ` AND status = $2`
		args = append(args, string(filter.Status))
	}
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM invoices`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("invoices: count: %w", err)
	}
	args = append(args, limit, offset)
	query := selectInvoice + where + fmt.Sprintf(` ORDER BY issue_date DESC, id DESC LIMIT $%d OFFSET $%d`, len(args)-1, len(args))
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("invoices: list: %w", err)
	}
	defer rows.Close()
	out := []Invoice{}
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, inv)
	}
	return out, total, rows.Err()
}

// MarkOverdue moves ISSUED and SENT invoices past due to OVERDUE across all companies.
func (r *Repository) MarkOverdue(ctx context.Context, asOf time.Time) (int, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE invoices SET status = 'OVERDUE', updated_at = NOW()
		WHERE status IN ('ISSUED', 'SENT') AND due_date < $1`, asOf)
	if err != nil {
		return 0, fmt.Errorf("invoices: mark overdue: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

type queries struct {
	db db.DBTX
}

const selectInvoice = `
	SELECT id, company_id, number, customer_name, issue_date, due_date, tax_rate, subtotal, tax_total,
	       grand_total, amount_paid, status, stock_reserved, notes, created_at, updated_at
	FROM invoices`

func (q queries) NextID(ctx context.Context) (int64, error) {
	var id int64
	if err := q.db.QueryRow(ctx, `SELECT nextval(pg_get_serial_sequence('invoices', 'id'))`).Scan(&id); err != nil {
		return 0, fmt.Errorf("invoices: next id: %w", err)
	}
	return id, nil
}

func (q queries) Insert(ctx context.Context, inv Invoice) (Invoice, error) {
	err := q.db.QueryRow(ctx, `
		INSERT INTO invoices (id, company_id, number, customer_name, issue_date, due_date, tax_rate, subtotal,
		                      tax_total, grand_total, amount_paid, status, stock_reserved, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING created_at, updated_at`,
		inv.ID, inv.CompanyID, inv.Number, inv.CustomerName, inv.IssueDate, inv.DueDate,
		db.Numeric(inv.TaxRate), db.Numeric(inv.Subtotal), db.Numeric(inv.TaxTotal), db.Numeric(inv.GrandTotal),
		db.Numeric(inv.AmountPaid), string(inv.Status), inv.StockReserved, inv.Notes,
	).Scan(&inv.CreatedAt, &inv.UpdatedAt)
	if err != nil {
		if shared.IsUniqueViolation(err) {
			return Invoice{}, fmt.Errorf("invoices: number %s: %w", inv.Number, shared.ErrDuplicate)
		}
		return Invoice{}, fmt.Errorf("invoices: insert: %w", err)
	}
	if err := q.ReplaceLines(ctx, inv.ID, inv.Lines); err != nil {
		return Invoice{}, err
	}
	return inv, nil
}

func (q queries) GetForUpdate(ctx context.Context, companyID, id int64) (Invoice, error) {
	return q.get(ctx, companyID, id, true)
}

func (q queries) UpdateHeader(ctx context.Context, inv Invoice) error {
	tag, err := q.db.Exec(ctx, `
		UPDATE invoices
		SET customer_name = $3, due_date = $4, tax_rate = $5, subtotal = $6, tax_total = $7, grand_total = $8,
		    amount_paid = $9, status = $10, stock_reserved = $11, notes = $12, updated_at = NOW()
		WHERE id = $1 AND company_id = $2`,
		inv.ID, inv.CompanyID, inv.CustomerName, inv.DueDate, db.Numeric(inv.TaxRate), db.Numeric(inv.Subtotal),
		db.Numeric(inv.TaxTotal), db.Numeric(inv.GrandTotal), db.Numeric(inv.AmountPaid), string(inv.Status),
		inv.StockReserved, inv.Notes)
	if err != nil {
		return fmt.Errorf("invoices: update: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrInvoiceNotFound
	}
	return nil
}

func (q queries) ReplaceLines(ctx context.Context, invoiceID int64, lines []LineItem) error {
	if _, err := q.db.Exec(ctx, `DELETE FROM invoice_lines WHERE invoice_id = $1`, invoiceID); err != nil {
		return fmt.Errorf("invoices: clear lines: %w", err)
	}
	batch := &pgx.Batch{}
	for _, line := range lines {
		batch.Queue(`
			INSERT INTO invoice_lines (invoice_id, line_no, inventory_id, description, quantity, price, total)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			invoiceID, line.LineNo, line.InventoryID, line.Description, line.Quantity,
			db.Numeric(line.Price), db.Numeric(line.Total))
	}
	if err := q.db.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("invoices: insert lines: %w", err)
	}
	return nil
}

func (q queries) Stock() inventory.StockStore {
	return inventory.NewStockStore(q.db)
}

func (q queries) get(ctx context.Context, companyID, id int64, lock bool) (Invoice, error) {
	query := selectInvoice + ` WHERE id = $1 AND company_id = $2`
	if lock {
		query += ` FOR UPDATE`
	}
	inv, err := scanInvoice(q.db.QueryRow(ctx, query, id, companyID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Invoice{}, ErrInvoiceNotFound
		}
		return Invoice{}, fmt.Errorf("invoices: get: %w", err)
	}
	rows, err := q.db.Query(ctx, `
		SELECT line_no, inventory_id, description, quantity, price, total
		FROM invoice_lines WHERE invoice_id = $1 ORDER BY line_no`, id)
	if err != nil {
		return Invoice{}, fmt.Errorf("invoices: get lines: %w", err)
	}
	defer rows.Close()
	inv.Lines = []LineItem{}
	for rows.Next() {
		var (
			line         LineItem
			price, total pgtype.Numeric
		)
		if err := rows.Scan(&line.LineNo, &line.InventoryID, &line.Description, &line.Quantity, &price, &total); err != nil {
			return Invoice{}, err
		}
		line.Price = db.Decimal(price)
		line.Total = db.Decimal(total)
		inv.Lines = append(inv.Lines, line)
	}
	return inv, rows.Err()
}

func scanInvoice(row pgx.Row) (Invoice, error) {
	var (
		inv                              Invoice
		status                           string
		rate, subtotal, tax, grand, paid pgtype.Numeric
	)
	if err := row.Scan(&inv.ID, &inv.CompanyID, &inv.Number, &inv.CustomerName, &inv.IssueDate, &inv.DueDate,
		&rate, &subtotal, &tax, &grand, &paid, &status, &inv.StockReserved, &inv.Notes,
		&inv.CreatedAt, &inv.UpdatedAt); err != nil {
		return Invoice{}, err
	}
	inv.Status = Status(status)
	inv.TaxRate = db.Decimal(rate)
	inv.Subtotal = db.Decimal(subtotal)
	inv.TaxTotal = db.Decimal(tax)
	inv.GrandTotal = db.Decimal(grand)
	inv.AmountPaid = db.Decimal(paid)
	return inv, nil
}
