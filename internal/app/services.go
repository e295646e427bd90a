package app

import (
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/bizcore/internal/audit"
	"github.com/odyssey-erp/bizcore/internal/employees"
	"github.com/odyssey-erp/bizcore/internal/inventory"
	"github.com/odyssey-erp/bizcore/internal/invoices"
	"github.com/odyssey-erp/bizcore/internal/leave"
	"github.com/odyssey-erp/bizcore/internal/observability"
	"github.com/odyssey-erp/bizcore/internal/payroll"
	"github.com/odyssey-erp/bizcore/internal/shared"
	"github.com/odyssey-erp/bizcore/jobs"
)

// Services bundles the domain services of one process.
type Services struct {
	Employees *employees.Service
	Leave     *leave.Service
	Payroll   *payroll.Service
	Inventory *inventory.Service
	Invoices  *invoices.Service
	Audit     *audit.Service
}

// ServiceDeps are the infrastructure handles the services are built on.
// Redis, Jobs and Metrics may be nil.
type ServiceDeps struct {
	Pool    *pgxpool.Pool
	Redis   *redis.Client
	Jobs    *jobs.Client
	Metrics *observability.Metrics
	Config  *Config
	Logger  *slog.Logger
}

// NewServices wires repositories and services over deps.
func NewServices(deps ServiceDeps) (*Services, error) {
	cfg := deps.Config
	if cfg == nil {
		cfg = &Config{}
	}
	var taxRate *decimal.Decimal
	if cfg.InvoiceDefaultTaxRate != "" {
		rate, err := cfg.TaxRate()
		if err != nil {
			return nil, err
		}
		taxRate = &rate
	}
	auditLogger := shared.NewAuditLogger(deps.Pool)

	employeeService := employees.NewService(employees.NewRepository(deps.Pool), auditLogger, deps.Logger)
	leaveService := leave.NewService(leave.NewRepository(deps.Pool), employeeService, deps.Logger)

	var locker payroll.LockerPort
	if deps.Redis != nil {
		locker = shared.NewLocker(deps.Redis)
	}
	payrollService := payroll.NewService(
		payroll.NewRepository(deps.Pool),
		employeeService,
		leaveService,
		locker,
		payroll.ServiceConfig{Concurrency: cfg.PayrollConcurrency, LockTTL: cfg.PayrollLockTTL},
		deps.Logger,
	)
	payrollService.SetAudit(auditLogger)

	var ledgerMetrics inventory.MetricsRecorder
	if deps.Metrics != nil {
		ledgerMetrics = deps.Metrics
		payrollService.SetMetrics(deps.Metrics)
	}
	inventoryService := inventory.NewService(inventory.NewRepository(deps.Pool), auditLogger, deps.Logger)
	invoiceService := invoices.NewService(
		invoices.NewRepository(deps.Pool),
		inventory.NewLedger(ledgerMetrics),
		invoices.ServiceConfig{DefaultTaxRate: taxRate, PaymentTerms: cfg.InvoicePaymentTerms},
		deps.Logger,
	)
	invoiceService.SetAudit(auditLogger)

	if deps.Jobs != nil {
		payrollService.SetNotifier(deps.Jobs)
		invoiceService.SetNotifier(deps.Jobs)
	}

	return &Services{
		Employees: employeeService,
		Leave:     leaveService,
		Payroll:   payrollService,
		Inventory: inventoryService,
		Invoices:  invoiceService,
		Audit:     audit.NewService(audit.NewRepository(deps.Pool)),
	}, nil
}
