package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault carries maintenance work such as the overdue sweep.
	QueueDefault = "default"
	// QueueNotifications carries user-facing notices and alerts.
	QueueNotifications = "notifications"
	// TaskLowStock alerts that an item reached its reorder level.
	TaskLowStock = "inventory:low_stock"
	// TaskPayslipNotice announces a salary payment to the employee.
	TaskPayslipNotice = "payroll:payslip_notice"
	// TaskOverdueSweep marks unpaid invoices past due as overdue.
	TaskOverdueSweep = "invoices:overdue_sweep"
)

// LowStockPayload describes an item at or below its reorder level.
type LowStockPayload struct {
	CompanyID      int64  `json:"company_id"`
	ItemID         int64  `json:"item_id"`
	SKU            string `json:"sku"`
	Name           string `json:"name"`
	QuantityOnHand int64  `json:"quantity_on_hand"`
	ReorderLevel   int64  `json:"reorder_level"`
}

// PayslipNoticePayload carries what a payslip notice needs.
type PayslipNoticePayload struct {
	CompanyID    int64  `json:"company_id"`
	EmployeeID   int64  `json:"employee_id"`
	EmployeeName string `json:"employee_name"`
	Email        string `json:"email"`
	Reference    string `json:"reference"`
	Period       string `json:"period"`
	Amount       string `json:"amount"`
}

// OverdueSweepPayload carries the cut-off date. A zero AsOf means "now".
type OverdueSweepPayload struct {
	AsOf time.Time `json:"as_of"`
}

// NewLowStockTask constructs an Asynq task for a low stock alert.
func NewLowStockTask(payload LowStockPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLowStock, data, asynq.Queue(QueueNotifications), asynq.MaxRetry(5)), nil
}

// NewPayslipNoticeTask constructs an Asynq task for a payslip notice.
func NewPayslipNoticeTask(payload PayslipNoticePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskPayslipNotice, data, asynq.Queue(QueueNotifications), asynq.MaxRetry(5)), nil
}

// NewOverdueSweepTask constructs an Asynq task for the overdue invoice sweep.
func NewOverdueSweepTask(asOf time.Time) (*asynq.Task, error) {
	data, err := json.Marshal(OverdueSweepPayload{AsOf: asOf})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskOverdueSweep, data, asynq.Queue(QueueDefault), asynq.MaxRetry(3)), nil
}

// Queues lists every queue with its processing weight.
func Queues() map[string]int {
	return map[string]int{QueueNotifications: 3, QueueDefault: 1}
}
