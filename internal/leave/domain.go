package leave

import (
	"fmt"
	"time"

	"github.com/odyssey-erp/bizcore/internal/shared"
)

// Status enumerates leave request states.
type Status string

const (
	StatusPending  Status = "PENDING"
	StatusApproved Status = "APPROVED"
	StatusRejected Status = "REJECTED"
)

// Request is a leave request for a single employee over an inclusive date range.
type Request struct {
	ID         int64      `json:"id"`
	CompanyID  int64      `json:"company_id"`
	EmployeeID int64      `json:"employee_id"`
	StartDate  time.Time  `json:"start_date"`
	EndDate    time.Time  `json:"end_date"`
	Status     Status     `json:"status"`
	Reason     string     `json:"reason,omitempty"`
	DecidedBy  *int64     `json:"decided_by,omitempty"`
	DecidedAt  *time.Time `json:"decided_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// Interval is an inclusive calendar date range.
type Interval struct {
	Start time.Time
	End   time.Time
}

// Window is the closed billing window leave is counted against.
type Window struct {
	Start time.Time
	End   time.Time
}

// SubmitInput describes a new leave request.
type SubmitInput struct {
	CompanyID  int64
	EmployeeID int64
	StartDate  time.Time
	EndDate    time.Time
	Reason     string
}

// DecisionInput approves or rejects a pending request.
type DecisionInput struct {
	CompanyID int64
	RequestID int64
	Status    Status
	ActorID   int64
}

var (
	// ErrRequestNotFound indicates a missing leave request.
	ErrRequestNotFound = fmt.Errorf("leave: request %w", shared.ErrNotFound)
	// ErrInvalidTransition indicates the request was already decided.
	ErrInvalidTransition = fmt.Errorf("%w: leave: request already decided", shared.ErrConflict)
	// ErrInvalidRange indicates end precedes start.
	ErrInvalidRange = shared.Invalid("end_date", "must not be before start_date")
)
