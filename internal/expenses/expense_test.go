package expenses

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/bizcore/internal/shared"
)

func TestExpenseValidate(t *testing.T) {
	valid := Expense{CompanyID: 1, Category: CategorySalary, Amount: decimal.NewFromInt(10), IncurredAt: time.Now()}
	require.NoError(t, valid.Validate())

	missingCompany := valid
	missingCompany.CompanyID = 0
	require.ErrorIs(t, missingCompany.Validate(), shared.ErrValidation)

	missingCategory := valid
	missingCategory.Category = "  "
	require.ErrorIs(t, missingCategory.Validate(), shared.ErrValidation)

	missingDate := valid
	missingDate.IncurredAt = time.Time{}
	require.ErrorIs(t, missingDate.Validate(), shared.ErrValidation)
}
