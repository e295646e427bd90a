package db

import (
	"testing"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestNumericRoundTrip(t *testing.T) {
	for _, s := range []string{"0", "26000", "1234.56", "-0.01", "12.99"} {
		d := decimal.RequireFromString(s)
		require.True(t, d.Equal(Decimal(Numeric(d))), s)
	}
}

func TestDecimalNullIsZero(t *testing.T) {
	require.True(t, Decimal(pgtype.Numeric{}).IsZero())
	require.True(t, Decimal(pgtype.Numeric{Valid: true, NaN: true}).IsZero())
}
