package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/odyssey-erp/bizcore/internal/app"
	"github.com/odyssey-erp/bizcore/internal/payroll"
	"github.com/odyssey-erp/bizcore/internal/platform/cache"
	"github.com/odyssey-erp/bizcore/internal/platform/db"
)

type payrollFlags struct {
	companyID  int64
	employeeID int64
	period     string
	bonus      string
}

func (f payrollFlags) parse() (payroll.Period, decimal.Decimal, error) {
	if f.companyID <= 0 {
		return payroll.Period{}, decimal.Zero, errors.New("--company is required")
	}
	period, err := payroll.ParsePeriod(f.period)
	if err != nil {
		return payroll.Period{}, decimal.Zero, err
	}
	bonus := decimal.Zero
	if f.bonus != "" {
		bonus, err = decimal.NewFromString(f.bonus)
		if err != nil || bonus.IsNegative() {
			return payroll.Period{}, decimal.Zero, fmt.Errorf("--bonus must be a non-negative number, got %q", f.bonus)
		}
	}
	return period, bonus, nil
}

func newPayrollCmd(state *cliState) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "payroll",
		Short: "Preview and run payroll",
	}
	var flags payrollFlags

	preview := &cobra.Command{
		Use:     "preview",
		Short:   "Show the payable salary of one employee without paying",
		Example: "  bizctl payroll preview --company 1 --employee 42 --period 2024-02 --bonus 500",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			period, bonus, err := flags.parse()
			if err != nil {
				return err
			}
			if flags.employeeID <= 0 {
				return errors.New("--employee is required")
			}
			services, closeFn, err := connect(cmd, state, false)
			if err != nil {
				return err
			}
			defer closeFn()
			result, err := services.Payroll.PayableSalary(cmd.Context(), flags.companyID, flags.employeeID, period, bonus)
			if err != nil {
				return err
			}
			return printJSON(cmd, result)
		},
	}
	preview.Flags().Int64Var(&flags.employeeID, "employee", 0, "employee id")
	preview.Flags().StringVar(&flags.bonus, "bonus", "", "bonus added to the base salary")

	run := &cobra.Command{
		Use:     "run",
		Short:   "Pay every active employee of a company for a period",
		Example: "  bizctl payroll run --company 1 --period 2024-02",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			period, _, err := flags.parse()
			if err != nil {
				return err
			}
			services, closeFn, err := connect(cmd, state, true)
			if err != nil {
				return err
			}
			defer closeFn()
			result, err := services.Payroll.RunPayroll(cmd.Context(), flags.companyID, period)
			if err != nil {
				return err
			}
			return printJSON(cmd, result)
		},
	}

	for _, c := range []*cobra.Command{preview, run} {
		c.Flags().Int64Var(&flags.companyID, "company", 0, "company id")
		c.Flags().StringVar(&flags.period, "period", "", "pay period YYYY-MM")
		_ = c.MarkFlagRequired("company")
		_ = c.MarkFlagRequired("period")
	}
	cmd.AddCommand(preview, run)
	return cmd
}

// connect opens the database, and redis when the run lock is needed.
func connect(cmd *cobra.Command, state *cliState, withRedis bool) (*app.Services, func(), error) {
	pool, err := db.New(cmd.Context(), state.cfg.PGDSN, 4)
	if err != nil {
		return nil, nil, err
	}
	deps := app.ServiceDeps{Pool: pool, Config: state.cfg, Logger: state.logger}
	var redisClient *redis.Client
	if withRedis {
		redisClient, err = cache.New(cmd.Context(), state.cfg.RedisAddr)
		if err != nil {
			pool.Close()
			return nil, nil, err
		}
		deps.Redis = redisClient
	}
	closeFn := func() {
		if redisClient != nil {
			_ = redisClient.Close()
		}
		pool.Close()
	}
	services, err := app.NewServices(deps)
	if err != nil {
		closeFn()
		return nil, nil, err
	}
	return services, closeFn, nil
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
