// ABOUTME: schedules list, add, edit and delete commands
// ABOUTME: Days accept codes or English names; edit only changes the flags given

package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/posible/posible-admin/internal/backend"
	"github.com/posible/posible-admin/internal/schedule"
)

const summaryLimit = 40

type scheduleFlags struct {
	request string
	to      string
	days    []string
	hour    int
}

func (f *scheduleFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.request, "request", "", "report request sent to the agent")
	cmd.Flags().StringVar(&f.to, "to", "", "phone number that receives the report")
	cmd.Flags().StringSliceVar(&f.days, "days", nil, "days to send, e.g. mon,wed,fri")
	cmd.Flags().IntVar(&f.hour, "hour", 0, "hour of day to send (0-23)")
}

func (a *app) schedulesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "schedules",
		Aliases: []string{"schedule"},
		Short:   "Manage scheduled reports",
	}
	cmd.AddCommand(a.schedulesListCmd(), a.schedulesAddCmd(), a.schedulesEditCmd(), a.schedulesDeleteCmd())
	return cmd
}

func (a *app) schedulesListCmd() *cobra.Command {
	var phone string

	cmd := protected(&cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List scheduled reports",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			list, err := a.api.Schedules(cmd.Context(), phone)
			if err != nil {
				return describe(err, "Failed to load schedules")
			}
			if len(list) == 0 {
				a.out.Info("No scheduled reports")
				return nil
			}

			rows := make([][]string, 0, len(list))
			for _, s := range list {
				rows = append(rows, []string{
					strconv.FormatInt(s.ID, 10),
					schedule.Summary(s.Query, summaryLimit),
					s.ToNumber,
					schedule.FormatDays(s.Day),
					schedule.FormatHour(s.Hour),
				})
			}
			return a.out.Table([]string{"ID", "Report", "To", "Days", "Time"}, rows)
		},
	})
	cmd.Flags().StringVar(&phone, "phone", "", "only reports sent to this number")
	return cmd
}

func (a *app) schedulesAddCmd() *cobra.Command {
	var f scheduleFlags

	cmd := protected(&cobra.Command{
		Use:     "add",
		Short:   "Schedule a recurring report",
		Example: `  posible-admin schedules add --request "Daily sales" --to +15550001111 --days mon,fri --hour 9`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			days, err := schedule.ParseDays(f.days...)
			if err != nil {
				return err
			}
			if err := schedule.ValidateHour(f.hour); err != nil {
				return err
			}

			req := backend.ScheduleRequest{Request: f.request, ToNumber: f.to, Days: days, Hour: f.hour}
			if err := a.api.CreateSchedule(cmd.Context(), req); err != nil {
				return describe(err, "Failed to create schedule")
			}
			a.out.Success("Scheduled %q for %s at %s", f.request, schedule.FormatDays(strings.Join(days, ",")), schedule.FormatHour(f.hour))
			return nil
		},
	})
	f.register(cmd)
	for _, name := range []string{"request", "to", "days", "hour"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}

func (a *app) schedulesEditCmd() *cobra.Command {
	var f scheduleFlags

	cmd := protected(&cobra.Command{
		Use:     "edit ID",
		Short:   "Change a scheduled report",
		Example: `  posible-admin schedules edit 3 --hour 18`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid schedule id %q", args[0])
			}
			current, err := a.findSchedule(cmd.Context(), id)
			if err != nil {
				return err
			}

			req := backend.ScheduleRequest{
				Request:  current.Query,
				ToNumber: current.ToNumber,
				Hour:     current.Hour,
			}
			req.Days, _ = schedule.ParseDays(current.Day)

			flags := cmd.Flags()
			if flags.Changed("request") {
				req.Request = f.request
			}
			if flags.Changed("to") {
				req.ToNumber = f.to
			}
			if flags.Changed("days") {
				if req.Days, err = schedule.ParseDays(f.days...); err != nil {
					return err
				}
			}
			if flags.Changed("hour") {
				if err := schedule.ValidateHour(f.hour); err != nil {
					return err
				}
				req.Hour = f.hour
			}
			if len(req.Days) == 0 {
				return schedule.ErrNoDays
			}

			if err := a.api.EditSchedule(cmd.Context(), id, req); err != nil {
				return describe(err, "Failed to update schedule")
			}
			a.out.Success("Updated schedule %d", id)
			return nil
		},
	})
	f.register(cmd)
	return cmd
}

func (a *app) schedulesDeleteCmd() *cobra.Command {
	var to string

	cmd := protected(&cobra.Command{
		Use:     "delete ID",
		Aliases: []string{"rm"},
		Short:   "Delete a scheduled report",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid schedule id %q", args[0])
			}
			if to == "" {
				current, err := a.findSchedule(cmd.Context(), id)
				if err != nil {
					return err
				}
				to = current.ToNumber
			}

			if err := a.api.DeleteSchedule(cmd.Context(), id, to); err != nil {
				return describe(err, "Failed to delete schedule")
			}
			a.out.Success("Deleted schedule %d", id)
			return nil
		},
	})
	cmd.Flags().StringVar(&to, "to", "", "recipient of the report (looked up when omitted)")
	return cmd
}

func (a *app) findSchedule(ctx context.Context, id int64) (backend.Schedule, error) {
	list, err := a.api.Schedules(ctx, "")
	if err != nil {
		return backend.Schedule{}, describe(err, "Failed to load schedules")
	}
	for _, s := range list {
		if s.ID == id {
			return s, nil
		}
	}
	return backend.Schedule{}, fmt.Errorf("schedule %d not found", id)
}
