package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/noah-isme/sma-timetable-api/internal/repository"
	"github.com/noah-isme/sma-timetable-api/internal/scheduler"
	"github.com/noah-isme/sma-timetable-api/pkg/config"
	"github.com/noah-isme/sma-timetable-api/pkg/database"
)

var errCriticalConflicts = errors.New("critical conflicts found")

type report struct {
	Key       string               `json:"key,omitempty"`
	Critical  int                  `json:"critical"`
	Warnings  int                  `json:"warnings"`
	Conflicts []scheduler.Conflict `json:"conflicts"`
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "ttcheck",
		Short:         "Detect timetable conflicts offline",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newCheckCmd(), newScanCmd())
	return root
}

func newCheckCmd() *cobra.Command {
	var asJSON, strict bool
	cmd := &cobra.Command{
		Use:   "check <fixture.yaml>",
		Short: "Check a YAML timetable fixture",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fx, err := loadFixture(args[0])
			if err != nil {
				return err
			}
			rep, err := checkFixture(fx)
			if err != nil {
				return err
			}
			if err := writeReports(cmd.OutOrStdout(), []report{*rep}, asJSON); err != nil {
				return err
			}
			if strict && rep.Critical > 0 {
				return errCriticalConflicts
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the report as JSON")
	cmd.Flags().BoolVar(&strict, "strict", false, "exit non-zero when critical conflicts exist")
	return cmd
}

func newScanCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Check every timetable persisted in Postgres",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
			defer cancel()

			db, err := database.NewPostgres(ctx, cfg.Database)
			if err != nil {
				return err
			}
			defer db.Close()

			layout, err := scheduler.NewLayout(toDays(cfg.Scheduler.Days), toSlots(cfg.Scheduler.TimeSlots))
			if err != nil {
				layout = scheduler.DefaultLayout()
			}
			timetables, err := repository.NewTimetableRepository(db).ListAll(ctx)
			if err != nil {
				return fmt.Errorf("list timetables: %w", err)
			}

			reports := make([]report, 0, len(timetables))
			for _, tt := range timetables {
				g, err := scheduler.DecodeGrid(layout, tt.Schedule)
				if err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "skip %s: %v\n", tt.Key, err)
					continue
				}
				rep := summarize(scheduler.AllTimetableConflicts(g))
				rep.Key = tt.Key
				reports = append(reports, *rep)
			}
			return writeReports(cmd.OutOrStdout(), reports, asJSON)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the reports as JSON")
	return cmd
}

// checkFixture runs the local detector over the whole grid and the capacity
// and facility checks for every placement.
func checkFixture(fx *fixture) (*report, error) {
	layout, err := fx.layout()
	if err != nil {
		return nil, err
	}
	g, err := fx.grid(layout)
	if err != nil {
		return nil, err
	}
	conflicts := scheduler.AllTimetableConflicts(g)
	th := fx.thresholds()
	for _, cell := range g.Cells() {
		res := scheduler.ValidateResources(g, cell.Day, cell.Slot, cell.Assignment, fx.room(cell.Assignment.RoomID), fx.batch(cell.Assignment.BatchID), th)
		for _, c := range append(res.Conflicts, res.Warnings...) {
			if c.Kind == scheduler.ConflictCapacity || c.Kind == scheduler.ConflictFacility {
				conflicts = append(conflicts, c)
			}
		}
	}
	scheduler.SortConflicts(layout, conflicts)
	return summarize(conflicts), nil
}

func summarize(conflicts []scheduler.Conflict) *report {
	critical, warnings := scheduler.Partition(conflicts)
	if conflicts == nil {
		conflicts = []scheduler.Conflict{}
	}
	return &report{Critical: len(critical), Warnings: len(warnings), Conflicts: conflicts}
}

func writeReports(w io.Writer, reports []report, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(reports)
	}
	for _, rep := range reports {
		if rep.Key != "" {
			fmt.Fprintf(w, "%s\n", rep.Key)
		}
		fmt.Fprintf(w, "%d critical, %d warning(s)\n", rep.Critical, rep.Warnings)
		for _, c := range rep.Conflicts {
			fmt.Fprintf(w, "  [%s] %s %s %s: %s\n", c.Severity, c.Kind, c.Day, c.Slot, c.Message)
		}
	}
	return nil
}

func toDays(raw []string) []scheduler.Day {
	out := make([]scheduler.Day, 0, len(raw))
	for _, d := range raw {
		out = append(out, scheduler.Day(d))
	}
	return out
}

func toSlots(raw []string) []scheduler.TimeSlot {
	out := make([]scheduler.TimeSlot, 0, len(raw))
	for _, s := range raw {
		out = append(out, scheduler.TimeSlot(s))
	}
	return out
}
