package cli

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wisdomia/uiverify/internal/flows"
	"github.com/wisdomia/uiverify/internal/report"
)

func newFlowCommand(a *app, name, short string) *cobra.Command {
	return &cobra.Command{
		Use:   name,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.validate(flowSections[name]...); err != nil {
				if flows.Fatal(a.cfg.Policy, name) {
					return err
				}
				a.log.Error("Error: " + err.Error())
				return nil
			}
			res, err := a.executor().Run(cmd.Context(), name)
			a.writeTextfile()
			if a.cfg.Report.Enabled && res != nil {
				a.writeReport([]*flows.Result{res})
			}
			if err != nil {
				return &flowFailure{err}
			}
			return nil
		},
	}
}

func newAllCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "all",
		Short: "Run every flow in sequence and write a report",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.validate(); err != nil {
				return err
			}
			results, err := a.executor().RunAll(cmd.Context())
			a.writeTextfile()
			if a.cfg.Report.Enabled {
				a.writeReport(results)
			}

			passed := 0
			for _, res := range results {
				if !res.Failed() {
					passed++
				}
			}
			a.log.Info("Run complete", zap.Int("passed", passed), zap.Int("flows", len(results)))

			if err != nil {
				return &flowFailure{err}
			}
			return nil
		},
	}
}

func (a *app) writeReport(results []*flows.Result) {
	paths, err := report.Write(a.cfg.Report.Dir, results)
	if err != nil {
		a.log.Warn("Failed to write report", zap.Error(err))
		return
	}
	a.log.Info("Report written", zap.Strings("paths", paths))
}
