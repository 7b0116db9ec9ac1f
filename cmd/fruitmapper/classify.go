package main

import (
	"github.com/deveyNull/fruitmapper/internal/model/system"
	"github.com/deveyNull/fruitmapper/internal/service/classify"

	"github.com/spf13/cobra"
)

func newClassifyCmd() *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "classify <service-id>",
		Short: "对单个服务重新归类",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			app, err := openApp()
			if err != nil {
				return err
			}
			defer app.Close()

			ctx := cmd.Context()
			if !dryRun {
				res, err := app.Classify.Orchestrator.ClassifyService(ctx, id)
				if err != nil {
					return err
				}
				return printResult(res, false)
			}

			svc, err := app.Classify.ServiceRepo.GetServiceByID(ctx, id)
			if err != nil {
				return err
			}
			if svc == nil {
				return system.ErrServiceNotFound
			}
			snap, err := app.Classify.Orchestrator.LoadSnapshot(ctx)
			if err != nil {
				return err
			}
			res := classify.Classify(svc, snap)
			return printResult(&res, true)
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "只计算不写库")
	return cmd
}
