package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/deveyNull/fruitmapper/internal/app/fruitmapper"
	"github.com/deveyNull/fruitmapper/internal/model/asset"
	"github.com/deveyNull/fruitmapper/internal/model/system"
	"github.com/deveyNull/fruitmapper/internal/pkg/utils"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

// 规则写操作统一经 Maintainer, 保证变更后服务归类同步更新

func newOwnerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "owner",
		Short: "管理归属方及其 IP/域名规则",
	}

	cmd.AddCommand(newOwnerListCmd())
	cmd.AddCommand(newOwnerAddCmd())
	cmd.AddCommand(newOwnerRemoveCmd())
	cmd.AddCommand(newOwnerIPCmd())
	cmd.AddCommand(newOwnerDomainCmd())
	return cmd
}

func newOwnerListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "列出归属方",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp()
			if err != nil {
				return err
			}
			defer app.Close()

			owners, err := app.Classify.RuleStore.ListOwners(cmd.Context())
			if err != nil {
				return err
			}
			rows := make([][]string, 0, len(owners))
			for _, o := range owners {
				rows = append(rows, []string{strconv.FormatUint(o.ID, 10), o.Name, string(o.Status), o.ContactInfo})
			}
			return renderTable([]string{"ID", "名称", "状态", "联系方式"}, rows)
		},
	}
}

func newOwnerAddCmd() *cobra.Command {
	owner := &asset.Owner{}

	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "新增归属方(无规则时不影响任何服务)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp()
			if err != nil {
				return err
			}
			defer app.Close()

			owner.Name = args[0]
			if err := app.Classify.RuleStore.AddOwner(cmd.Context(), owner); err != nil {
				return err
			}
			pterm.Success.Printf("owner %d created\n", owner.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&owner.Description, "description", "", "描述")
	cmd.Flags().StringVar(&owner.ContactInfo, "contact", "", "联系方式")
	return cmd
}

func newOwnerRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm <name>",
		Short: "删除归属方及其全部规则(仍有服务引用时拒绝)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp()
			if err != nil {
				return err
			}
			defer app.Close()

			owner, err := requireOwner(cmd.Context(), app, args[0])
			if err != nil {
				return err
			}
			report, err := app.Classify.Maintainer.RemoveOwner(cmd.Context(), owner.ID)
			if err != nil {
				return err
			}
			return printReport(report)
		},
	}
}

func newOwnerIPCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ip",
		Short: "管理归属方 IP/CIDR 规则",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "add <owner> <ip|cidr>",
		Short: "新增 IP 或 CIDR 规则",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp()
			if err != nil {
				return err
			}
			defer app.Close()

			owner, err := requireOwner(cmd.Context(), app, args[0])
			if err != nil {
				return err
			}
			rule, report, err := app.Classify.Maintainer.AddOwnerIPRule(cmd.Context(), owner.ID, args[1])
			if err != nil {
				return err
			}
			pterm.Success.Printf("ip rule %d created\n", rule.ID)
			return printReport(report)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "rm <rule-id>",
		Short: "删除 IP 规则",
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

			report, err := app.Classify.Maintainer.RemoveOwnerIPRule(cmd.Context(), id)
			if err != nil {
				return err
			}
			return printReport(report)
		},
	})

	return cmd
}

func newOwnerDomainCmd() *cobra.Command {
	var includeSubdomains bool

	cmd := &cobra.Command{
		Use:   "domain",
		Short: "管理归属方域名规则",
	}

	add := &cobra.Command{
		Use:   "add <owner> <domain>",
		Short: "新增域名规则; 未指定时一级域名默认包含子域名",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp()
			if err != nil {
				return err
			}
			defer app.Close()

			owner, err := requireOwner(cmd.Context(), app, args[0])
			if err != nil {
				return err
			}
			include := includeSubdomains
			if !cmd.Flags().Changed("include-subdomains") {
				include = utils.IsBaseDomain(utils.NormalizeDomain(args[1]))
			}
			rule, report, err := app.Classify.Maintainer.AddOwnerDomainRule(cmd.Context(), owner.ID, args[1], include)
			if err != nil {
				return err
			}
			pterm.Success.Printf("domain rule %d created (include_subdomains=%t)\n", rule.ID, rule.IncludeSubdomains)
			return printReport(report)
		},
	}
	add.Flags().BoolVar(&includeSubdomains, "include-subdomains", false, "同时匹配子域名")
	cmd.AddCommand(add)

	cmd.AddCommand(&cobra.Command{
		Use:   "rm <rule-id>",
		Short: "删除域名规则",
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

			report, err := app.Classify.Maintainer.RemoveOwnerDomainRule(cmd.Context(), id)
			if err != nil {
				return err
			}
			return printReport(report)
		},
	})

	return cmd
}

func requireOwner(ctx context.Context, app *fruitmapper.App, name string) (*asset.Owner, error) {
	owner, err := app.Classify.RuleStore.GetOwnerByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if owner == nil {
		return nil, fmt.Errorf("%w: %s", system.ErrOwnerNotFound, name)
	}
	return owner, nil
}

func parseID(s string) (uint64, error) {
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid id %q: %w", s, err)
	}
	return id, nil
}
