package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/deveyNull/fruitmapper/internal/app/fruitmapper"
	"github.com/deveyNull/fruitmapper/internal/model/asset"
	"github.com/deveyNull/fruitmapper/internal/model/system"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

func newFruitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fruit",
		Short: "管理指纹和产品类别",
	}

	cmd.AddCommand(newFruitAddCmd())
	cmd.AddCommand(newFruitRemoveCmd())
	cmd.AddCommand(newFruitSetTypeCmd())
	cmd.AddCommand(newFruitTypeCmd())
	return cmd
}

func newFruitAddCmd() *cobra.Command {
	var (
		typeName string
		regex    string
		fruit    asset.Fruit
	)

	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "新增指纹并重算指纹归类",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp()
			if err != nil {
				return err
			}
			defer app.Close()

			ft, err := requireFruitType(cmd.Context(), app, typeName)
			if err != nil {
				return err
			}
			fruit.Name = args[0]
			fruit.FruitTypeID = ft.ID
			if regex != "" {
				fruit.MatchRegex = &regex
			}

			report, err := app.Classify.Maintainer.AddFruit(cmd.Context(), &fruit)
			if err != nil {
				return err
			}
			pterm.Success.Printf("fruit %d created\n", fruit.ID)
			return printReport(report)
		},
	}

	cmd.Flags().StringVarP(&typeName, "type", "t", "", "产品类别名称")
	cmd.Flags().StringVarP(&fruit.MatchType, "match-type", "m", asset.MatchTypeBanner, "匹配类型 (banner, html, http_header, unknown)")
	cmd.Flags().StringVarP(&regex, "regex", "r", "", "匹配正则")
	cmd.Flags().StringVar(&fruit.CountryOfOrigin, "country", "", "来源国家")
	_ = cmd.MarkFlagRequired("type")
	return cmd
}

func newFruitRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm <name>",
		Short: "删除指纹并重算指纹归类",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp()
			if err != nil {
				return err
			}
			defer app.Close()

			fruit, err := requireFruit(cmd.Context(), app, args[0])
			if err != nil {
				return err
			}
			report, err := app.Classify.Maintainer.RemoveFruit(cmd.Context(), fruit.ID)
			if err != nil {
				return err
			}
			return printReport(report)
		},
	}
}

func newFruitSetTypeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set-type <fruit> <fruit-type>",
		Short: "把指纹改到另一个产品类别, 同步已命中服务的 fruit_type_id",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp()
			if err != nil {
				return err
			}
			defer app.Close()

			fruit, err := requireFruit(cmd.Context(), app, args[0])
			if err != nil {
				return err
			}
			ft, err := requireFruitType(cmd.Context(), app, args[1])
			if err != nil {
				return err
			}
			affected, err := app.Classify.Maintainer.ReassignFruitType(cmd.Context(), fruit.ID, ft.ID)
			if err != nil {
				return err
			}
			pterm.Success.Printf("%d services moved to fruit type %s\n", affected, ft.Name)
			return nil
		},
	}
}

func newFruitTypeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "type",
		Short: "管理产品类别",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "列出产品类别",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp()
			if err != nil {
				return err
			}
			defer app.Close()

			types, err := app.Classify.RuleStore.ListFruitTypes(cmd.Context())
			if err != nil {
				return err
			}
			rows := make([][]string, 0, len(types))
			for _, ft := range types {
				rows = append(rows, []string{strconv.FormatUint(ft.ID, 10), ft.Name, ft.Description})
			}
			return renderTable([]string{"ID", "名称", "描述"}, rows)
		},
	})

	var description string
	add := &cobra.Command{
		Use:   "add <name>",
		Short: "新增产品类别",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp()
			if err != nil {
				return err
			}
			defer app.Close()

			ft := &asset.FruitType{Name: args[0], Description: description}
			if err := app.Classify.RuleStore.AddFruitType(cmd.Context(), ft); err != nil {
				return err
			}
			pterm.Success.Printf("fruit type %d created\n", ft.ID)
			return nil
		},
	}
	add.Flags().StringVar(&description, "description", "", "描述")
	cmd.AddCommand(add)

	cmd.AddCommand(&cobra.Command{
		Use:   "rm <name>",
		Short: "删除产品类别(仍有指纹引用时拒绝)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp()
			if err != nil {
				return err
			}
			defer app.Close()

			ft, err := requireFruitType(cmd.Context(), app, args[0])
			if err != nil {
				return err
			}
			if err := app.Classify.RuleStore.RemoveFruitType(cmd.Context(), ft.ID); err != nil {
				return err
			}
			pterm.Success.Printf("fruit type %s removed\n", strconv.Quote(ft.Name))
			return nil
		},
	})

	return cmd
}

func requireFruit(ctx context.Context, app *fruitmapper.App, name string) (*asset.Fruit, error) {
	fruit, err := app.Classify.RuleStore.GetFruitByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if fruit == nil {
		return nil, fmt.Errorf("%w: %s", system.ErrFruitNotFound, name)
	}
	return fruit, nil
}

func requireFruitType(ctx context.Context, app *fruitmapper.App, name string) (*asset.FruitType, error) {
	ft, err := app.Classify.RuleStore.GetFruitTypeByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if ft == nil {
		return nil, fmt.Errorf("%w: %s", system.ErrFruitTypeNotFound, name)
	}
	return ft, nil
}
