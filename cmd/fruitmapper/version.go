package main

import (
	"fmt"

	"github.com/deveyNull/fruitmapper/internal/pkg/version"

	"github.com/spf13/cobra"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "显示版本信息",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("fruitmapper %s\n", version.GetVersion())
			fmt.Printf("Build Time: %s\n", version.BuildTime)
			fmt.Printf("Git Commit: %s\n", version.GitCommit)
			fmt.Printf("Go Version: %s\n", version.GoVersion)
		},
	}
}
