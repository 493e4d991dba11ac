package cmd

import (
	"VibingStorage/server"

	"github.com/spf13/cobra"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "启动vibing-storage服务器",
	Long:  `启动HTTP服务器，提供曲目查询、投票、下载、流式播放和管理接口`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return server.Start(cfg)
	},
}

func init() {
	rootCmd.AddCommand(serverCmd)
}
