package cmd

import (
	"context"
	"fmt"
	"time"

	"VibingStorage/db"

	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "检查数据库、Redis和存储后端是否可用",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()

		pool, err := db.Open(cfg)
		if err != nil {
			return err
		}
		defer pool.Close()
		if err := pool.Ping(ctx); err != nil {
			return fmt.Errorf("数据库不可用: %w", err)
		}
		fmt.Printf("数据库连接成功 (%s)\n", cfg.DBDriver)

		if cfg.RedisEnabled() {
			if err := probeRedis(ctx); err != nil {
				return err
			}
		} else {
			fmt.Println("未配置Redis, 投票限流使用进程内存")
		}

		return listStorage(ctx, "", true, false)
	},
}

func init() {
	rootCmd.AddCommand(checkCmd)
}
