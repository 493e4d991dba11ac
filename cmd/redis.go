package cmd

import (
	"context"
	"errors"
	"fmt"

	"VibingStorage/cache"

	"github.com/spf13/cobra"
)

var redisCmd = &cobra.Command{
	Use:   "redis",
	Short: "Redis连接测试",
	Long:  `测试投票限流所用的Redis连接是否成功，并进行基本读写操作。`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return probeRedis(cmd.Context())
	},
}

func probeRedis(ctx context.Context) error {
	if !cfg.RedisEnabled() {
		return errors.New("REDIS_HOST 未设置")
	}
	fmt.Printf("Redis配置: %s:%s, DB: %d\n", cfg.RedisHost, cfg.RedisPort, cfg.RedisDB)

	client, err := cache.ConnectRedis(ctx, cfg)
	if err != nil {
		return fmt.Errorf("无法连接到Redis: %w", err)
	}
	defer client.Close()
	fmt.Println("Redis连接成功！")

	if err := cache.Probe(ctx, client); err != nil {
		return fmt.Errorf("Redis操作测试失败: %w", err)
	}
	fmt.Println("Redis基本操作测试成功！")
	return nil
}

func init() {
	rootCmd.AddCommand(redisCmd)
}
