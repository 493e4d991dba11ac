package cmd

import (
	"fmt"

	"VibingStorage/db"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "创建或更新数据库表结构",
	RunE: func(cmd *cobra.Command, args []string) error {
		pool, err := db.Open(cfg)
		if err != nil {
			return err
		}
		defer pool.Close()

		if err := pool.AutoMigrate(); err != nil {
			return err
		}
		fmt.Printf("数据库表结构已更新 (%s)\n", cfg.DBDriver)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
