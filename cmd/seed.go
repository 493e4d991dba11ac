package cmd

import (
	"errors"
	"fmt"

	"VibingStorage/db"
	"VibingStorage/repository"

	"github.com/spf13/cobra"
)

var (
	seedGroup string
	seedVibes []string
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "添加氛围分组和氛围标签",
	Example: `  # 在 mood 分组中添加两个标签
  vibing seed --group mood --vibe chill --vibe dark`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if seedGroup == "" || len(seedVibes) == 0 {
			return errors.New("--group and at least one --vibe are required")
		}

		pool, err := db.Open(cfg)
		if err != nil {
			return err
		}
		defer pool.Close()
		if err := pool.AutoMigrate(); err != nil {
			return err
		}

		vibes := repository.NewVibeRepository(pool)
		for _, name := range seedVibes {
			vibe, err := vibes.EnsureVibe(cmd.Context(), seedGroup, name)
			if err != nil {
				return fmt.Errorf("seed %s/%s: %w", seedGroup, name, err)
			}
			fmt.Printf("%s/%s -> id %d\n", vibe.GroupName, vibe.Name, vibe.ID)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(seedCmd)

	seedCmd.Flags().StringVarP(&seedGroup, "group", "g", "", "氛围分组名称")
	seedCmd.Flags().StringArrayVarP(&seedVibes, "vibe", "v", nil, "氛围标签名称，可重复")
}
