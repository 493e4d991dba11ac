package cmd

import (
	"context"
	"fmt"
	"os"

	"VibingStorage/server"
	"VibingStorage/storage"

	"github.com/spf13/cobra"
)

var (
	storagePrefix    string
	storageStats     bool
	storageRecursive bool
)

var storageCmd = &cobra.Command{
	Use:   "storage",
	Short: "查看存储中的音频文件",
	Long:  `列出配置的存储后端（本地目录或MinIO存储桶）中的音频文件，支持统计信息和目录结构显示。`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return listStorage(cmd.Context(), storagePrefix, storageStats, storageRecursive)
	},
}

func listStorage(ctx context.Context, prefix string, stats, recursive bool) error {
	store, _, err := server.OpenStore(ctx, cfg)
	if err != nil {
		return err
	}
	fmt.Printf("存储后端: %s\n", store.Name())

	objects, err := store.List(ctx, prefix)
	if err != nil {
		return fmt.Errorf("列出文件失败: %w", err)
	}

	switch {
	case recursive:
		storage.PrintTree(os.Stdout, objects)
	case !stats:
		for _, obj := range objects {
			fmt.Printf("%-60s %10s  %s\n", obj.Key, storage.FormatSize(obj.Size), obj.LastModified.Format("2006-01-02 15:04:05"))
		}
	}

	summary := storage.Summarize(objects)
	fmt.Printf("共 %d 个音频文件, 总大小 %s", summary.TotalObjects, storage.FormatSize(summary.TotalSize))
	if !summary.LastModified.IsZero() {
		fmt.Printf(", 最近修改 %s", summary.LastModified.Format("2006-01-02 15:04:05"))
	}
	fmt.Println()
	return nil
}

func init() {
	rootCmd.AddCommand(storageCmd)

	storageCmd.Flags().StringVarP(&storagePrefix, "prefix", "p", "", "按前缀过滤文件")
	storageCmd.Flags().BoolVarP(&storageStats, "stats", "s", false, "只显示统计信息")
	storageCmd.Flags().BoolVarP(&storageRecursive, "recursive", "r", false, "递归显示目录结构")

	storageCmd.Example = `  # 列出所有文件
  vibing storage

  # 按前缀过滤文件
  vibing storage -p "albums/"

  # 显示统计信息
  vibing storage -s

  # 递归显示目录结构
  vibing storage -r -p "albums/"`
}
