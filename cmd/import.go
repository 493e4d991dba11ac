package cmd

import (
	"fmt"
	"os/signal"
	"syscall"

	"VibingStorage/config"
	"VibingStorage/core/library"
	"VibingStorage/db"
	"VibingStorage/repository"
	"VibingStorage/server"
	"VibingStorage/storage"

	"github.com/spf13/cobra"
)

var (
	importPrefix string
	importWatch  bool
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "扫描存储中的音频文件并登记到曲目库",
	Long:  `扫描配置的存储后端（本地目录或MinIO存储桶），为尚未登记的音频文件创建曲目。使用 --watch 时持续监听本地资源目录。`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		pool, err := db.Open(cfg)
		if err != nil {
			return err
		}
		defer pool.Close()
		if err := pool.AutoMigrate(); err != nil {
			return err
		}

		store, extractor, err := server.OpenStore(ctx, cfg)
		if err != nil {
			return err
		}
		importer := library.NewImporter(repository.NewTrackRepository(pool), store, extractor)

		res, err := importer.ImportAll(ctx, importPrefix)
		if err != nil {
			return err
		}
		fmt.Printf("扫描 %d 个文件: 新增 %d, 跳过 %d, 失败 %d\n", res.Scanned, res.Created, res.Skipped, res.Failed)

		if !importWatch {
			return nil
		}
		local, ok := store.(*storage.Local)
		if !ok || cfg.StorageBackend != config.StorageLocal {
			return fmt.Errorf("--watch requires the %q storage backend", config.StorageLocal)
		}
		fmt.Printf("监听目录 %s，按 Ctrl+C 退出\n", local.Root())
		return importer.Watch(ctx, local.Root(), func(path string) {
			fmt.Printf("新增曲目: %s\n", path)
		})
	},
}

func init() {
	rootCmd.AddCommand(importCmd)

	importCmd.Flags().StringVarP(&importPrefix, "prefix", "p", "", "只扫描该前缀下的文件")
	importCmd.Flags().BoolVarP(&importWatch, "watch", "w", false, "扫描后持续监听新文件（仅本地存储）")
}
