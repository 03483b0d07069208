package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/life2you_mini/regime/internal/config"
)

// configCmd 配置文件管理
func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "配置文件管理",
	}
	cmd.AddCommand(configInitCmd())
	return cmd
}

// configInitCmd 生成默认配置模板
// 密钥字段写出为空, 运行时通过环境变量或.env注入
func configInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init [path]",
		Short: "生成默认配置文件",
		Long: `将默认配置写入指定路径 (默认config/config.yaml).
API密钥/Webhook/密码等敏感字段不会写入文件, 需通过环境变量或.env提供:
DUNE_API_KEY, ALLIUM_API_KEY, ALCHEMY_API_KEY,
SLACK_WEBHOOK_URL, TELEGRAM_BOT_TOKEN, TELEGRAM_CHAT_ID 等.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := cfgFile
			if len(args) > 0 {
				path = args[0]
			}

			if err := config.SaveConfigToFile(config.GetDefaultConfig(), path); err != nil {
				return fmt.Errorf("写入配置文件失败: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "配置模板已写入 %s\n", path)
			return nil
		},
	}
}
