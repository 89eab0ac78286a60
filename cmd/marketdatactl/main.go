// marketdatactl 行情服务运维工具
// 功能：检查依赖连通性、验证符号规范化、查看交易日历状态
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/fynnwu/marketdata/internal/marketdata/domain"
	"github.com/fynnwu/marketdata/pkg/cache"
	"github.com/fynnwu/marketdata/pkg/config"
	"github.com/fynnwu/marketdata/pkg/db"
	"github.com/fynnwu/marketdata/pkg/logger"
)

func main() {
	// 允许用 .env 覆盖配置中的环境变量
	_ = godotenv.Load()

	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "marketdatactl",
		Short:        "Operations utility for the market data service",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// 工具输出走 stdout，日志只留错误
			return logger.Init(logger.Config{Level: "error", Format: "text", Output: "stdout"})
		},
	}

	rootCmd.PersistentFlags().String("config", "configs/marketdata/config.toml", "config file path")

	rootCmd.AddCommand(newCheckCmd())
	rootCmd.AddCommand(newNormalizeCmd())
	rootCmd.AddCommand(newCalendarCmd())

	return rootCmd
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}
	return config.Load(path)
}

// newCheckCmd 检查 MySQL 与 Redis 连通性
func newCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Verify MySQL and Redis connectivity",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()

			database, err := db.Init(db.Config{
				Driver:          cfg.Database.Driver,
				DSN:             cfg.Database.DSN,
				MaxOpenConns:    1,
				MaxIdleConns:    1,
				ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
			})
			if err != nil {
				return fmt.Errorf("mysql: %w", err)
			}
			defer database.Close()
			if err := database.Ping(ctx); err != nil {
				return fmt.Errorf("mysql: %w", err)
			}
			fmt.Println("mysql: ok")

			redisCache, err := cache.New(cache.Config{
				Host:     cfg.Redis.Host,
				Port:     cfg.Redis.Port,
				Password: cfg.Redis.Password,
				DB:       cfg.Redis.DB,
			})
			if err != nil {
				return fmt.Errorf("redis: %w", err)
			}
			defer redisCache.Close()
			if err := redisCache.Ping(ctx); err != nil {
				return fmt.Errorf("redis: %w", err)
			}
			fmt.Println("redis: ok")
			return nil
		},
	}
}

// newNormalizeCmd 验证符号规范化结果
func newNormalizeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "normalize CLASS SYMBOL",
		Short: "Normalize a raw symbol and print the cache key",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			class, err := domain.ParseAssetClass(args[0])
			if err != nil {
				return err
			}
			id, err := domain.NormalizeSymbol(class, args[1])
			if err != nil {
				return err
			}
			fmt.Printf("class:  %s\nsymbol: %s\nkey:    %s\n", id.Class, id.Symbol, id)
			if id.Class == domain.AssetClassFuture {
				product, month, year, perr := domain.ParseFutureSymbol(id.Symbol)
				if perr == nil {
					fmt.Printf("expiry: %s %d-%02d\n", product, year, int(month))
				}
			}
			return nil
		},
	}
}

// newCalendarCmd 查看指定时刻的交易日历状态
func newCalendarCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "calendar CLASS",
		Short: "Show trading calendar status for an asset class",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			class, err := domain.ParseAssetClass(args[0])
			if err != nil {
				return err
			}

			name := map[domain.AssetClass]string{
				domain.AssetClassTwEquity: cfg.Market.TwEquity.Calendar,
				domain.AssetClassUsEquity: cfg.Market.UsEquity.Calendar,
				domain.AssetClassFuture:   cfg.Market.Future.Calendar,
			}[class]
			calendar, err := domain.BuiltinCalendar(name)
			if err != nil {
				return err
			}

			at := time.Now()
			if raw, _ := cmd.Flags().GetString("at"); raw != "" {
				at, err = time.Parse(time.RFC3339, raw)
				if err != nil {
					return fmt.Errorf("invalid --at value, use RFC3339: %w", err)
				}
			}

			local := at.In(calendar.Location)
			fmt.Printf("calendar: %s\ntimezone: %s\nlocal:    %s\nopen:     %t\n",
				calendar.Name, calendar.Location, local.Format(time.RFC3339), calendar.IsOpen(at))
			for _, w := range calendar.Sessions {
				fmt.Printf("session:  %s\n", w)
			}
			return nil
		},
	}
	cmd.Flags().String("at", "", "evaluate at this RFC3339 time instead of now")
	return cmd
}
