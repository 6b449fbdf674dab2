package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-logr/logr"
	"github.com/spf13/cobra"
	"go.uber.org/zap/zapcore"

	"github.com/shengyanli1982/gs"
	"github.com/shengyanli1982/law"
	"github.com/shengyanli1982/orbit/utils/log"

	"github.com/shengyanli1982/canbridge-go/internal/analyzer"
	"github.com/shengyanli1982/canbridge-go/internal/bridge"
	"github.com/shengyanli1982/canbridge-go/internal/canbus"
	"github.com/shengyanli1982/canbridge-go/internal/constants"
	"github.com/shengyanli1982/canbridge-go/internal/engine"
	"github.com/shengyanli1982/canbridge-go/internal/export"
	"github.com/shengyanli1982/canbridge-go/internal/metrics"
	"github.com/shengyanli1982/canbridge-go/internal/rules"
	"github.com/shengyanli1982/canbridge-go/internal/server"
)

// Version 通过 ldflags 在编译时设置
var Version = "0.1.0"

const ASCII_LOGO = `
 ██████╗ █████╗ ███╗   ██╗██████╗ ██████╗ ██╗██████╗  ██████╗ ███████╗
██╔════╝██╔══██╗████╗  ██║██╔══██╗██╔══██╗██║██╔══██╗██╔════╝ ██╔════╝
██║     ███████║██╔██╗ ██║██████╔╝██████╔╝██║██║  ██║██║  ███╗█████╗
██║     ██╔══██║██║╚██╗██║██╔══██╗██╔══██╗██║██║  ██║██║   ██║██╔══╝
╚██████╗██║  ██║██║ ╚████║██████╔╝██║  ██║██║██████╔╝╚██████╔╝███████╗
 ╚═════╝╚═╝  ╚═╝╚═╝  ╚═══╝╚═════╝ ╚═╝  ╚═╝╚═╝╚═════╝  ╚═════╝ ╚══════╝
	`

// globalFlags 全局命令行参数
type globalFlags struct {
	releaseMode bool
	jsonOutput  bool
	adminAddr   string
	adminPort   int
}

// isReleaseMode 判断是否为发布模式
func isReleaseMode(releaseMode bool) bool {
	return releaseMode || gin.Mode() == gin.ReleaseMode
}

// initLogger 初始化日志系统
// releaseMode: 是否为发布模式
// jsonOutput: 是否输出 JSON 格式日志
func initLogger(releaseMode, jsonOutput bool) (*logr.Logger, *law.WriteAsyncer) {
	var (
		logger      *logr.Logger
		asyncWriter *law.WriteAsyncer
	)

	// 在发布模式下使用异步写入器
	if isReleaseMode(releaseMode) {
		asyncWriter = law.NewWriteAsyncer(os.Stdout, law.DefaultConfig())
		if jsonOutput {
			// JSON 格式输出使用 ZapLogger
			logger = log.NewZapLogger(zapcore.AddSync(asyncWriter), true).GetLogrLogger()
		} else {
			// 普通格式输出使用 LogrLogger
			logger = log.NewLogrLogger(asyncWriter, true).GetLogrLogger()
		}
		return logger, asyncWriter
	}

	// 开发模式直接使用标准输出
	logger = log.NewLogrLogger(os.Stdout, false).GetLogrLogger()
	return logger, nil
}

// initRules 加载并解析规则文件，失败时立即返回错误
// rulesPath: 规则文件路径
func initRules(rulesPath string) (*rules.Manager, *rules.RuleSet, error) {
	manager := rules.NewManager()
	if err := manager.LoadFromFile(rulesPath); err != nil {
		return nil, nil, fmt.Errorf("failed to load rules: %w", err)
	}
	return manager, manager.GetRuleSet(), nil
}

// initCollector 按管理服务器开关选择指标收集器
// adminEnabled: 是否启用管理服务器
func initCollector(adminEnabled bool) (metrics.MetricsCollector, error) {
	cfg := metrics.DefaultConfig()
	if adminEnabled {
		cfg.Type = constants.MetricsTypePrometheus
	}
	return metrics.GetGlobalRegistry().CreateSharedCollector(constants.MetricsCollectorGlobal, cfg)
}

// initAdminServer 创建并启动管理服务器，端口为 0 时禁用
func initAdminServer(g *globalFlags, logger *logr.Logger, status server.StatusFunc) *server.AdminServer {
	if g.adminPort <= 0 {
		return nil
	}

	adminServer := server.NewAdminServer(!g.releaseMode, logger, g.adminAddr, g.adminPort, metrics.GetGlobalRegistry(), status)
	adminServer.Start()
	return adminServer
}

// runWithShutdown 运行帧处理循环并挂接优雅关闭机制
// run: 阻塞的帧处理循环
// cleanups: 按顺序在循环退出后执行的清理函数
func runWithShutdown(logger *logr.Logger, asyncWriter *law.WriteAsyncer, run func(ctx context.Context) error, cleanups ...func()) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 帧处理循环在后台运行，退出错误通过通道回传
	errCh := make(chan error, 1)
	go func() {
		errCh <- run(ctx)
	}()

	// 终止信号只负责取消上下文，循环退出统一在下方收敛
	go func() {
		loopSignal := gs.NewTerminateSignal()
		loopSignal.RegisterCancelHandles(cancel)
		gs.WaitForSync(loopSignal)
	}()

	// 循环可能因终端 I/O 错误先于信号退出，错误必须回传给调用方
	err := <-errCh
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error(err, "Frame loop terminated with error")
	} else {
		err = nil
	}

	for _, fn := range cleanups {
		fn()
	}
	if asyncWriter != nil {
		asyncWriter.Stop()
	}
	return err
}

// newBridgeCommand 构建 bridge 子命令：按规则把输入总线的帧转发到输出总线
func newBridgeCommand(g *globalFlags) *cobra.Command {
	var (
		inputSpec     string
		outputSpec    string
		rulesPath     string
		busName       string
		recvTimeout   time.Duration
		statsInterval time.Duration
		retryAttempts int
		retryDelay    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "bridge",
		Short: "Forward frames from an input bus to an output bus applying per-identifier rules",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, asyncWriter := initLogger(g.releaseMode, g.jsonOutput)

			// 规则文件解析失败时立即退出，不开始处理任何帧
			rulesMgr, ruleSet, err := initRules(rulesPath)
			if err != nil {
				logger.Error(err, "Failed to load rules file", "path", rulesPath)
				return err
			}
			drops, remaps, limits := ruleSet.Counts()
			logger.Info("Rules loaded successfully", "path", rulesMgr.GetRulesPath(), "drops", drops, "remaps", remaps, "limits", limits)

			fmt.Println(ASCII_LOGO)

			collector, err := initCollector(g.adminPort > 0)
			if err != nil {
				logger.Error(err, "Failed to create metrics collector")
				return err
			}

			input, err := canbus.Open(inputSpec)
			if err != nil {
				logger.Error(err, "Failed to open input bus", "spec", inputSpec)
				return err
			}
			output, err := canbus.OpenSink(outputSpec)
			if err != nil {
				_ = input.Close()
				logger.Error(err, "Failed to open output bus", "spec", outputSpec)
				return err
			}

			ruleEngine, err := engine.New(ruleSet, busName, collector)
			if err != nil {
				return err
			}

			var sendRetry *bridge.RetryOptions
			if retryAttempts > 0 {
				sendRetry = &bridge.RetryOptions{Attempts: retryAttempts, Delay: retryDelay}
			}

			frameBridge, err := bridge.New(input, output, ruleEngine, bridge.Options{
				BusName:       busName,
				RecvTimeout:   recvTimeout,
				StatsInterval: statsInterval,
				SendRetry:     sendRetry,
				Logger:        logger,
				Collector:     collector,
			})
			if err != nil {
				logger.Error(err, "Failed to create bridge")
				return err
			}

			adminServer := initAdminServer(g, logger, func() map[string]interface{} {
				counters := frameBridge.Counters()
				stats := ruleEngine.Stats()
				return map[string]interface{}{
					"rx":           counters.Rx,
					"tx":           counters.Tx,
					"dropped":      counters.Dropped,
					"errors":       counters.Errors,
					"invalid":      counters.Invalid,
					"forwarded":    stats.Forwarded,
					"remapped":     stats.Remapped,
					"rate_limited": stats.RateLimited,
				}
			})

			logger.Info("Bridge started successfully", "input", inputSpec, "output", outputSpec, "bus", busName)

			return runWithShutdown(logger, asyncWriter, frameBridge.Run, func() {
				if adminServer != nil {
					adminServer.Stop()
				}
			})
		},
	}

	cmd.Flags().StringVarP(&inputSpec, "in", "i", "", "Input bus endpoint (mem:NAME, file:PATH or capture:PATH)")
	cmd.Flags().StringVarP(&outputSpec, "out", "o", "", "Output bus endpoint (mem:NAME, file:PATH or capture:PATH)")
	cmd.Flags().StringVarP(&rulesPath, "rules", "c", constants.DefaultRulesPath, "Path to rules file")
	cmd.Flags().StringVarP(&busName, "bus", "b", "can0", "Bus name used in logs and metrics")
	cmd.Flags().DurationVar(&recvTimeout, "recv-timeout", constants.DefaultRecvTimeout*time.Millisecond, "Single receive timeout")
	cmd.Flags().DurationVar(&statsInterval, "stats-interval", constants.DefaultStatsInterval*time.Millisecond, "Counter snapshot interval")
	cmd.Flags().IntVar(&retryAttempts, "send-retry", 0, "Send retry attempts on transient failure (0 disables retry)")
	cmd.Flags().DurationVar(&retryDelay, "send-retry-delay", 2*time.Millisecond, "Initial delay between send retries")
	_ = cmd.MarkFlagRequired("in")
	_ = cmd.MarkFlagRequired("out")

	return cmd
}

// newAnalyzeCommand 构建 analyze 子命令：按固定窗口统计总线流量
func newAnalyzeCommand(g *globalFlags) *cobra.Command {
	var (
		inputSpec      string
		busName        string
		bitrate        int
		recvTimeout    time.Duration
		windowInterval time.Duration
		csvPath        string
		capturePath    string
	)

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Compute per-identifier rate, jitter and bus load statistics over fixed windows",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, asyncWriter := initLogger(g.releaseMode, g.jsonOutput)

			fmt.Println(ASCII_LOGO)

			collector, err := initCollector(g.adminPort > 0)
			if err != nil {
				logger.Error(err, "Failed to create metrics collector")
				return err
			}

			input, err := canbus.Open(inputSpec)
			if err != nil {
				logger.Error(err, "Failed to open input bus", "spec", inputSpec)
				return err
			}

			var (
				exporters []analyzer.Exporter
				cleanups  []func()
			)
			if csvPath != "" {
				csvExporter, err := export.NewCSVExporter(csvPath)
				if err != nil {
					_ = input.Close()
					logger.Error(err, "Failed to create CSV exporter", "path", csvPath)
					return err
				}
				exporters = append(exporters, csvExporter)
				cleanups = append(cleanups, func() { _ = csvExporter.Close() })
				logger.Info("CSV export enabled", "path", csvPath)
			}

			var capture canbus.Sink
			if capturePath != "" {
				capture, err = canbus.OpenSink("capture:" + capturePath)
				if err != nil {
					_ = input.Close()
					logger.Error(err, "Failed to create capture sink", "path", capturePath)
					return err
				}
				logger.Info("Frame capture enabled", "path", capturePath)
			}

			busAnalyzer, err := analyzer.New(input, analyzer.Options{
				BusName:        busName,
				Bitrate:        bitrate,
				RecvTimeout:    recvTimeout,
				WindowInterval: windowInterval,
				Logger:         logger,
				Collector:      collector,
				Exporters:      exporters,
				Capture:        capture,
			})
			if err != nil {
				logger.Error(err, "Failed to create analyzer")
				return err
			}

			adminServer := initAdminServer(g, logger, func() map[string]interface{} {
				return map[string]interface{}{
					"export_errors": busAnalyzer.ExportErrors(),
				}
			})
			cleanups = append(cleanups, func() {
				if adminServer != nil {
					adminServer.Stop()
				}
			})

			logger.Info("Analyzer started successfully", "input", inputSpec, "bus", busName, "bitrate", bitrate)

			return runWithShutdown(logger, asyncWriter, busAnalyzer.Run, cleanups...)
		},
	}

	cmd.Flags().StringVarP(&inputSpec, "in", "i", "", "Input bus endpoint (mem:NAME, file:PATH or capture:PATH)")
	cmd.Flags().StringVarP(&busName, "bus", "b", "can0", "Bus name used in logs, metrics and export rows")
	cmd.Flags().IntVar(&bitrate, "bitrate", constants.DefaultBitrate, "Bus bitrate in bits per second for load estimation")
	cmd.Flags().DurationVar(&recvTimeout, "recv-timeout", constants.DefaultRecvTimeout*time.Millisecond, "Single receive timeout")
	cmd.Flags().DurationVar(&windowInterval, "interval", constants.DefaultWindowInterval*time.Millisecond, "Statistics window duration")
	cmd.Flags().StringVar(&csvPath, "csv", "", "Write per-window statistics to this CSV file")
	cmd.Flags().StringVar(&capturePath, "capture", "", "Write every observed frame to this capture file")
	_ = cmd.MarkFlagRequired("in")

	return cmd
}

func main() {
	g := &globalFlags{}

	rootCmd := &cobra.Command{
		Use:     "canbridge",
		Version: Version,
		Short:   "CANBridge is a rule-driven CAN bus forwarding and analysis tool",
		Long: `CANBridge forwards CAN frames between bus interfaces while applying
per-identifier policies, and computes windowed traffic statistics.

Core Features:
- Rule-driven frame forwarding (drop, remap, rate limit)
- Per-identifier token bucket rate limiting
- Fixed-window traffic statistics (rate, jitter, bus load)
- CSV statistics export and binary frame capture
- Real-time metrics monitoring
- Graceful shutdown support
- JSON/Plain log output support

Author: shengyanli1982
Repository: https://github.com/shengyanli1982/canbridge-go`,
	}

	rootCmd.PersistentFlags().BoolVarP(&g.releaseMode, "release", "r", false, "Enable release mode for performance optimizations and async logging")
	rootCmd.PersistentFlags().BoolVarP(&g.jsonOutput, "json", "j", false, "Enable JSON format logging output (only effective in release mode)")
	rootCmd.PersistentFlags().StringVar(&g.adminAddr, "admin-addr", "127.0.0.1", "Admin server listen address")
	rootCmd.PersistentFlags().IntVar(&g.adminPort, "admin-port", 0, "Admin server listen port (0 disables the admin server)")

	rootCmd.AddCommand(newBridgeCommand(g), newAnalyzeCommand(g))

	if err := rootCmd.Execute(); err != nil {
		fmt.Printf("Failed to execute command: %v\n", err)
		os.Exit(constants.ExitFailure)
	}
}
