package cli

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/pkg/errors"

	cfgpkg "partsbatch/internal/config"
	"partsbatch/internal/diag"
	"partsbatch/internal/pipeline"
)

// RunFunc 为流水线入口；测试可替换。
type RunFunc func(ctx context.Context, comp pipeline.Components, set pipeline.Settings, logger *diag.Logger, rep pipeline.Reporter) (pipeline.Summary, error)

// Tool 描述一个命令行工具的差异部分。
type Tool struct {
	Name    string
	Section Section
	// Args 校验位置参数；失败时自行向 stdout 打印提示并返回 false。
	Args func(pos []string, stdout io.Writer) (inputs []string, base int64, ok bool)
	// Assemble 由配置构造组件与运行设置。
	Assemble func(cfg cfgpkg.Config, inputs []string, base int64) (pipeline.Components, pipeline.Settings, error)
	// Reporter 返回打印进度行的回调。
	Reporter func(stdout io.Writer) pipeline.Reporter
}

// Env 为一次运行的外部环境。
type Env struct {
	Stdout  io.Writer
	Stderr  io.Writer
	Environ []string
	Run     RunFunc
}

// OSEnv 返回基于进程的运行环境。
func OSEnv(run RunFunc) Env {
	return Env{Stdout: os.Stdout, Stderr: os.Stderr, Environ: os.Environ(), Run: run}
}

// Main 解析参数、叠加配置并驱动流水线，返回进程退出码。
func Main(tool Tool, args []string, env Env) int {
	if env.Run == nil {
		env.Run = pipeline.Run
	}
	fs := flag.NewFlagSet(tool.Name, flag.ContinueOnError)
	fs.SetOutput(env.Stderr)
	f := Register(fs)
	if err := fs.Parse(NormalizeInitArg(args)); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return ExitOK
		}
		return ExitFail
	}

	if f.InitDir != "" {
		return InitConfig(f.InitDir, env.Stdout, env.Stderr)
	}

	inputs, base, ok := tool.Args(fs.Args(), env.Stdout)
	if !ok {
		return ExitFail
	}

	cfg, err := LoadConfig(f, env.Environ, tool.Section)
	if err != nil {
		fmt.Fprintf(env.Stderr, "配置加载失败: %v\n", err)
		return ExitConfig
	}
	if err := cfgpkg.Validate(cfg); err != nil {
		fmt.Fprintf(env.Stderr, "配置校验失败: %v\n", err)
		_ = DumpConfig(env.Stderr, cfg)
		return ExitConfig
	}

	corrID := CorrID()
	logger := NewLogger(cfg, corrID)
	defer logger.Close()
	logger.Debug("main", "config loaded", "", "", map[string]string{
		"tool":   tool.Name,
		"level":  cfg.Logging.Level,
		"inputs": fmt.Sprint(inputs),
	})

	comp, set, err := tool.Assemble(cfg, inputs, base)
	if err != nil {
		fmt.Fprintf(env.Stderr, "组件装配失败: %v\n", err)
		logger.Error("main", string(diag.Classify(err)), err.Error(), nil)
		return ExitConfig
	}

	term := diag.NewTerminal(env.Stderr, f.Status)
	diag.SetTerminal(term)
	defer diag.SetTerminal(nil)
	term.RunStart(tool.Name)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	start := time.Now()
	sum, err := env.Run(ctx, comp, set, logger, tool.Reporter(env.Stdout))
	logger.Debug("main", "metrics", "", "", diag.Snapshot())
	if err != nil {
		term.RunFinish(false, sum.Batches, sum.Records, time.Since(start))
		fmt.Fprintf(env.Stderr, "运行失败: %v\n", err)
		return ExitFail
	}
	term.RunFinish(true, sum.Batches, sum.Records, time.Since(start))
	return ExitOK
}
