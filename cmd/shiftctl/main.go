// shiftctl 命令行排班工具
// 读取 YAML/TOML 请求文件，在进程内排班并输出表格或导出文件

package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/kinmu/kinmu/internal/config"
	"github.com/kinmu/kinmu/pkg/errors"
	"github.com/kinmu/kinmu/pkg/export"
	"github.com/kinmu/kinmu/pkg/logger"
	"github.com/kinmu/kinmu/pkg/scheduler"
	"github.com/kinmu/kinmu/pkg/scheduler/format"
)

const usage = `用法: shiftctl [选项] <request.yaml|request.toml>

选项:
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

// run 解析参数并执行排班，返回进程退出码
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("shiftctl", flag.ContinueOnError)
	fs.SetOutput(stderr)
	envFile := fs.String("env", ".env", "env 配置文件")
	formatFlag := fs.String("format", "text", "输出格式 text|csv|pdf|xlsx")
	outPath := fs.String("out", "", "导出文件路径，为空时写到标准输出")
	fs.Usage = func() {
		fmt.Fprint(stderr, usage)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return 2
	}

	cfg, err := config.LoadFile(*envFile)
	if err != nil {
		fmt.Fprintf(stderr, "加载配置失败: %v\n", err)
		return 1
	}
	logCfg := cfg.Logger()
	logCfg.Output = "stderr"
	logger.Init(logCfg)

	f, err := export.ParseFormat(*formatFlag)
	if err != nil {
		return fail(stderr, err)
	}
	// 二进制格式必须写文件
	if *outPath == "" && (f == export.FormatPDF || f == export.FormatXLSX) {
		return fail(stderr, errors.InvalidInput("out", "pdf/xlsx 需要指定 -out"))
	}

	req, err := loadRequest(fs.Arg(0))
	if err != nil {
		return fail(stderr, err)
	}

	engine, err := scheduler.New(cfg.Engine())
	if err != nil {
		return fail(stderr, err)
	}
	schedule, err := engine.Schedule(ctx, req)
	if err != nil {
		return fail(stderr, err)
	}

	data, err := export.Export(schedule, f)
	if err != nil {
		return fail(stderr, err)
	}

	if *outPath == "" {
		fmt.Fprintln(stdout, string(data))
		fmt.Fprintln(stdout, format.Summary(schedule))
		return 0
	}
	if err := os.WriteFile(*outPath, data, 0o644); err != nil {
		fmt.Fprintf(stderr, "写入 %s 失败: %v\n", *outPath, err)
		return 1
	}
	logger.Info().Str("file", *outPath).Str("format", string(f)).Msg(format.Summary(schedule))
	return 0
}

// fail 打印错误并按错误码返回退出码
func fail(stderr io.Writer, err error) int {
	appErr := errors.From(err)
	fmt.Fprintf(stderr, "错误: %v\n", appErr)
	if appErr.Details != "" {
		fmt.Fprintf(stderr, "  %s\n", appErr.Details)
	}
	for k, v := range appErr.Fields {
		fmt.Fprintf(stderr, "  %s: %v\n", k, v)
	}
	switch appErr.Code {
	case errors.CodeInvalidInput, errors.CodeValidationFail:
		return 2
	case errors.CodeNoFeasibleSolution:
		return 3
	default:
		return 1
	}
}
