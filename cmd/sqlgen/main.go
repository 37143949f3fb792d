// sqlgen 将 CSV（或 xlsx）表格转换为每 500 行一个的 SQL INSERT 文件。
package main

import (
	"fmt"
	"io"
	"os"

	"partsbatch/internal/cli"
	cfgpkg "partsbatch/internal/config"
	"partsbatch/internal/pipeline"
	"partsbatch/pkg/contract"
)

// 便于测试替换。
var pipelineRun cli.RunFunc = pipeline.Run

const usage = "Usage: sqlgen <csv_file_path>"

func main() {
	_ = cli.LoadDotEnv(cli.DotEnvFile)
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	env := cli.OSEnv(pipelineRun)
	env.Stdout, env.Stderr = stdout, stderr
	return cli.Main(tool, args, env)
}

var tool = cli.Tool{
	Name:    "sqlgen",
	Section: cli.SQLSection,
	Args:    parseArgs,
	Assemble: func(cfg cfgpkg.Config, inputs []string, _ int64) (pipeline.Components, pipeline.Settings, error) {
		return cfgpkg.AssembleSQL(cfg, inputs)
	},
	Reporter: func(w io.Writer) pipeline.Reporter { return reporter{w: w} },
}

// parseArgs: 恰好一个位置参数。
func parseArgs(pos []string, stdout io.Writer) ([]string, int64, bool) {
	if len(pos) != 1 {
		fmt.Fprintln(stdout, usage)
		return nil, 0, false
	}
	if _, err := os.Stat(pos[0]); err != nil {
		fmt.Fprintf(stdout, "File '%s' not found\n", pos[0])
		return nil, 0, false
	}
	return []string{pos[0]}, 0, true
}

type reporter struct{ w io.Writer }

func (r reporter) Written(p pipeline.Progress) {
	fmt.Fprintf(r.w, "Saved %s rows %d-%d\n", p.Path, p.From, p.To)
}

func (r reporter) Empty(t contract.Table) {
	fmt.Fprintf(r.w, "No rows in %s\n", t.Source)
}
