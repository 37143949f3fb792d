// xlsxsplit 将按行合并的文本文件切分为每 500 行一个的 xlsx 文件。
package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"partsbatch/internal/cli"
	cfgpkg "partsbatch/internal/config"
	"partsbatch/internal/pipeline"
	"partsbatch/pkg/contract"
)

// 便于测试替换。
var pipelineRun cli.RunFunc = pipeline.Run

const usage = "Usage: xlsxsplit <merged_text_file> [base_number]"

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
	Name:     "xlsxsplit",
	Section:  cli.XLSXSection,
	Args:     parseArgs,
	Assemble: cfgpkg.AssembleXLSX,
	Reporter: func(w io.Writer) pipeline.Reporter { return reporter{w: w} },
}

// parseArgs: <merged_text_file> [base_number]，base 缺省为 1。
func parseArgs(pos []string, stdout io.Writer) ([]string, int64, bool) {
	if len(pos) < 1 || len(pos) > 2 {
		fmt.Fprintln(stdout, usage)
		return nil, 0, false
	}
	base := int64(1)
	if len(pos) == 2 {
		n, err := strconv.ParseInt(strings.TrimSpace(pos[1]), 10, 64)
		if err != nil {
			fmt.Fprintf(stdout, "Invalid base_number '%s': must be an integer\n", pos[1])
			return nil, 0, false
		}
		base = n
	}
	if _, err := os.Stat(pos[0]); err != nil {
		if os.IsNotExist(err) {
			fmt.Fprintf(stdout, "File '%s' not found\n", pos[0])
		} else {
			fmt.Fprintf(stdout, "Cannot read '%s': %v\n", pos[0], err)
		}
		return nil, 0, false
	}
	return []string{pos[0]}, base, true
}

type reporter struct{ w io.Writer }

func (r reporter) Written(p pipeline.Progress) {
	fmt.Fprintf(r.w, "Created %s (part %d)\n", p.Path, p.Part)
}

// Empty: 无有效行时不输出进度行。
func (r reporter) Empty(contract.Table) {}
