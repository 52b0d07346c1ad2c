package proc

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"time"
)

// Command 外部命令描述
// 只使用参数向量，不走 shell，避免引号/注入问题
type Command struct {
	Path string
	Args []string
	Env  []string // 追加到当前进程环境之后
	Dir  string
}

// Result 命令执行结果
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
	TimedOut bool // 是否因超时被强制终止
	Duration time.Duration
}

// Runner 子进程执行器接口（便于测试时注入假实现）
type Runner interface {
	Run(ctx context.Context, cmd Command, timeout time.Duration) (*Result, error)
}

// ExecRunner 基于 os/exec 的真实执行器
type ExecRunner struct{}

func NewExecRunner() *ExecRunner {
	return &ExecRunner{}
}

// Run 执行命令并等待结束
// 超时后进程被强制终止，返回 TimedOut=true 的结果（不作为 error 返回）
// error 只表示进程无法启动之类的环境问题
func (r *ExecRunner) Run(ctx context.Context, cmd Command, timeout time.Duration) (*Result, error) {
	runCtx := ctx
	var cancel context.CancelFunc
	if timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	c := exec.CommandContext(runCtx, cmd.Path, cmd.Args...)
	if len(cmd.Env) > 0 {
		c.Env = append(os.Environ(), cmd.Env...)
	}
	if cmd.Dir != "" {
		c.Dir = cmd.Dir
	}

	var stdout, stderr bytes.Buffer
	c.Stdout = &stdout
	c.Stderr = &stderr

	start := time.Now()
	err := c.Run()
	elapsed := time.Since(start)

	result := &Result{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		TimedOut: runCtx.Err() == context.DeadlineExceeded,
		Duration: elapsed,
	}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			// 进程启动成功但以非零码退出（或被信号杀死，ExitCode 为 -1）
			result.ExitCode = exitErr.ExitCode()
			return result, nil
		}
		if result.TimedOut {
			// 被超时杀死
			result.ExitCode = -1
			return result, nil
		}
		// 进程根本没起来（可执行文件不存在等）
		return nil, err
	}

	result.ExitCode = 0
	return result, nil
}

// Success 命令是否正常结束
func (res *Result) Success() bool {
	return !res.TimedOut && res.ExitCode == 0
}
