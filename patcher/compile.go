package patcher

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"path/filepath"
	"runtime"
)

// Compiler compiles one script source into the output directory.
type Compiler interface {
	Compile(ctx context.Context, script, gameDir, outDir string) error
}

// CompilerFunc adapts a function to Compiler.
type CompilerFunc func(ctx context.Context, script, gameDir, outDir string) error

// Compile implements Compiler.
func (f CompilerFunc) Compile(ctx context.Context, script, gameDir, outDir string) error {
	return f(ctx, script, gameDir, outDir)
}

// ExecCompiler runs an external script compiler in outDir.
//
// With an empty Path it runs "nwnnsscomp <gameDir> <script>", or on
// Windows "<gameDir>/utils/clcompile.exe <script> <outDir>".
type ExecCompiler struct {
	Path   string
	Stdout io.Writer
	Stderr io.Writer
}

var _ Compiler = ExecCompiler{}

// Compile implements Compiler.
func (c ExecCompiler) Compile(ctx context.Context, script, gameDir, outDir string) error {
	name, args := c.command(script, gameDir, outDir)
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = outDir
	cmd.Stdout = c.Stdout
	cmd.Stderr = c.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("compile %s: %w", filepath.Base(script), err)
	}
	return nil
}

func (c ExecCompiler) command(script, gameDir, outDir string) (string, []string) {
	absScript, err := filepath.Abs(script)
	if err == nil {
		script = absScript
	}
	switch {
	case c.Path != "":
		return c.Path, []string{gameDir, script}
	case runtime.GOOS == "windows":
		return filepath.Join(gameDir, "utils", "clcompile.exe"), []string{script, outDir}
	default:
		return "nwnnsscomp", []string{gameDir, script}
	}
}
