// ABOUTME: Register binds the workspace tools to the exec resource registry
// ABOUTME: Resources without a local tool stay unregistered and are answered as unhandled

package tools

import (
	"github.com/2389/coven-link/internal/exec"
)

// Register adds the workspace executors to reg.
func Register(reg *exec.Registry, w *Workspace) {
	exec.Register(reg, exec.Read, exec.ExecutorFunc[ReadArgs, ReadResult](w.Read))
	exec.Register(reg, exec.Write, exec.ExecutorFunc[WriteArgs, WriteResult](w.Write))
	exec.Register(reg, exec.Delete, exec.ExecutorFunc[DeleteArgs, DeleteResult](w.Delete))
	exec.Register(reg, exec.Ls, exec.ExecutorFunc[LsArgs, LsResult](w.Ls))
	exec.Register(reg, exec.Grep, exec.ExecutorFunc[GrepArgs, GrepResult](w.Grep))
	exec.Register(reg, exec.Shell, exec.ExecutorFunc[ShellArgs, ShellResult](w.Shell))
	exec.RegisterStream(reg, exec.ShellStream, exec.StreamExecutorFunc[ShellArgs, ShellEvent](w.ShellStream))
}

// NewRegistry returns a registry with the workspace executors registered.
func NewRegistry(w *Workspace) *exec.Registry {
	reg := exec.NewRegistry()
	Register(reg, w)
	return reg
}
