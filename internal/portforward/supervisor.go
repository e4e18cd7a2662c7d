package portforward

import (
	"context"
	"os/exec"

	"github.com/compote-dev/compote/internal/capability"
)

// OSSupervisor implements capability.ProcessSupervisor over os/exec. No corpus repo spawns
// detached host child processes (the teacher only ever spawns in-process goroutines or talks to
// the Docker daemon), so this is a deliberate stdlib exception: os/exec is the standard, idiomatic
// way to launch a detached process, and nothing in the pack offers a process-supervision library.
type OSSupervisor struct{}

func NewOSSupervisor() *OSSupervisor { return &OSSupervisor{} }

func (s *OSSupervisor) Spawn(ctx context.Context, argv []string) (int, error) {
	cmd := exec.Command(argv[0], argv[1:]...)
	if err := cmd.Start(); err != nil {
		return 0, err
	}
	go cmd.Wait()
	return cmd.Process.Pid, nil
}

func (s *OSSupervisor) Terminate(pid int) error {
	proc, err := findProcess(pid)
	if err != nil {
		return err
	}
	return proc.Signal(terminateSignal)
}

func (s *OSSupervisor) Which(tool string) bool {
	_, err := exec.LookPath(tool)
	return err == nil
}

var _ capability.ProcessSupervisor = (*OSSupervisor)(nil)
