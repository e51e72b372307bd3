//go:build unix

package process

import (
	"fmt"
	"net"
	"os"

	"github.com/creack/pty"
	"golang.org/x/sys/unix"
)

// PreStart prepares the process's standard descriptors before jail attach:
// when Terminal is set, it opens a pty pair, makes the subordinate side
// the controlling terminal, and sends the control descriptor over the
// console socket via SCM_RIGHTS. Without a terminal, it simply inherits
// the runtime's own stdio.
func (p *Process) PreStart() ([]*os.File, error) {
	if !p.spec.Terminal {
		return []*os.File{os.Stdin, os.Stdout, os.Stderr}, nil
	}

	control, subordinate, err := pty.Open()
	if err != nil {
		return nil, fmt.Errorf("process: open pty: %w", err)
	}

	if _, err := unix.Setsid(); err != nil {
		control.Close()
		subordinate.Close()
		return nil, fmt.Errorf("process: setsid: %w", err)
	}
	if err := unix.IoctlSetInt(int(subordinate.Fd()), unix.TIOCSCTTY, 0); err != nil {
		control.Close()
		subordinate.Close()
		return nil, fmt.Errorf("process: set controlling tty: %w", err)
	}

	if err := p.sendPtyControlFD(control); err != nil {
		control.Close()
		subordinate.Close()
		return nil, err
	}
	control.Close()

	return []*os.File{subordinate, subordinate, subordinate}, nil
}

// sendPtyControlFD hands the pty control descriptor to whatever is
// listening on the process's console socket, via a single SCM_RIGHTS
// ancillary message with a one-byte payload.
func (p *Process) sendPtyControlFD(control *os.File) error {
	conn, err := net.Dial("unix", p.consoleSocket)
	if err != nil {
		return fmt.Errorf("process: dial console socket: %w", err)
	}
	defer conn.Close()

	unixConn, ok := conn.(*net.UnixConn)
	if !ok {
		return fmt.Errorf("process: console socket is not a unix socket")
	}

	rights := unix.UnixRights(int(control.Fd()))
	if _, _, err := unixConn.WriteMsgUnix([]byte{0}, rights, nil); err != nil {
		return fmt.Errorf("process: send pty control fd: %w", err)
	}
	return nil
}
