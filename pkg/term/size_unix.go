//go:build unix

package term

import "golang.org/x/sys/unix"

// Size returns the dimensions of the terminal attached to fd.
func Size(fd int) (rows, columns int, err error) {
	ws, err := unix.IoctlGetWinsize(fd, unix.TIOCGWINSZ)
	if err != nil {
		return 0, 0, err
	}
	return int(ws.Row), int(ws.Col), nil
}
