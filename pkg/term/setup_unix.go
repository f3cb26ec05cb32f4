//go:build unix

package term

import "golang.org/x/sys/unix"

// SetRaw puts the terminal attached to fd into raw mode: no echo, no
// canonical line assembly, no signal keys, no output post-processing. It
// returns a function restoring the saved state.
func SetRaw(fd int) (restore func() error, err error) {
	saved, err := unix.IoctlGetTermios(fd, getAttrIOCTL)
	if err != nil {
		return nil, err
	}
	raw := *saved
	raw.Lflag &^= unix.ECHO | unix.ICANON | unix.ISIG | unix.IEXTEN
	raw.Iflag &^= unix.IXON | unix.ICRNL | unix.BRKINT | unix.INPCK | unix.ISTRIP
	raw.Oflag &^= unix.OPOST
	raw.Cc[unix.VMIN] = 1
	raw.Cc[unix.VTIME] = 0
	if err := unix.IoctlSetTermios(fd, setAttrNowIOCTL, &raw); err != nil {
		return nil, err
	}
	return func() error {
		return unix.IoctlSetTermios(fd, setAttrNowIOCTL, saved)
	}, nil
}
