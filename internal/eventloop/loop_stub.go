//go:build !linux

package eventloop

import (
	"time"

	"golang.org/x/sys/unix"
)

// pollPoller implements Poller with poll(2), the portable fallback used on
// non-Linux unix builds that lack epoll.
type pollPoller struct {
	fds map[int]*unix.PollFd
}

// NewPoller returns the poll(2)-backed Poller used on non-Linux builds.
func NewPoller() (Poller, error) {
	return &pollPoller{fds: make(map[int]*unix.PollFd)}, nil
}

func (p *pollPoller) Add(fd int) error {
	p.fds[fd] = &unix.PollFd{Fd: int32(fd), Events: unix.POLLIN}
	return nil
}

func (p *pollPoller) SetWriteInterest(fd int, want bool) error {
	entry, ok := p.fds[fd]
	if !ok {
		return nil
	}
	entry.Events = unix.POLLIN
	if want {
		entry.Events |= unix.POLLOUT
	}
	return nil
}

func (p *pollPoller) Remove(fd int) error {
	delete(p.fds, fd)
	return nil
}

func (p *pollPoller) Wait(timeout time.Duration) ([]Event, error) {
	pollset := make([]unix.PollFd, 0, len(p.fds))
	for _, entry := range p.fds {
		pollset = append(pollset, *entry)
	}
	n, err := unix.Poll(pollset, int(timeout/time.Millisecond))
	if err != nil {
		if err == unix.EINTR {
			return nil, nil
		}
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	events := make([]Event, 0, n)
	for _, pfd := range pollset {
		if pfd.Revents == 0 {
			continue
		}
		events = append(events, Event{
			FD:       int(pfd.Fd),
			Readable: pfd.Revents&unix.POLLIN != 0,
			Writable: pfd.Revents&unix.POLLOUT != 0,
			HangUp:   pfd.Revents&(unix.POLLHUP|unix.POLLERR) != 0,
		})
	}
	return events, nil
}

func (p *pollPoller) Close() error {
	return nil
}
