package audio

import (
	"context"
	"fmt"
	"io"
	"os"

	"golang.org/x/term"
)

// SelectInteractive shows an arrow-key picker on the terminal and selects
// the chosen device. A single device is selected without prompting.
func (r *Registry) SelectInteractive(ctx context.Context) (*DeviceInfo, error) {
	devices, err := r.List()
	if err != nil {
		return nil, fmt.Errorf("enumerating devices: %w", err)
	}
	if len(devices) == 0 {
		return nil, ErrNoDevices
	}

	var idx int
	if len(devices) > 1 {
		fd := int(os.Stdin.Fd())
		oldState, err := term.MakeRaw(fd)
		if err != nil {
			return nil, fmt.Errorf("setting raw mode: %w", err)
		}
		idx, err = pickWithContext(ctx, devices, r.currentIndex(devices), os.Stdin, os.Stdout)
		term.Restore(fd, oldState)
		if err != nil {
			return nil, err
		}
	}

	if err := r.Select(devices[idx].ID); err != nil {
		return nil, err
	}
	return &devices[idx], nil
}

func (r *Registry) currentIndex(devices []DeviceInfo) int {
	if sel := r.Selected(); sel != nil {
		for i, d := range devices {
			if d.ID == sel.ID {
				return i
			}
		}
	}
	return 0
}

func pickWithContext(ctx context.Context, devices []DeviceInfo, cursor int, in io.Reader, out io.Writer) (int, error) {
	type result struct {
		idx int
		err error
	}
	ch := make(chan result, 1)
	go func() {
		idx, err := pick(devices, cursor, in, out)
		ch <- result{idx, err}
	}()
	select {
	case <-ctx.Done():
		fmt.Fprint(out, "\r\n")
		return 0, ctx.Err()
	case res := <-ch:
		return res.idx, res.err
	}
}

// pick runs the key loop over in (raw mode bytes) and returns the index
// confirmed with Enter.
func pick(devices []DeviceInfo, cursor int, in io.Reader, out io.Writer) (int, error) {
	renderList := func() {
		fmt.Fprint(out, "\r\x1b[J")
		fmt.Fprint(out, "Select input device (↑/↓, Enter to confirm):\r\n\r\n")
		for i, d := range devices {
			btTag := ""
			if IsBluetooth(d.Name) {
				btTag = " \x1b[33m[⚠ Lower audio quality]\x1b[0m"
			}
			if i == cursor {
				fmt.Fprintf(out, "  \x1b[1;36m▶ %s%s\x1b[0m\r\n", d.Name, btTag)
			} else {
				fmt.Fprintf(out, "    %s%s\r\n", d.Name, btTag)
			}
		}
	}

	renderList()

	buf := make([]byte, 3)
	for {
		n, err := in.Read(buf)
		if err != nil {
			return 0, fmt.Errorf("reading input: %w", err)
		}

		if n == 1 {
			switch buf[0] {
			case 13: // Enter
				fmt.Fprint(out, "\r\n")
				return cursor, nil
			case 3, 'q': // Ctrl+C
				fmt.Fprint(out, "\r\n")
				return 0, ErrCancelled
			case 'j':
				if cursor < len(devices)-1 {
					cursor++
				}
			case 'k':
				if cursor > 0 {
					cursor--
				}
			}
		} else if n == 3 && buf[0] == 0x1b && buf[1] == '[' {
			switch buf[2] {
			case 'A': // Up arrow
				if cursor > 0 {
					cursor--
				}
			case 'B': // Down arrow
				if cursor < len(devices)-1 {
					cursor++
				}
			}
		}

		lines := len(devices) + 2
		fmt.Fprintf(out, "\x1b[%dA", lines)
		renderList()
	}
}
