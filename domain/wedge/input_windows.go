package wedge

import (
	"errors"
	"strings"
	"unsafe"

	"golang.org/x/sys/windows"
)

const (
	inputKeyboard     = 1
	keyeventfKeyUp    = 0x0002
	keyeventfUnicode  = 0x0004
	maxWindowTitleLen = 256
)

var (
	user32                  = windows.NewLazySystemDLL("user32.dll")
	procSendInput           = user32.NewProc("SendInput")
	procGetForegroundWindow = user32.NewProc("GetForegroundWindow")
	procGetWindowTextW      = user32.NewProc("GetWindowTextW")
)

type keybdInput struct {
	vk        uint16
	scan      uint16
	flags     uint32
	time      uint32
	extraInfo uintptr
}

// input mirrors the Win32 INPUT union sized for its largest member.
type input struct {
	typ uint32
	ki  keybdInput
	_   [8]byte
}

func sendInput(evs []keyEvent) error {
	if len(evs) == 0 {
		return nil
	}
	in := make([]input, len(evs))
	for i, ev := range evs {
		ki := keybdInput{vk: ev.vk}
		if ev.vk == 0 {
			ki.scan = ev.unit
			ki.flags = keyeventfUnicode
		}
		if ev.up {
			ki.flags |= keyeventfKeyUp
		}
		in[i] = input{typ: inputKeyboard, ki: ki}
	}
	n, _, callErr := procSendInput.Call(uintptr(len(in)), uintptr(unsafe.Pointer(&in[0])), unsafe.Sizeof(in[0]))
	if int(n) != len(in) {
		if callErr != nil && callErr != windows.ERROR_SUCCESS {
			return callErr
		}
		return errors.New("SendInput blocked")
	}
	return nil
}

// ForegroundWindowTitle returns the title of the current foreground window.
func ForegroundWindowTitle() (string, error) {
	hwnd, _, _ := procGetForegroundWindow.Call()
	if hwnd == 0 {
		return "", errors.New("no foreground window")
	}
	buf := make([]uint16, maxWindowTitleLen)
	r, _, _ := procGetWindowTextW.Call(hwnd, uintptr(unsafe.Pointer(&buf[0])), uintptr(len(buf)))
	if r == 0 {
		return "", nil
	}
	return strings.TrimSpace(windows.UTF16ToString(buf[:r])), nil
}
