package classify

import (
	"strings"
)

// Signal is a set of coarse intent tags found in a message.
type Signal uint8

const (
	SessionInvalid Signal = 1 << iota
	OutOfWindow
	ResourceUnavailable
	AlreadySucceeded
)

// None is the empty signal set.
const None Signal = 0

// Priority lists the signals from most to least dominant. Diagnostic text regularly matches more
// than one keyword set, the first match in this order wins.
var Priority = []Signal{
	SessionInvalid,
	OutOfWindow,
	ResourceUnavailable,
	AlreadySucceeded,
}

// keywords are matched case-insensitively as substrings, they must be stored lowercase.
var keywords = map[Signal][]string{
	SessionInvalid: {
		"connection to remote host was lost",
		"connection lost",
		"invalid session",
		"请先登录",
		"登陆",
		"please log in",
		"验证失败",
		"verification failed",
		"access denied",
	},
	OutOfWindow: {
		"不在预约时间内",
		"not within reservation time",
	},
	ResourceUnavailable: {
		"该座位已经被人预定了",
		"您选择的座位已被预约",
		"已被占座",
		"seat already reserved",
		"already booked",
		"already occupied",
	},
	AlreadySucceeded: {
		"您已经预约了座位",
		"您已经预定了座位",
		"操作成功",
		"当前已有有效预约",
		"you have already reserved",
		"operation succeeded",
		"already has a valid reservation",
	},
}

// Match returns every signal whose keyword set matches `text`.
func Match(text string) Signal {
	if text == "" {
		return None
	}
	lower := strings.ToLower(text)
	var out Signal
	for _, sig := range Priority {
		for _, kw := range keywords[sig] {
			if strings.Contains(lower, kw) {
				out |= sig
				break
			}
		}
	}
	return out
}

// Scan is Match over several texts.
func Scan(texts ...string) Signal {
	var out Signal
	for _, t := range texts {
		out |= Match(t)
	}
	return out
}

// Has reports whether every signal in `other` is present.
func (s Signal) Has(other Signal) bool {
	return other != None && s&other == other
}

// Decide returns the single dominant signal of the set according to Priority, or None.
func (s Signal) Decide() Signal {
	for _, sig := range Priority {
		if s&sig != 0 {
			return sig
		}
	}
	return None
}

func (s Signal) String() string {
	if s == None {
		return "none"
	}
	var names []string
	for _, sig := range Priority {
		if s&sig == 0 {
			continue
		}
		switch sig {
		case SessionInvalid:
			names = append(names, "session-invalid")
		case OutOfWindow:
			names = append(names, "out-of-window")
		case ResourceUnavailable:
			names = append(names, "resource-unavailable")
		case AlreadySucceeded:
			names = append(names, "already-succeeded")
		}
	}
	return strings.Join(names, ",")
}
