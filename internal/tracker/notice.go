package tracker

import (
	"fmt"
	"time"
)

type NoticeKind int

const (
	NoticeSuccess NoticeKind = iota
	NoticeFailure
)

func (k NoticeKind) String() string {
	if k == NoticeFailure {
		return "failure"
	}
	return "success"
}

// Notice is an out-of-band outcome of a command, meant to be shown once.
type Notice struct {
	Kind    NoticeKind
	Command string
	Message string
	Err     error
	At      time.Time
}

func (n Notice) String() string {
	return n.Message
}

func success(command, format string, args ...any) Notice {
	return Notice{Kind: NoticeSuccess, Command: command, Message: fmt.Sprintf(format, args...), At: time.Now()}
}

func failure(command string, err error) Notice {
	return Notice{
		Kind:    NoticeFailure,
		Command: command,
		Message: fmt.Sprintf("%s failed: %v", command, err),
		Err:     err,
		At:      time.Now(),
	}
}
