package main

import (
	"fmt"
	"io"

	"geotask/pkg/gpjob"
)

// consoleObserver prints job transitions as they happen so an interactive
// run shows progress without the caller polling Snapshot.
type consoleObserver struct {
	out io.Writer
}

func (o *consoleObserver) OnStatusChanged(snap gpjob.Snapshot) {
	if msg := lastMessage(snap); msg != "" {
		fmt.Fprintf(o.out, "[%s] %s\n", snap.Status, msg)
		return
	}
	fmt.Fprintf(o.out, "[%s]\n", snap.Status)
}

func lastMessage(snap gpjob.Snapshot) string {
	if n := len(snap.Messages); n > 0 {
		return snap.Messages[n-1]
	}
	return ""
}

var _ gpjob.Observer = (*consoleObserver)(nil)
