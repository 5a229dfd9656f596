// Tool gokr-rsync is an rsync client, server and daemon implementation.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/go-rsync/rsync/internal/maincmd"
	"github.com/go-rsync/rsync/internal/rsyncerr"
	"github.com/go-rsync/rsync/internal/rsyncos"
)

func main() {
	osenv := &rsyncos.Env{
		Stdin:  os.Stdin,
		Stdout: os.Stdout,
		Stderr: os.Stderr,
	}
	_, err := maincmd.Main(context.Background(), osenv, os.Args, nil)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(int(rsyncerr.CodeOf(err)))
	}
}
