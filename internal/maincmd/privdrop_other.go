//go:build !linux || nonamespacing

package maincmd

import "github.com/go-rsync/rsync/internal/rsyncos"

func dropPrivileges(osenv *rsyncos.Env) error {
	return nil
}
