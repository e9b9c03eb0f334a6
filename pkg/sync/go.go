package sync

import "github.com/Kunze-Ritter/Manual2Vector-sub004/pkg/safe"

// Go same to safe.GO.
func Go(fn func(), errfns ...func(error)) {
	safe.Go(fn, errfns...)
}
