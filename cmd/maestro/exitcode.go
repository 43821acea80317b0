package main

import "github.com/antigravity-dev/maestro/internal/tools"

// exitCodeForErr maps an error to the CLI exit code in spec §6: 0
// success, 2 bad-arg, 3 not-found, 4 conflict, 5 corrupt-store, 1 any
// other error.
func exitCodeForErr(err error) int {
	if err == nil {
		return exitOK
	}
	switch tools.ClassifyErr(err) {
	case tools.KindInvalidArgument, tools.KindUnsupportedAction:
		return exitBadArg
	case tools.KindNotFound:
		return exitNotFound
	case tools.KindConflict:
		return exitConflict
	case tools.KindCorrupt:
		return exitCorruptStore
	default:
		return exitOtherError
	}
}
