// Package logging builds the structured logger every cow runtime object
// writes to.
//
// There is no process-wide logger. A Context is constructed once at
// process start from Options (level filter, destination, format), handed
// to the objects that need it, and closed at process end:
//
//	logs, err := logging.New(logging.Options{Level: "debug", Output: "stderr"})
//	if err != nil {
//	    return err
//	}
//	defer logs.Close()
//
//	thread := msgthread.New("pipeline", logs.For("msgthread", "pipeline"))
//
// Destinations are "stderr" (default), "stdout", "syslog" (the platform log,
// unix only) or a file path opened for append. Entries carry the
// "package" and "function" fields used throughout the codebase.
package logging
