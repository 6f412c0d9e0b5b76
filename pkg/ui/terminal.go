package ui

import (
	"fmt"
	"io"
	"os"
	"sync"
)

// ASCIILogo is printed at the start of a crawl
const ASCIILogo = `
 _    _      _ _                          _
| |  | |    (_) |                        | |
| |  | | ___ _| |__   ___   ___ _ __ __ _| |_      __
| |/\| |/ _ \ | '_ \ / _ \ / __| '__/ _' \ \ /\ / /
\  /\  /  __/ | |_) | (_) | (__| | | (_| |\ V  V /
 \/  \/ \___|_|_.__/ \___/ \___|_|  \__,_| \_/\_/
        incremental profile and post crawler
`

var (
	mu    sync.Mutex
	out   io.Writer = os.Stdout
	quiet bool
)

// SetOutput redirects everything this package prints
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	out = w
}

// SetQuietMode suppresses everything except errors
func SetQuietMode(q bool) {
	mu.Lock()
	defer mu.Unlock()
	quiet = q
}

// IsQuietMode reports whether quiet mode is on
func IsQuietMode() bool {
	mu.Lock()
	defer mu.Unlock()
	return quiet
}

func writer() io.Writer {
	mu.Lock()
	defer mu.Unlock()
	return out
}

func emit(always bool, s string) {
	if !always && IsQuietMode() {
		return
	}
	fmt.Fprintln(writer(), s)
}

// PrintLogo prints the ASCII logo with color
func PrintLogo() {
	if IsQuietMode() {
		return
	}
	fmt.Fprint(writer(), logoStyle.Render(ASCIILogo)+"\n")
}

// PrintError prints an error message in red, even in quiet mode
func PrintError(msg string, args ...interface{}) {
	if len(args) > 0 {
		emit(true, Red(msg+": "+fmt.Sprintf("%v", args[0])))
	} else {
		emit(true, Red(msg))
	}
}

// PrintSuccess prints a success message in green
func PrintSuccess(msg string) {
	emit(false, Green(msg))
}

// PrintInfo prints a label and value
func PrintInfo(label string, value string) {
	emit(false, fmt.Sprintf("%s: %s", Cyan(label), Yellow(value)))
}

// PrintWarning prints a warning message in yellow
func PrintWarning(msg string, args ...interface{}) {
	if len(args) > 0 {
		emit(false, Yellow(msg+": "+fmt.Sprintf("%v", args[0])))
	} else {
		emit(false, Yellow(msg))
	}
}

// PrintHighlight prints a highlighted message in magenta
func PrintHighlight(msg string) {
	emit(false, Magenta(msg))
}
