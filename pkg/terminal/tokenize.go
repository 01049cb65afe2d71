package terminal

import (
	"fmt"
	"strings"
)

const (
	whitespace = "\t\r\n "
	maxArgs    = 16
)

// ErrTooManyArgs is returned by tokenize when a line holds more than
// maxArgs-1 arguments.
var ErrTooManyArgs = fmt.Errorf("Too many arguments (max %d)", maxArgs)

// tokenize splits line into its whitespace separated arguments. The
// returned tokens are substrings of line. When the line holds too many
// arguments the tokens parsed so far are returned together with
// ErrTooManyArgs.
func tokenize(line string) ([]string, error) {
	var args []string
	for {
		line = strings.TrimLeft(line, whitespace)
		if line == "" {
			return args, nil
		}
		if len(args) == maxArgs-1 {
			return args, ErrTooManyArgs
		}
		end := strings.IndexAny(line, whitespace)
		if end < 0 {
			end = len(line)
		}
		args = append(args, line[:end])
		line = line[end:]
	}
}
