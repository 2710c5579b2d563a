package cmd

import (
	"bufio"
	"io"
	"strings"
)

// readLines delivers trimmed lines from r and closes the channel at EOF.
// The reading goroutine lives until r is exhausted; for stdin that is the
// life of the process.
func readLines(r io.Reader) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			lines <- strings.TrimSpace(scanner.Text())
		}
	}()
	return lines
}
