package monitor

import (
	"bufio"
	"os"
	"strings"
)

// Keywords that flag a captured log line as an error worth surfacing.
var errorKeywords = []string{"error", "exception", "traceback", "failed", "failure"}

// How deep into the log tail the scanner looks on each pass.
const logTailLines = 50

// scanLogTail returns the error-flagged lines, oldest first, from the last
// logTailLines lines of the captured crawl log. A missing log file is not
// an error; it yields no lines.
func scanLogTail(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	tail := make([]string, 0, logTailLines)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		tail = append(tail, scanner.Text())
		if len(tail) > logTailLines {
			tail = tail[1:]
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	var flagged []string
	for _, line := range tail {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if containsErrorKeyword(trimmed) {
			flagged = append(flagged, trimmed)
		}
	}
	return flagged, nil
}

func containsErrorKeyword(line string) bool {
	lower := strings.ToLower(line)
	for _, kw := range errorKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
