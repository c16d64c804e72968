package recognition

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"time"
)

type jsonlLine struct {
	Results []Result `json:"results,omitempty"`
	Error   string   `json:"error,omitempty"`
	End     bool     `json:"end,omitempty"`
}

// ReadScripts parses recorded recognition events, one JSON object per line.
// A line {"end":true} ends the current stream; the next line starts a new one.
// The final stream is held open so a replay keeps listening until stopped.
func ReadScripts(r io.Reader, delay time.Duration) ([]Script, error) {
	var scripts []Script
	current := Script{Delay: delay}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 || line[0] == '#' {
			continue
		}
		var entry jsonlLine
		if err := json.Unmarshal(line, &entry); err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		switch {
		case entry.End:
			scripts = append(scripts, current)
			current = Script{Delay: delay}
		case entry.Error != "":
			current.Events = append(current.Events, Event{ErrorCode: entry.Error})
		case len(entry.Results) > 0:
			current.Events = append(current.Events, Event{Results: entry.Results})
		default:
			return nil, fmt.Errorf("line %d: expected results, error or end", lineNo)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	current.Hold = true
	scripts = append(scripts, current)
	return scripts, nil
}
