// Package fragment parses newline-delimited model output, where each line is either a JSON record or plain text.
package fragment

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"strings"
)

// maxLineSize bounds a single output line
const maxLineSize = 1024 * 1024

// Kind tags what a line of output turned out to be
type Kind int

const (
	KindText  Kind = iota // Incremental output from a JSON record
	KindError             // An error record; the call failed
	KindRaw               // A line that was not a JSON object, kept verbatim
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindError:
		return "error"
	case KindRaw:
		return "raw"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Fragment is one piece of a reply
type Fragment struct {
	Kind Kind
	Text string
}

// RecordError is returned by Collect when the output contained an error record
type RecordError struct {
	Message string
}

func (e *RecordError) Error() string {
	return e.Message
}

// record covers both Ollama's generate records ({"response": ...}) and chat records ({"message": {...}})
type record struct {
	Response *string `json:"response"`
	Message  *struct {
		Content string `json:"content"`
	} `json:"message"`
	Error *string `json:"error"`
}

// Parse classifies a single line of output without its trailing newline. The boolean is false for JSON records
// that carry neither output nor an error, such as a final {"done": true}.
func Parse(line string) (Fragment, bool) {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, "{") {
		return Fragment{Kind: KindRaw, Text: line + "\n"}, true
	}

	var r record
	if err := json.Unmarshal([]byte(trimmed), &r); err != nil {
		return Fragment{Kind: KindRaw, Text: line + "\n"}, true
	}
	switch {
	case r.Response != nil:
		return Fragment{Kind: KindText, Text: *r.Response}, true
	case r.Message != nil:
		return Fragment{Kind: KindText, Text: r.Message.Content}, true
	case r.Error != nil:
		return Fragment{Kind: KindError, Text: *r.Error}, true
	default:
		return Fragment{}, false
	}
}

// Scan lazily yields the fragments in r in arrival order. A read failure is yielded once as the error and ends the
// sequence.
func Scan(r io.Reader) iter.Seq2[Fragment, error] {
	return func(yield func(Fragment, error) bool) {
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
		for scanner.Scan() {
			f, ok := Parse(scanner.Text())
			if !ok {
				continue
			}
			if !yield(f, nil) {
				return
			}
		}
		if err := scanner.Err(); err != nil {
			yield(Fragment{}, fmt.Errorf("failed to read output: %w", err))
		}
	}
}

// Collect concatenates text and raw fragments. It stops at the first error record or read failure and discards
// whatever was collected up to that point.
func Collect(seq iter.Seq2[Fragment, error]) (string, error) {
	var b strings.Builder
	for f, err := range seq {
		if err != nil {
			return "", err
		}
		if f.Kind == KindError {
			return "", &RecordError{Message: f.Text}
		}
		b.WriteString(f.Text)
	}
	return b.String(), nil
}
