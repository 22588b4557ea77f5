package logging

import (
	"io"
	"regexp"
	"strings"
)

var (
	// tweetIDRegex matches the snowflake IDs used for tweets and conversations.
	tweetIDRegex = regexp.MustCompile(`\b\d{15,}\b`)
	// handleRegex matches @handles.
	handleRegex = regexp.MustCompile(`@[A-Za-z0-9_]{1,15}\b`)
)

// RedactingWriter is an io.Writer that redacts sensitive information before
// writing to an underlying writer.
type RedactingWriter struct {
	underlying   io.Writer
	replacements []replacement
}

type replacement struct {
	re   *regexp.Regexp
	repl string
}

// NewRedactingWriter creates a writer masking tweet IDs, handles, the output path and any secrets.
func NewRedactingWriter(w io.Writer, outputPath string, secrets []string) io.Writer {
	var r []replacement
	// Secrets and paths go first so that digits inside them are not half-replaced by the ID rule.
	for _, s := range secrets {
		if strings.TrimSpace(s) != "" {
			r = append(r, replacement{regexp.MustCompile(regexp.QuoteMeta(s)), "[SECRET]"})
		}
	}
	if outputPath != "" {
		sanitized := strings.ReplaceAll(regexp.QuoteMeta(outputPath), `\\`, `[/\\]`)
		r = append(r, replacement{regexp.MustCompile(sanitized), "[OUTPUT_PATH]"})
	}
	r = append(r,
		replacement{tweetIDRegex, "[TWEET_ID]"},
		replacement{handleRegex, "[HANDLE]"},
	)
	return &RedactingWriter{underlying: w, replacements: r}
}

// Write redacts p and writes it to the underlying writer. It reports len(p) on success
// so callers see the whole buffer as consumed.
func (rw *RedactingWriter) Write(p []byte) (n int, err error) {
	message := string(p)
	for _, r := range rw.replacements {
		message = r.re.ReplaceAllString(message, r.repl)
	}
	if _, err := rw.underlying.Write([]byte(message)); err != nil {
		return 0, err
	}
	return len(p), nil
}
