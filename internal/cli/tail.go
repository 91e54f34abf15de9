// pattern: Imperative Shell
package cli

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"chatgptnvim/internal/logging"
	"chatgptnvim/internal/tui"
)

// TailConfig configures the log tail behavior.
type TailConfig struct {
	Path     string
	Lines    int
	Follow   bool
	Interval time.Duration
	NoColor  bool
	Styles   *tui.Styles
	Writer   io.Writer
}

// TailLog prints the last cfg.Lines entries of the plugin log. With Follow
// it then polls the file and streams new entries until ctx is cancelled.
// Rotation is detected by the file identity changing or the file shrinking,
// after which reading restarts at the top of the new file.
func TailLog(ctx context.Context, cfg TailConfig) error {
	if cfg.Styles == nil {
		cfg.Styles = tui.NewStyles(nil)
	}

	data, err := os.ReadFile(cfg.Path)
	if err != nil && !(os.IsNotExist(err) && cfg.Follow) {
		return err
	}

	lines := splitLines(data)
	if cfg.Lines > 0 && len(lines) > cfg.Lines {
		lines = lines[len(lines)-cfg.Lines:]
	}
	for _, line := range lines {
		_, _ = fmt.Fprintln(cfg.Writer, formatLogLine(line, cfg))
	}

	if !cfg.Follow {
		return nil
	}

	offset := int64(len(data))
	var partial []byte
	last, _ := os.Stat(cfg.Path)

	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			info, err := os.Stat(cfg.Path)
			if err != nil {
				// Between rotation's rename and the next write there is no file.
				continue
			}
			if last != nil && (!os.SameFile(last, info) || info.Size() < offset) {
				offset = 0
				partial = nil
			}
			last = info

			if info.Size() == offset {
				continue
			}

			chunk, err := readFrom(cfg.Path, offset)
			if err != nil {
				return err
			}
			offset += int64(len(chunk))

			partial = append(partial, chunk...)
			end := bytes.LastIndexByte(partial, '\n')
			if end < 0 {
				continue
			}
			for _, line := range splitLines(partial[:end+1]) {
				_, _ = fmt.Fprintln(cfg.Writer, formatLogLine(line, cfg))
			}
			partial = append([]byte(nil), partial[end+1:]...)
		}
	}
}

func readFrom(path string, offset int64) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return nil, err
	}
	return io.ReadAll(f)
}

func splitLines(data []byte) []string {
	text := strings.TrimRight(string(data), "\n")
	if text == "" {
		return nil
	}
	return strings.Split(text, "\n")
}

// formatLogLine renders one JSON log line the way :ChatLog shows it.
// Lines that are not log records are passed through unchanged.
func formatLogLine(line string, cfg TailConfig) string {
	entry, err := logging.ParseEntry([]byte(line))
	if err != nil {
		return line
	}
	text := entry.String()
	if cfg.NoColor {
		return text
	}

	switch entry.Level {
	case "DEBUG":
		return cfg.Styles.HelpStyle().Render(text)
	case "WARN":
		return cfg.Styles.WarnStyle().Render(text)
	case "ERROR":
		return cfg.Styles.ErrorStyle().Render(text)
	default:
		return text
	}
}
