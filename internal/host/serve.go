// pattern: Imperative Shell

package host

import (
	"context"
	"fmt"
	"io"

	"github.com/neovim/go-client/nvim"
	"github.com/neovim/go-client/nvim/plugin"

	"chatgptnvim/internal/config"
	"chatgptnvim/internal/editor"
	"chatgptnvim/internal/logging"
)

// Serve speaks msgpack-RPC with Neovim over in/out until the connection
// closes or ctx is cancelled. Nothing else may write to out.
func Serve(ctx context.Context, in io.Reader, out io.WriteCloser, bot Bot, opts config.Options, logs logging.LoggerProvider) error {
	logger := logs.For("rpc")

	v, err := nvim.New(in, out, out, func(format string, args ...any) {
		logger.Debug(fmt.Sprintf(format, args...))
	})
	if err != nil {
		return fmt.Errorf("connect to nvim: %w", err)
	}

	h, err := New(editor.NewNvim(v), bot, opts, logs)
	if err != nil {
		_ = v.Close()
		return err
	}
	h.Register(plugin.New(v))

	go func() {
		<-ctx.Done()
		_ = v.Close()
	}()

	// API calls block until Serve reads their responses.
	go func() {
		if err := h.DefineHighlights(); err != nil {
			logger.Warn("failed to define highlights", "error", err)
		}
	}()

	logger.Info("serving plugin")
	if err := v.Serve(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("serve: %w", err)
	}
	logger.Info("connection closed")
	return nil
}

// Manifest returns the Vim script that registers the plugin's commands
// under the given remote host name.
func Manifest(name string) []byte {
	p := plugin.New(nil)
	var h *Host
	h.Register(p)
	return p.Manifest(name)
}
