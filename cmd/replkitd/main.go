// Command replkitd runs the interactive terminal bridging an editor to a
// numeric computing runtime. It dials the runtime over stdio or a websocket,
// keeps command history in a bbolt database, and serves the command window
// on the controlling terminal or on a freshly allocated pty.
package main

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/creack/pty"
	"github.com/gorilla/websocket"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"github.com/replkit/replkit/pkg/cmdwin"
	"github.com/replkit/replkit/pkg/config"
	"github.com/replkit/replkit/pkg/dap"
	"github.com/replkit/replkit/pkg/logutil"
	"github.com/replkit/replkit/pkg/notify/rpc"
	"github.com/replkit/replkit/pkg/session"
	"github.com/replkit/replkit/pkg/store"
	"github.com/replkit/replkit/pkg/term"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "replkitd:", err)
		os.Exit(2)
	}
}

func newRootCmd() *cobra.Command {
	var cfgPath string
	cmd := &cobra.Command{
		Use:           "replkitd",
		Short:         "interactive terminal for a remote numeric computing runtime",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), cfgPath)
		},
	}
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "path to a YAML config file")
	return cmd
}

func run(ctx context.Context, cfgPath string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	logger, err := logutil.New(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	conn, err := dial(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer conn.Close()

	if err := os.MkdirAll(filepath.Dir(cfg.HistoryPath), 0o700); err != nil {
		return err
	}
	st, err := store.Open(cfg.HistoryPath)
	if err != nil {
		return err
	}
	defer st.Close()

	sess := session.New(conn, logger)
	defer sess.Close()

	bridge := dap.NewBridge(dap.Spec{
		Session:   sess,
		AutoStart: cfg.DebugAdapterAutoStart,
		Logger:    logger,
	})
	defer bridge.Close()

	return terminalLoop(cfg, conn, sess, st, logger)
}

// stdio joins the process's standard streams into one ReadWriteCloser for
// the JSON-RPC transport.
type stdio struct {
	io.Reader
	io.Writer
}

func (stdio) Close() error { return nil }

func dial(ctx context.Context, cfg config.Config, logger *zap.Logger) (*rpc.Conn, error) {
	if cfg.RuntimeURL == "stdio" {
		return rpc.NewStream(ctx, stdio{os.Stdin, os.Stdout}, logger), nil
	}
	u, err := url.Parse(cfg.RuntimeURL)
	if err != nil {
		return nil, fmt.Errorf("runtime URL: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return nil, fmt.Errorf("runtime URL %q: scheme must be stdio, ws or wss", cfg.RuntimeURL)
	}
	ws, _, err := websocket.DefaultDialer.DialContext(ctx, cfg.RuntimeURL, nil)
	if err != nil {
		return nil, fmt.Errorf("dial runtime: %w", err)
	}
	return rpc.NewWebSocket(ctx, ws, logger), nil
}

// terminalLoop runs the command window until the terminal closes or the
// runtime disconnects. With JSON-RPC on stdio, or with stdin not a terminal,
// a pty pair is allocated and the editor attaches to its slave side.
func terminalLoop(cfg config.Config, conn *rpc.Conn, sess *session.Session, st *store.Store, logger *zap.Logger) error {
	var in io.Reader
	var out io.Writer
	var fd int
	if cfg.RuntimeURL != "stdio" && isatty.IsTerminal(os.Stdin.Fd()) {
		in, out, fd = os.Stdin, os.Stdout, int(os.Stdin.Fd())
	} else {
		master, slave, err := pty.Open()
		if err != nil {
			return fmt.Errorf("allocate pty: %w", err)
		}
		defer master.Close()
		defer slave.Close()
		logger.Info("pty allocated", zap.String("tty", slave.Name()))
		// Raw mode and size are properties of the slave side.
		in, out, fd = master, master, int(slave.Fd())
	}

	if restore, err := term.SetRaw(fd); err == nil {
		defer restore()
	} else {
		logger.Warn("raw mode unavailable", zap.Error(err))
	}

	rows, cols, err := term.Size(fd)
	if err != nil {
		rows, cols = 24, 80
	}
	win := cmdwin.New(cmdwin.Spec{
		Session: sess,
		Output:  out,
		Store:   st,
		Rows:    rows,
		Columns: cols,
		Logger:  logger,
	})
	defer win.Close()

	winch := make(chan os.Signal, 1)
	signal.Notify(winch, unix.SIGWINCH)
	defer signal.Stop(winch)
	go func() {
		for range winch {
			if r, c, err := term.Size(fd); err == nil {
				win.SetSize(r, c)
			}
		}
	}()

	readErr := make(chan error, 1)
	go func() {
		buf := make([]byte, 4096)
		for {
			n, err := in.Read(buf)
			if n > 0 {
				win.HandleInput(string(buf[:n]))
			}
			if err != nil {
				readErr <- err
				return
			}
		}
	}()

	select {
	case <-conn.DisconnectNotify():
		logger.Info("runtime connection closed")
		return nil
	case err := <-readErr:
		if err == io.EOF {
			return nil
		}
		return err
	}
}
