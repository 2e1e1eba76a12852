// ABOUTME: Authorization window backed by the system browser
// ABOUTME: The terminal user closes it by pressing Enter once the provider page is done

package main

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"runtime"
)

// browserWindow opens the authorization URL in the user's browser. A
// browser tab gives no closure signal, so Closed reports true once wait
// returns.
type browserWindow struct {
	errOut io.Writer
	wait   func() error
	launch func(ctx context.Context, url string) error
	done   chan struct{}
}

func newBrowserWindow(errOut io.Writer, wait func() error) *browserWindow {
	return &browserWindow{errOut: errOut, wait: wait, launch: openBrowser, done: make(chan struct{})}
}

func (w *browserWindow) Open(ctx context.Context, url string) error {
	if err := w.launch(ctx, url); err != nil {
		fmt.Fprintf(w.errOut, "Could not open a browser (%v).\n", err)
	}
	fmt.Fprintf(w.errOut, "Authorize at: %s\n", url)
	fmt.Fprint(w.errOut, "Press Enter when authorization is complete.")

	go func() {
		_ = w.wait()
		fmt.Fprintln(w.errOut)
		close(w.done)
	}()
	return nil
}

func (w *browserWindow) Closed() bool {
	select {
	case <-w.done:
		return true
	default:
		return false
	}
}

func openBrowser(ctx context.Context, url string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.CommandContext(ctx, "open", url)
	case "windows":
		cmd = exec.CommandContext(ctx, "rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.CommandContext(ctx, "xdg-open", url)
	}
	if err := cmd.Start(); err != nil {
		return err
	}
	go func() { _ = cmd.Wait() }()
	return nil
}
