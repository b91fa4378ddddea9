package checkout

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
)

// ServeReturn runs a loopback HTTP listener that captures a single checkout
// redirect and feeds it to the flow. It returns the URL to register as the
// success/cancel target and a wait function that blocks until the redirect
// arrives or the context ends.
func (f *Flow) ServeReturn(ctx context.Context, addr string) (string, func() error, error) {
	if addr == "" {
		addr = "127.0.0.1:0"
	}
	ln, err := net.Listen("tcp4", addr)
	if err != nil {
		return "", nil, err
	}

	done := make(chan error, 1)
	srv := &http.Server{Handler: http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		query := req.URL.Query()
		// Browsers also fetch /favicon.ico and the like; only a request
		// carrying a checkout outcome settles the wait.
		if query.Get("success") == "" && query.Get("canceled") == "" {
			http.NotFound(w, req)
			return
		}
		err := f.HandleReturn(req.Context(), query)
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err != nil {
			w.WriteHeader(http.StatusBadGateway)
			io.WriteString(w, "<html><body><p>La confirmation a échoué. Retournez au terminal.</p></body></html>")
		} else {
			io.WriteString(w, "<html><body><p>Merci! Vous pouvez fermer cet onglet et retourner au terminal.</p></body></html>")
		}
		select {
		case done <- err:
		default:
		}
	})}

	go srv.Serve(ln)

	wait := func() error {
		defer srv.Close()
		select {
		case err := <-done:
			return err
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return fmt.Sprintf("http://%s/return", ln.Addr().String()), wait, nil
}
