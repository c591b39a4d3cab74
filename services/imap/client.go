package imap

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"
	"golang.org/x/net/proxy"

	"github.com/customeros/mailscan/config"
	mailscan_errors "github.com/customeros/mailscan/errors"
	"github.com/customeros/mailscan/internal/tracing"
)

const defaultLogoutTimeout = 5 * time.Second

// session is the subset of *client.Client the fetcher drives.
type session interface {
	Login(username, password string) error
	Select(name string, readOnly bool) (*imap.MailboxStatus, error)
	Fetch(seqset *imap.SeqSet, items []imap.FetchItem, ch chan *imap.Message) error
	Logout() error
	Terminate() error
}

type dialFunc func(ctx context.Context, cfg *config.IMAPConfig) (session, error)

// dialIMAP opens the transport only; login happens in connect.
func dialIMAP(ctx context.Context, cfg *config.IMAPConfig) (session, error) {
	serverAddr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	dialer := &net.Dialer{
		Timeout:   cfg.DialTimeout,
		KeepAlive: 30 * time.Second,
	}
	if deadline, ok := ctx.Deadline(); ok {
		dialer.Deadline = deadline
	}

	// ALL_PROXY and NO_PROXY are honoured; without them this is the plain dialer.
	proxied := proxy.FromEnvironmentUsing(dialer)

	var c *client.Client
	var err error
	if cfg.TLS {
		tlsConfig := &tls.Config{
			ServerName:         cfg.Host,
			InsecureSkipVerify: cfg.InsecureSkipVerify, // nolint: gosec
		}
		c, err = client.DialWithDialerTLS(proxied, serverAddr, tlsConfig)
	} else {
		c, err = client.DialWithDialer(proxied, serverAddr)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to connect to %s", serverAddr)
	}
	return c, nil
}

// connect dials and logs in. On any failure the session is already closed.
func (f *Fetcher) connect(ctx context.Context) (session, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "Fetcher.connect")
	defer span.Finish()
	tracing.SetDefaultImapSpanTags(ctx, span)
	span.SetTag("server", f.cfg.Host)
	span.SetTag("port", f.cfg.Port)
	span.SetTag("tls", f.cfg.TLS)

	c, err := f.dial(ctx, f.cfg)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, mailscan_errors.NewConnectionError("imap.dial", err)
	}

	loginSpan := opentracing.StartSpan("Fetcher.login", opentracing.ChildOf(span.Context()))
	loginSpan.SetTag("username", f.cfg.Username)
	defer loginSpan.Finish()

	if err = c.Login(f.cfg.Username, f.cfg.Password); err != nil {
		f.logout(c)
		tracing.TraceErr(loginSpan, err)
		if isNetworkError(err) {
			return nil, mailscan_errors.NewConnectionError("imap.login", err)
		}
		return nil, mailscan_errors.NewAuthError("imap.login", errors.Wrapf(err, "login rejected for %s", f.cfg.Username))
	}

	return c, nil
}

// logout closes the session. A server that does not answer LOGOUT within
// logoutTimeout gets its connection closed without the handshake.
func (f *Fetcher) logout(c session) {
	if c == nil {
		return
	}
	timeout := f.logoutTimeout
	if timeout <= 0 {
		timeout = defaultLogoutTimeout
	}

	done := make(chan error, 1)
	go func() {
		done <- c.Logout()
	}()

	select {
	case err := <-done:
		if err != nil && !errors.Is(err, client.ErrAlreadyLoggedOut) {
			f.log.Warnf("Error during IMAP logout: %v", err)
		}
	case <-time.After(timeout):
		f.log.Warnf("IMAP logout timed out after %v, closing connection", timeout)
		if err := c.Terminate(); err != nil {
			f.log.Warnf("Error closing IMAP connection: %v", err)
		}
	}
}

func isNetworkError(err error) bool {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, net.ErrClosed) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
