package trap

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/gosnmp/gosnmp"

	"ups_trap_gateway/internal/logger"
	"ups_trap_gateway/internal/metrics"
	"ups_trap_gateway/internal/models"
)

// Submitter takes decoded notifications off the receive path. It must not
// block.
type Submitter interface {
	Submit(raw models.RawNotification) error
}

// Listener receives SNMPv1/v2c traps on one UDP address.
type Listener struct {
	addr      string
	submit    Submitter
	allowed   map[string]struct{}
	community string
	log       *logger.Logger
	now       func() time.Time

	tl *gosnmp.TrapListener
}

type Option func(*Listener)

// WithAllowedSources restricts accepted senders. An empty list accepts all.
func WithAllowedSources(sources []string) Option {
	return func(l *Listener) {
		for _, s := range sources {
			if s = strings.TrimSpace(s); s != "" {
				l.allowed[s] = struct{}{}
			}
		}
	}
}

// WithCommunity rejects packets carrying a different community string.
func WithCommunity(community string) Option {
	return func(l *Listener) { l.community = community }
}

func WithLogger(log *logger.Logger) Option {
	return func(l *Listener) {
		if log != nil {
			l.log = log
		}
	}
}

func NewListener(addr string, submit Submitter, opts ...Option) *Listener {
	l := &Listener{
		addr:    addr,
		submit:  submit,
		allowed: make(map[string]struct{}),
		log:     logger.Nop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}

	tl := gosnmp.NewTrapListener()
	tl.Params = gosnmp.Default
	tl.OnNewTrap = l.onTrap
	l.tl = tl
	return l
}

// Run listens until ctx is done or the socket fails.
func (l *Listener) Run(ctx context.Context) error {
	errc := make(chan error, 1)
	go func() { errc <- l.tl.Listen(l.addr) }()

	select {
	case <-l.tl.Listening():
		l.log.Infow("trap_listener_started", "addr", l.addr, "allowed_sources", len(l.allowed))
	case err := <-errc:
		return fmt.Errorf("trap listen %s: %w", l.addr, err)
	case <-ctx.Done():
		// Listen has not bound yet; wait for it before closing
		select {
		case <-l.tl.Listening():
		case err := <-errc:
			return ignoreClosed(err)
		}
	}

	select {
	case <-ctx.Done():
		l.tl.Close()
		<-errc
		l.log.Infow("trap_listener_stopped", "addr", l.addr)
		return nil
	case err := <-errc:
		return fmt.Errorf("trap listen %s: %w", l.addr, err)
	}
}

func (l *Listener) onTrap(p *gosnmp.SnmpPacket, from *net.UDPAddr) {
	source := ""
	if from != nil {
		source = from.IP.String()
	}
	if !l.accepts(source) {
		metrics.IncTrap(metrics.TrapRejected)
		l.log.Warnw("trap_rejected_source", "source", source)
		return
	}
	if l.community != "" && p != nil && p.Version != gosnmp.Version3 && p.Community != l.community {
		metrics.IncTrap(metrics.TrapRejected)
		l.log.Warnw("trap_rejected_community", "source", source)
		return
	}

	raw, err := Decode(p, source, l.now())
	if err != nil {
		metrics.IncTrap(metrics.TrapUndecoded)
		l.log.Warnw("trap_undecoded", "source", source, "err", err)
		return
	}
	l.log.Debugw("trap_received", "source", source, "code", raw.Code, "varbinds", len(raw.Payload))

	if err := l.submit.Submit(raw); err != nil {
		l.log.Warnw("trap_submit_failed", "source", source, "code", raw.Code, "err", err)
	}
}

func (l *Listener) accepts(source string) bool {
	if len(l.allowed) == 0 {
		return true
	}
	_, ok := l.allowed[source]
	return ok
}

func ignoreClosed(err error) error {
	if err == nil || errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}
