package app

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/pprof"
	"runtime"
	"sync"
	"time"

	"postbot/internal/config"
	logx "postbot/pkg/logx"
)

// pprofServer manages the optional debug HTTP listener. It follows config
// reloads: enable, disable, and address changes all take effect live.
type pprofServer struct {
	mu   sync.Mutex
	log  logx.Logger
	srv  *http.Server
	ln   net.Listener
	addr string
}

func newPprofServer(log logx.Logger) *pprofServer {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &pprofServer{log: log.With(logx.String("comp", "pprof"))}
}

// Apply starts or stops the listener according to cfg and updates the
// global profile rates.
func (p *pprofServer) Apply(ctx context.Context, cfg config.PprofConfig) {
	if cfg.Address == "" {
		cfg.Address = "127.0.0.1:6060"
	}

	runtime.SetBlockProfileRate(cfg.BlockProfileRate)
	runtime.SetMutexProfileFraction(cfg.MutexProfileFraction)

	p.mu.Lock()
	defer p.mu.Unlock()

	if !cfg.Enabled {
		p.stopLocked(ctx)
		return
	}
	if p.srv != nil && p.addr == cfg.Address {
		return
	}
	p.stopLocked(ctx)
	p.startLocked(cfg)
}

func (p *pprofServer) startLocked(cfg config.PprofConfig) {
	mux := http.NewServeMux()
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)

	ln, err := net.Listen("tcp", cfg.Address)
	if err != nil {
		p.log.Warn("pprof listen failed", logx.String("addr", cfg.Address), logx.Err(err))
		return
	}

	srv := &http.Server{Addr: cfg.Address, Handler: mux}
	p.srv = srv
	p.ln = ln
	p.addr = ln.Addr().String()

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			p.log.Warn("pprof server error", logx.Err(err))
		}
	}()
	p.log.Info("pprof enabled", logx.String("addr", p.addr))
}

// Stop shuts the listener down.
func (p *pprofServer) Stop(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopLocked(ctx)
}

func (p *pprofServer) stopLocked(ctx context.Context) {
	if p.srv == nil {
		return
	}
	srv := p.srv
	ln := p.ln
	addr := p.addr
	p.srv = nil
	p.ln = nil
	p.addr = ""

	if ctx == nil {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
	}
	if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		p.log.Warn("pprof shutdown error", logx.String("addr", addr), logx.Err(err))
	}
	if ln != nil {
		_ = ln.Close()
	}
	p.log.Info("pprof disabled", logx.String("addr", addr))
}

// Addr reports the actual listen address if running.
func (p *pprofServer) Addr() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.addr
}

func pprofConfig(c *config.DebugConfig) config.PprofConfig {
	if c == nil {
		return config.PprofConfig{}
	}
	return c.Pprof
}
