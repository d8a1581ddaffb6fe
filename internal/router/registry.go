// Package router talks to the RouterOS device that terminates PPPoE sessions.
package router

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-routeros/routeros/v3"
	"github.com/rs/zerolog"

	"netbill/internal/logger"
)

var (
	// ErrUnavailable is returned when the router cannot be reached or the
	// connection broke mid-command.
	ErrUnavailable = errors.New("router unavailable")

	// ErrCommandFailed is returned when the router rejected a command.
	ErrCommandFailed = errors.New("router command failed")

	// ErrUnknownRouter is returned for a connection id that was never opened.
	ErrUnknownRouter = errors.New("unknown router connection")

	// ErrSubscriberNotFound is returned when no PPP secret has the given name.
	ErrSubscriberNotFound = errors.New("subscriber not found on router")
)

// Connection holds the parameters needed to reach one router.
type Connection struct {
	Address  string
	Username string
	Password string
	Timeout  time.Duration
}

// Conn runs API sentences and returns the attribute maps of the !re replies.
type Conn interface {
	Run(ctx context.Context, args ...string) ([]map[string]string, error)
	Close() error
}

// Dialer opens a Conn.
type Dialer func(ctx context.Context, c Connection) (Conn, error)

// Registry owns live router clients keyed by connection id. Clients are
// dialed lazily and dropped when a command fails at the transport level.
type Registry struct {
	mu      sync.Mutex
	conns   map[string]Connection
	clients map[string]Conn
	dial    Dialer
	log     zerolog.Logger
}

// NewRegistry creates an empty registry. A nil dialer uses the RouterOS API client.
func NewRegistry(dial Dialer) *Registry {
	if dial == nil {
		dial = DialRouterOS
	}
	return &Registry{
		conns:   make(map[string]Connection),
		clients: make(map[string]Conn),
		dial:    dial,
		log:     logger.WithComponent("router-registry"),
	}
}

// Open registers connection parameters under id. Re-opening an id closes
// any client dialed with the old parameters.
func (r *Registry) Open(id string, c Connection) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if old, ok := r.clients[id]; ok {
		_ = old.Close()
		delete(r.clients, id)
	}
	r.conns[id] = c
}

// GetOrConnect returns the live client for id, dialing it if needed.
func (r *Registry) GetOrConnect(ctx context.Context, id string) (Conn, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if c, ok := r.clients[id]; ok {
		return c, nil
	}
	params, ok := r.conns[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownRouter, id)
	}

	r.log.Debug().Str("router", id).Str("address", params.Address).Msg("Dialing router")
	c, err := r.dial(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %v", ErrUnavailable, params.Address, err)
	}
	r.clients[id] = c
	return c, nil
}

// Invalidate closes and forgets the live client for id so the next call redials.
func (r *Registry) Invalidate(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if c, ok := r.clients[id]; ok {
		_ = c.Close()
		delete(r.clients, id)
	}
}

// Close closes the client for id and forgets its parameters.
func (r *Registry) Close(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.conns, id)
	c, ok := r.clients[id]
	if !ok {
		return nil
	}
	delete(r.clients, id)
	return c.Close()
}

// CloseAll closes every live client.
func (r *Registry) CloseAll() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error
	for id, c := range r.clients {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", id, err))
		}
		delete(r.clients, id)
	}
	return errors.Join(errs...)
}

// DialRouterOS connects to the RouterOS API.
func DialRouterOS(ctx context.Context, c Connection) (Conn, error) {
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}
	client, err := routeros.DialContext(ctx, c.Address, c.Username, c.Password)
	if err != nil {
		return nil, err
	}
	return &apiConn{client: client}, nil
}

type apiConn struct {
	mu     sync.Mutex
	client *routeros.Client
}

func (a *apiConn) Run(ctx context.Context, args ...string) ([]map[string]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	reply, err := a.client.RunArgs(args)
	if err != nil {
		var devErr *routeros.DeviceError
		if errors.As(err, &devErr) {
			return nil, fmt.Errorf("%w: %s: %v", ErrCommandFailed, args[0], err)
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrUnavailable, args[0], err)
	}

	rows := make([]map[string]string, 0, len(reply.Re))
	for _, re := range reply.Re {
		rows = append(rows, re.Map)
	}
	return rows, nil
}

func (a *apiConn) Close() error {
	a.client.Close()
	return nil
}
