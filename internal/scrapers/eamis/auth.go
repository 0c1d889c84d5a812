package eamis

import (
	"context"
	"fmt"
	"sync"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"
)

// Authenticator gets to inspect and modify every outgoing request before it
// is sent. Returning an error aborts the request.
type Authenticator interface {
	Authenticate(req *resty.Request) error
}

type AuthenticatorFunc func(req *resty.Request) error

func (f AuthenticatorFunc) Authenticate(req *resty.Request) error {
	return f(req)
}

// Chain runs a list of authenticators in the order they were added, the
// first failing one stops the rest from running.
type Chain struct {
	mutex    sync.RWMutex
	children []Authenticator
}

func NewChain(children ...Authenticator) *Chain {
	return &Chain{children: children}
}

// Append adds authenticators to the end of the chain, it should only be
// called while setting up a session.
func (c *Chain) Append(children ...Authenticator) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.children = append(c.children, children...)
}

func (c *Chain) count() int {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return len(c.children)
}

func (c *Chain) Authenticate(req *resty.Request) error {
	c.mutex.RLock()
	children := c.children
	c.mutex.RUnlock()

	for i, child := range children {
		err := child.Authenticate(req)
		if err != nil {
			return fmt.Errorf("authenticator %d: %w", i, err)
		}
	}
	return nil
}

// ResponseHook is called once the response of a request has arrived.
type ResponseHook func(res *resty.Response)

type responseHooksKeyType int

var responseHooksKey responseHooksKeyType

type responseHooks struct {
	mutex sync.Mutex
	hooks []ResponseHook
}

// OnResponse registers a hook on a single request. Hooks run in the order
// they were registered and do not run if the request never got a response.
func OnResponse(req *resty.Request, hook ResponseHook) {
	ctx := req.Context()
	registered, ok := ctx.Value(responseHooksKey).(*responseHooks)
	if !ok {
		registered = &responseHooks{}
		req.SetContext(context.WithValue(ctx, responseHooksKey, registered))
	}

	registered.mutex.Lock()
	defer registered.mutex.Unlock()
	registered.hooks = append(registered.hooks, hook)
}

func runResponseHooks(_ *resty.Client, res *resty.Response) error {
	registered, ok := res.Request.Context().Value(responseHooksKey).(*responseHooks)
	if !ok {
		return nil
	}

	registered.mutex.Lock()
	hooks := registered.hooks
	registered.mutex.Unlock()

	for _, hook := range hooks {
		hook(res)
	}
	return nil
}

// HeaderAuth sets static headers on every request.
type HeaderAuth map[string]string

func (h HeaderAuth) Authenticate(req *resty.Request) error {
	for key, value := range h {
		req.SetHeader(key, value)
	}
	return nil
}

// ThrottleAuth limits the overall request rate of a session regardless of
// the path being requested.
type ThrottleAuth struct {
	limiter *rate.Limiter
}

func NewThrottleAuth(perSecond float64, burst int) ThrottleAuth {
	if burst < 1 {
		burst = 1
	}
	return ThrottleAuth{limiter: rate.NewLimiter(rate.Limit(perSecond), burst)}
}

func (t ThrottleAuth) Authenticate(req *resty.Request) error {
	err := t.limiter.Wait(req.Context())
	if err != nil {
		return fmt.Errorf("throttle: %w", err)
	}
	return nil
}
