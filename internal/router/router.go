package router

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"clockledger/internal/domain"
)

// Command is a bot command name without the leading slash.
type Command string

const (
	CmdStart      Command = "start"
	CmdClockIn    Command = "clockin"
	CmdClockOut   Command = "clockout"
	CmdOffDay     Command = "offday"
	CmdCheck      Command = "check"
	CmdBalance    Command = "balance"
	CmdClaim      Command = "claim"
	CmdViewClaims Command = "viewclaims"
	CmdPDF        Command = "PDF"
	CmdTopup      Command = "topup"
	CmdSalary     Command = "salary"
	CmdExport     Command = "export"
	CmdMigrate    Command = "migrate"
)

// Request is a resolved inbound command.
type Request struct {
	Command   Command
	UserID    int64
	Username  string
	Role      domain.Role
	Args      []string
	MessageID int
}

// Document is a file attached to a reply.
type Document struct {
	Name string
	Data []byte
}

// Response is what a handler sends back to the chat. A nil Response means
// nothing is sent.
type Response struct {
	Text      string
	Markdown  bool
	Documents []Document
}

type Handler func(ctx context.Context, req *Request) (*Response, error)

type route struct {
	adminOnly bool
	dedupe    bool
	exclusive bool
	handler   Handler
}

// Option configures a registered route.
type Option func(*route)

// AdminOnly restricts the command to admins; drivers get ErrUnauthorized
// before the handler runs.
func AdminOnly() Option { return func(r *route) { r.adminOnly = true } }

// Deduped drops redelivered copies of the same message before the handler
// runs. Used on commands that create ledger records.
func Deduped() Option { return func(r *route) { r.dedupe = true } }

// Exclusive runs the handler under the store-wide write gate, with no other
// command in flight.
func Exclusive() Option { return func(r *route) { r.exclusive = true } }

// Router maps commands to handlers with role checks, redelivery dedup, an
// audit log, and a maintenance gate that lets /migrate run alone.
type Router struct {
	gate    sync.RWMutex
	routes  map[Command]route
	deduper Deduper
	log     *logrus.Logger
}

func New(log *logrus.Logger, deduper Deduper) *Router {
	return &Router{
		routes:  make(map[Command]route),
		deduper: deduper,
		log:     log,
	}
}

func (r *Router) Handle(cmd Command, h Handler, opts ...Option) {
	rt := route{handler: h}
	for _, opt := range opts {
		opt(&rt)
	}
	r.routes[cmd] = rt
}

// Commands returns the registered commands the given role may invoke.
func (r *Router) Commands(role domain.Role) []Command {
	var cmds []Command
	for cmd, rt := range r.routes {
		if rt.adminOnly && role != domain.RoleAdmin {
			continue
		}
		cmds = append(cmds, cmd)
	}
	return cmds
}

// Dispatch resolves and runs the request. Unknown commands and failed role
// checks are rejected before any handler (and any state change) runs.
// Redelivered duplicates return (nil, nil).
func (r *Router) Dispatch(ctx context.Context, req *Request) (*Response, error) {
	entry := r.log.WithFields(logrus.Fields{
		"command": req.Command,
		"user_id": req.UserID,
		"role":    req.Role,
	})

	rt, ok := r.routes[req.Command]
	if !ok {
		entry.Warn("unknown command")
		return nil, domain.ErrUnknownCommand
	}
	if rt.adminOnly && req.Role != domain.RoleAdmin {
		entry.Warn("denied")
		return nil, domain.ErrUnauthorized
	}

	if rt.dedupe && r.deduper != nil && req.MessageID != 0 {
		key := fmt.Sprintf("%d:%d", req.UserID, req.MessageID)
		seen, err := r.deduper.Seen(ctx, key)
		if err != nil {
			entry.WithError(err).Warn("dedup check failed, processing anyway")
		} else if seen {
			entry.WithField("message_id", req.MessageID).Info("duplicate delivery dropped")
			return nil, nil
		}
	}

	if rt.exclusive {
		r.gate.Lock()
		defer r.gate.Unlock()
	} else {
		r.gate.RLock()
		defer r.gate.RUnlock()
	}

	entry.Info("dispatch")
	return rt.handler(ctx, req)
}
