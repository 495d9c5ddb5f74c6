package router

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"runtime"
	"runtime/debug"
	"strconv"
	"strings"
	"sync"
	"time"

	rtsup "remindbot/internal/runtime/supervisor"
	kit "remindbot/internal/transport"
	"remindbot/pkg/tgui"
	logx "remindbot/pkg/logx"
)

type Command struct {
	Name        string
	Aliases     []string
	Description string
	// Hidden commands are routed but left out of the Telegram menu.
	Hidden  bool
	Timeout time.Duration
	Handle  HandlerFunc
}

type CallbackHandlerFunc func(ctx context.Context, req *Request, payload string) error

// CallbackRoute handles callback data "scope:action[:payload]".
type CallbackRoute struct {
	Scope   string
	Action  string
	Timeout time.Duration
	Handle  CallbackHandlerFunc
}

type Request struct {
	Update    kit.Update
	Chat      kit.ChatTarget
	FromID    int64
	MessageID int // the message that carried the command or the button

	Command string
	Args    []string
	Text    string // full message text for text handlers
	Payload string
	ReqID   string

	Adapter kit.Adapter
	Logger  logx.Logger
}

// Router dispatches updates to handlers on a fixed worker pool. All updates
// of one user go to the same worker, so a user's inputs are handled in the
// order they arrived.
type Router struct {
	mu        sync.RWMutex
	commands  map[string]*Command
	menu      []kit.BotCommand
	callbacks map[string]map[string]CallbackRoute
	text      HandlerFunc
	unknown   HandlerFunc

	log     logx.Logger
	adapter kit.Adapter

	workers   int
	queueSize int
	timeout   time.Duration

	runMu  sync.Mutex
	queues []chan func()
	sup    *rtsup.Supervisor
}

type Option func(*Router)

func WithWorkers(n int) Option { return func(r *Router) { r.workers = n } }

func WithQueueSize(n int) Option { return func(r *Router) { r.queueSize = n } }

// WithDefaultTimeout bounds handlers that set no timeout of their own.
func WithDefaultTimeout(d time.Duration) Option { return func(r *Router) { r.timeout = d } }

func New(log logx.Logger, adapter kit.Adapter, opts ...Option) *Router {
	if log.IsZero() {
		log = logx.Nop()
	}
	r := &Router{
		commands:  map[string]*Command{},
		callbacks: map[string]map[string]CallbackRoute{},
		log:       log,
		adapter:   adapter,
		workers:   max(2, runtime.NumCPU()),
		queueSize: 64,
		timeout:   15 * time.Second,
	}
	for _, o := range opts {
		o(r)
	}
	r.workers = max(1, r.workers)
	r.queueSize = max(1, r.queueSize)
	return r
}

// SetRegistry replaces the command and callback tables.
func (r *Router) SetRegistry(cmds []Command, cbs []CallbackRoute) {
	commands := map[string]*Command{}
	menu := make([]kit.BotCommand, 0, len(cmds))
	for i := range cmds {
		c := cmds[i]
		name := sanitizeTelegramCommand(c.Name)
		if name == "" || c.Handle == nil {
			continue
		}
		commands[name] = &c
		for _, a := range c.Aliases {
			if a = sanitizeTelegramCommand(a); a != "" {
				if _, taken := commands[a]; !taken {
					commands[a] = &c
				}
			}
		}
		if !c.Hidden {
			menu = append(menu, kit.BotCommand{Command: name, Description: menuDescription(c.Description, name)})
		}
	}

	callbacks := map[string]map[string]CallbackRoute{}
	for _, cb := range cbs {
		scope, action := strings.TrimSpace(cb.Scope), strings.TrimSpace(cb.Action)
		if scope == "" || action == "" || cb.Handle == nil {
			continue
		}
		if callbacks[scope] == nil {
			callbacks[scope] = map[string]CallbackRoute{}
		}
		callbacks[scope][action] = cb
	}

	r.mu.Lock()
	r.commands, r.menu, r.callbacks = commands, menu, callbacks
	r.mu.Unlock()
}

// SetTextHandler installs the handler for plain (non-command) messages.
func (r *Router) SetTextHandler(h HandlerFunc) {
	r.mu.Lock()
	r.text = h
	r.mu.Unlock()
}

// SetUnknownHandler installs the handler for unregistered commands.
func (r *Router) SetUnknownHandler(h HandlerFunc) {
	r.mu.Lock()
	r.unknown = h
	r.mu.Unlock()
}

// Menu returns the commands published to the Telegram menu.
func (r *Router) Menu() []kit.BotCommand {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]kit.BotCommand(nil), r.menu...)
}

// PublishMenu pushes Menu to the adapter when it supports command menus.
func (r *Router) PublishMenu(ctx context.Context) error {
	up, ok := r.adapter.(kit.CommandMenuUpdater)
	if !ok {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return up.UpdateMenuCommands(ctx, r.Menu())
}

// Supervisor returns the worker supervisor while DispatchLoop runs.
func (r *Router) Supervisor() *rtsup.Supervisor {
	r.runMu.Lock()
	defer r.runMu.Unlock()
	return r.sup
}

// DispatchLoop routes updates until ctx ends or updates is closed. Queued
// handlers get a short grace period to drain.
func (r *Router) DispatchLoop(ctx context.Context, updates <-chan kit.Update) error {
	sup := rtsup.New(ctx,
		rtsup.WithLogger(r.log.With(logx.String("comp", "telegram.router"))),
		rtsup.WithCancelOnError(false),
	)
	queues := make([]chan func(), r.workers)
	for i := range queues {
		queues[i] = make(chan func(), r.queueSize)
	}
	r.runMu.Lock()
	r.queues, r.sup = queues, sup
	r.runMu.Unlock()

	for i, q := range queues {
		idx, q := i, q
		sup.GoRestart("router.worker."+strconv.Itoa(idx), func(c context.Context) error {
			for {
				select {
				case <-c.Done():
					return nil
				case job, ok := <-q:
					if !ok {
						return nil
					}
					r.runJob(idx, job)
				}
			}
		},
			rtsup.WithRestartBackoff(200*time.Millisecond, 5*time.Second),
			rtsup.WithPublishFirstError(true),
		)
	}
	r.log.Info("dispatcher started", logx.Int("workers", len(queues)), logx.Int("queue_cap", r.queueSize))

	defer func() {
		r.runMu.Lock()
		r.queues = nil
		r.runMu.Unlock()
		for _, q := range queues {
			close(q)
		}
		wctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		_ = sup.Wait(wctx)
		cancel()
		sup.Cancel()
		r.runMu.Lock()
		r.sup = nil
		r.runMu.Unlock()
		r.log.Info("dispatcher stopped")
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case up, ok := <-updates:
			if !ok {
				return nil
			}
			r.Route(ctx, up)
		}
	}
}

func (r *Router) runJob(worker int, job func()) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error("panic in router job", logx.Int("worker", worker), logx.Any("panic", rec), logx.Stack(string(debug.Stack())))
		}
	}()
	job()
}

// Route dispatches one update. Outside DispatchLoop it runs the handler on
// the calling goroutine.
func (r *Router) Route(ctx context.Context, up kit.Update) {
	switch up.Kind {
	case kit.UpdateMessage:
		r.routeMessage(ctx, up)
	case kit.UpdateCallback:
		r.routeCallback(ctx, up)
	}
}

func (r *Router) routeMessage(ctx context.Context, up kit.Update) {
	msg := up.Message
	if msg == nil {
		return
	}
	text := strings.TrimSpace(msg.Text)

	r.mu.RLock()
	commands, textHandler, unknown := r.commands, r.text, r.unknown
	r.mu.RUnlock()

	req := &Request{
		Update:    up,
		Chat:      kit.ChatTarget{ChatID: msg.ChatID, ThreadID: msg.ThreadID},
		FromID:    msg.FromID,
		MessageID: msg.ID,
		Text:      msg.Text,
		Adapter:   r.adapter,
	}

	var (
		h       HandlerFunc
		timeout time.Duration
	)
	if strings.HasPrefix(text, "/") {
		fields := strings.Fields(text)
		word := strings.ToLower(strings.TrimPrefix(fields[0], "/"))
		if i := strings.IndexByte(word, '@'); i >= 0 {
			word = word[:i]
		}
		req.Command = word
		req.Args = fields[1:]
		if cmd, ok := commands[word]; ok {
			h, timeout = cmd.Handle, cmd.Timeout
			req.Command = sanitizeTelegramCommand(cmd.Name)
		} else {
			h = unknown
		}
	} else {
		h = textHandler
	}
	if h == nil {
		return
	}
	r.dispatch(ctx, req, h, timeout, nil)
}

func (r *Router) routeCallback(ctx context.Context, up kit.Update) {
	cb := up.Callback
	if cb == nil {
		return
	}
	scope, action, payload, ok := tgui.ParseData(cb.Data)
	if !ok {
		return
	}
	r.mu.RLock()
	route, found := r.callbacks[scope][action]
	r.mu.RUnlock()
	if !found {
		_ = r.adapter.AnswerCallback(ctx, cb.ID, "")
		return
	}

	req := &Request{
		Update:    up,
		Chat:      kit.ChatTarget{ChatID: cb.ChatID, ThreadID: cb.ThreadID},
		FromID:    cb.FromID,
		MessageID: cb.MessageID,
		Command:   "cb:" + scope + ":" + action,
		Payload:   payload,
		Adapter:   r.adapter,
	}
	h := func(ctx context.Context, req *Request) error { return route.Handle(ctx, req, payload) }
	// stop the client's loading indicator once the handler is done
	after := func(ctx context.Context) { _ = r.adapter.AnswerCallback(ctx, cb.ID, "") }
	r.dispatch(ctx, req, h, route.Timeout, after)
}

func (r *Router) dispatch(ctx context.Context, req *Request, h HandlerFunc, timeout time.Duration, after func(context.Context)) {
	req.ReqID = newReqID()
	req.Logger = r.log.With(
		logx.String("rid", req.ReqID),
		logx.Int64("chat_id", req.Chat.ChatID),
		logx.Int64("from_id", req.FromID),
		logx.String("cmd", req.Command),
	)
	if timeout <= 0 {
		timeout = r.timeout
	}
	final := Chain(h, MWPanicRecover(r.log), MWRequestLog(r.log), MWTimeout(timeout))
	job := func() {
		_ = final(ctx, req)
		if after != nil {
			after(ctx)
		}
	}

	r.runMu.Lock()
	queues := r.queues
	if queues == nil {
		r.runMu.Unlock()
		job()
		return
	}
	q := queues[shard(req.FromID, len(queues))]
	select {
	case q <- job:
		r.runMu.Unlock()
	default:
		r.runMu.Unlock()
		r.log.Warn("router queue full", logx.Int64("from_id", req.FromID))
		if req.Update.Kind == kit.UpdateCallback {
			_ = r.adapter.AnswerCallback(ctx, req.Update.Callback.ID, "busy, try again")
			return
		}
		_, _ = r.adapter.SendText(ctx, req.Chat, "busy, try again", nil)
	}
}

func shard(id int64, n int) int {
	if id < 0 {
		id = -id
	}
	return int(id % int64(n))
}

func newReqID() string {
	var b [6]byte
	if _, err := rand.Read(b[:]); err != nil {
		return strconv.FormatInt(time.Now().UnixNano(), 36)
	}
	return hex.EncodeToString(b[:])
}
