package realtime

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/velluxe/storefront-core/types"
	"github.com/velluxe/storefront-core/utils"
)

type SubscriberState int32

const (
	SubscriberStateStopped SubscriberState = iota
	SubscriberStateStarting
	SubscriberStateRunning
	SubscriberStateStopping
	SubscriberStateReconnecting
)

const (
	defaultReconnectDelay = 5 * time.Second
	defaultMaxRetries     = 10
	defaultPingInterval   = 54 * time.Second
	pongWait              = 60 * time.Second
	writeWait             = 10 * time.Second
)

// WebSocketSubscriber consumes the platform change stream and fans
// events out to per-topic handlers. It only reads; pings keep the
// connection alive.
type WebSocketSubscriber struct {
	ctx               context.Context
	cancel            context.CancelFunc
	logger            types.Logger
	config            *types.RealtimeConfig
	conn              *websocket.Conn
	connMu            sync.RWMutex
	handlers          map[string][]types.RealtimeHandler
	handlersMu        sync.RWMutex
	reconnectCh       chan struct{}
	state             atomic.Value
	reconnectAttempts int32
	shutdownTimeout   time.Duration
}

func NewWebSocketSubscriber(ctx context.Context, logger types.Logger, config *types.RealtimeConfig) (*WebSocketSubscriber, error) {
	if config == nil || config.URL == "" {
		return nil, types.ErrRealtimeConfigInvalid
	}

	cfg := *config
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = defaultReconnectDelay
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = defaultMaxRetries
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = defaultPingInterval
	}

	subCtx, cancel := context.WithCancel(ctx)

	sub := &WebSocketSubscriber{
		ctx:             subCtx,
		cancel:          cancel,
		logger:          logger,
		config:          &cfg,
		handlers:        make(map[string][]types.RealtimeHandler),
		reconnectCh:     make(chan struct{}, 1),
		shutdownTimeout: 10 * time.Second,
	}

	sub.state.Store(SubscriberStateStopped)

	logger.Info("Realtime subscriber initialized",
		zap.String("url", cfg.URL),
		zap.Duration("reconnect_delay", cfg.ReconnectDelay),
		zap.Int("max_retries", cfg.MaxRetries))

	return sub, nil
}

// Subscribe registers a handler for a topic. Registration happens
// before Start; the handler set is fixed while running.
func (w *WebSocketSubscriber) Subscribe(topic string, handler types.RealtimeHandler) error {
	if topic == "" {
		return types.ErrRealtimeTopicEmpty
	}
	if handler == nil {
		return types.ErrRealtimeConfigInvalid
	}

	if w.IsRunning() {
		return types.ErrRealtimeAlreadyRunning
	}

	w.handlersMu.Lock()
	defer w.handlersMu.Unlock()

	w.handlers[topic] = append(w.handlers[topic], handler)

	w.logger.Debug("Subscribed to topic",
		zap.String("topic", topic),
		zap.Int("total_handlers", len(w.handlers[topic])))

	return nil
}

func (w *WebSocketSubscriber) Unsubscribe(topic string) {
	w.handlersMu.Lock()
	defer w.handlersMu.Unlock()

	delete(w.handlers, topic)
}

func (w *WebSocketSubscriber) Start() error {
	if !w.transitionState(SubscriberStateStopped, SubscriberStateStarting) {
		return types.ErrRealtimeAlreadyRunning
	}

	defer func() {
		if w.getState() == SubscriberStateStarting {
			w.setState(SubscriberStateRunning)
		}
	}()

	if err := w.connect(); err != nil {
		w.setState(SubscriberStateStopped)
		return types.WrapError(err, "failed to establish initial connection")
	}

	go w.readPump()
	go w.pingLoop()
	go w.reconnectLoop()

	w.logger.Info("Realtime subscriber started")
	return nil
}

func (w *WebSocketSubscriber) Stop() error {
	if !w.transitionState(SubscriberStateRunning, SubscriberStateStopping) &&
		!w.transitionState(SubscriberStateReconnecting, SubscriberStateStopping) {
		return types.ErrRealtimeNotConnected
	}

	defer func() {
		w.setState(SubscriberStateStopped)
		w.cancel()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), w.shutdownTimeout)
	defer cancel()

	g, _ := errgroup.WithContext(ctx)

	g.Go(func() error {
		w.connMu.Lock()
		defer w.connMu.Unlock()

		if w.conn != nil {
			if err := w.conn.Close(); err != nil {
				return err
			}
			w.conn = nil
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		w.logger.Error("Error during subscriber shutdown", zap.Error(err))
	} else {
		w.logger.Info("Realtime subscriber stopped gracefully")
	}

	return nil
}

func (w *WebSocketSubscriber) IsRunning() bool {
	state := w.getState()
	return state == SubscriberStateRunning || state == SubscriberStateReconnecting
}

func (w *WebSocketSubscriber) connect() error {
	dialCtx, cancel := context.WithTimeout(w.ctx, 10*time.Second)
	defer cancel()

	conn, _, err := websocket.DefaultDialer.DialContext(dialCtx, w.config.URL, nil)
	if err != nil {
		return types.WrapError(err, "failed to dial change stream")
	}

	w.connMu.Lock()
	if w.conn != nil {
		_ = w.conn.Close()
	}
	w.conn = conn
	w.connMu.Unlock()

	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	atomic.StoreInt32(&w.reconnectAttempts, 0)

	w.logger.Info("Connected to change stream")
	return nil
}

func (w *WebSocketSubscriber) readPump() {
	defer w.logger.Debug("Read pump stopped")

	for {
		select {
		case <-w.ctx.Done():
			return
		default:
		}

		if !w.IsRunning() {
			return
		}

		w.connMu.RLock()
		conn := w.conn
		w.connMu.RUnlock()

		if conn == nil {
			w.safeReconnectTrigger()
			return
		}

		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				w.logger.Debug("Change stream connection closed", zap.Error(err))
			}
			if w.IsRunning() {
				w.safeReconnectTrigger()
			}
			return
		}

		var event types.RealtimeEvent
		if err := utils.Unmarshal(data, &event); err != nil {
			w.logger.Error("Failed to unmarshal realtime event", zap.Error(err))
			continue
		}

		w.dispatch(&event)
	}
}

func (w *WebSocketSubscriber) pingLoop() {
	ticker := time.NewTicker(w.config.PingInterval)
	defer func() {
		ticker.Stop()
		w.logger.Debug("Ping loop stopped")
	}()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-ticker.C:
			w.connMu.RLock()
			conn := w.conn
			w.connMu.RUnlock()

			if conn == nil {
				continue
			}

			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				w.logger.Debug("Ping failed", zap.Error(err))
				if w.IsRunning() {
					w.safeReconnectTrigger()
				}
			}
		}
	}
}

func (w *WebSocketSubscriber) reconnectLoop() {
	defer w.logger.Debug("Reconnect loop stopped")

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-w.reconnectCh:
			if !w.IsRunning() {
				return
			}

			if w.getState() == SubscriberStateRunning {
				w.setState(SubscriberStateReconnecting)
			}

			retryCount := atomic.LoadInt32(&w.reconnectAttempts)

			w.logger.Info("Starting reconnection attempt",
				zap.Int32("attempt", retryCount+1),
				zap.Int("max_retries", w.config.MaxRetries))

			if int(retryCount) >= w.config.MaxRetries {
				w.logger.Error("Max reconnection attempts reached, stopping subscriber")

				if w.transitionState(SubscriberStateReconnecting, SubscriberStateStopping) {
					w.cancel()
				}
				return
			}

			select {
			case <-time.After(w.config.ReconnectDelay):
			case <-w.ctx.Done():
				return
			}

			atomic.AddInt32(&w.reconnectAttempts, 1)

			if err := w.connect(); err != nil {
				w.logger.Error("Reconnection attempt failed",
					zap.Int32("attempt", atomic.LoadInt32(&w.reconnectAttempts)),
					zap.Error(err))

				w.safeReconnectTrigger()
				continue
			}

			w.setState(SubscriberStateRunning)
			go w.readPump()
		}
	}
}

func (w *WebSocketSubscriber) safeReconnectTrigger() {
	select {
	case w.reconnectCh <- struct{}{}:
	default:
	}
}

func (w *WebSocketSubscriber) dispatch(event *types.RealtimeEvent) {
	w.handlersMu.RLock()
	handlers := make([]types.RealtimeHandler, len(w.handlers[event.Topic]))
	copy(handlers, w.handlers[event.Topic])
	w.handlersMu.RUnlock()

	if len(handlers) == 0 {
		w.logger.Debug("No handlers for topic", zap.String("topic", event.Topic))
		return
	}

	for _, handler := range handlers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					w.logger.Error("Realtime handler panicked",
						zap.String("topic", event.Topic),
						zap.Any("panic", r))
				}
			}()
			handler(event)
		}()
	}
}

func (w *WebSocketSubscriber) getState() SubscriberState {
	if state, ok := w.state.Load().(SubscriberState); ok {
		return state
	}
	return SubscriberStateStopped
}

func (w *WebSocketSubscriber) setState(state SubscriberState) {
	w.state.Store(state)
}

func (w *WebSocketSubscriber) transitionState(from, to SubscriberState) bool {
	return w.state.CompareAndSwap(from, to)
}
