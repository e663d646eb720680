// Package eventbus is an in-process typed publish/subscribe bus.
//
// Each subscriber owns a goroutine and an unbounded FIFO mailbox, so Publish
// never blocks and every subscriber sees events in publish order.
package eventbus

import (
	"reflect"
	"sync"

	"go.uber.org/zap"
)

// Bus routes events to subscribers by their dynamic type.
type Bus struct {
	mu     sync.RWMutex
	subs   map[reflect.Type][]*subscriber
	nextID uint64
	wg     sync.WaitGroup
	closed bool
	logger *zap.Logger
}

// New creates an empty bus that discards handler panics.
func New() *Bus {
	return NewWithLogger(nil)
}

// NewWithLogger creates an empty bus that logs recovered handler panics.
func NewWithLogger(logger *zap.Logger) *Bus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bus{subs: make(map[reflect.Type][]*subscriber), logger: logger}
}

type subscriber struct {
	id     uint64
	handle func(any)
	logger *zap.Logger

	mu    sync.Mutex
	queue []any
	wake  chan struct{}
	done  chan struct{}
	once  sync.Once
}

func (s *subscriber) push(event any) {
	s.mu.Lock()
	s.queue = append(s.queue, event)
	s.mu.Unlock()
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *subscriber) pop() (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queue) == 0 {
		return nil, false
	}
	ev := s.queue[0]
	s.queue[0] = nil
	s.queue = s.queue[1:]
	return ev, true
}

func (s *subscriber) run(wg *sync.WaitGroup) {
	defer wg.Done()
	for {
		select {
		case <-s.done:
			return
		case <-s.wake:
		}
		for {
			ev, ok := s.pop()
			if !ok {
				break
			}
			s.deliver(ev)
		}
	}
}

// deliver runs the handler. A panic is logged and the subscriber keeps
// receiving.
func (s *subscriber) deliver(ev any) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("eventbus.handler_panicked",
				zap.String("event_type", reflect.TypeOf(ev).String()),
				zap.Uint64("subscriber_id", s.id),
				zap.Any("panic", r),
				zap.Stack("stack"))
		}
	}()
	s.handle(ev)
}

func (s *subscriber) stop() {
	s.once.Do(func() { close(s.done) })
}

// Subscribe registers fn for events of type T and returns a function that
// removes the subscription.
func Subscribe[T any](b *Bus, fn func(T)) (unsubscribe func()) {
	t := reflect.TypeFor[T]()

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return func() {}
	}

	b.nextID++
	sub := &subscriber{
		id:     b.nextID,
		handle: func(ev any) { fn(ev.(T)) },
		logger: b.logger,
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	b.subs[t] = append(b.subs[t], sub)
	b.wg.Add(1)
	go sub.run(&b.wg)

	return func() { b.remove(t, sub.id) }
}

func (b *Bus) remove(t reflect.Type, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs := b.subs[t]
	for i, s := range subs {
		if s.id == id {
			s.stop()
			b.subs[t] = append(subs[:i:i], subs[i+1:]...)
			return
		}
	}
}

// Publish queues event for every subscriber of its type and returns immediately.
func (b *Bus) Publish(event any) {
	if event == nil {
		return
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, s := range b.subs[reflect.TypeOf(event)] {
		s.push(event)
	}
}

// PublishSync invokes every subscriber of the event's type on the caller's goroutine.
func (b *Bus) PublishSync(event any) {
	if event == nil {
		return
	}
	b.mu.RLock()
	subs := append([]*subscriber(nil), b.subs[reflect.TypeOf(event)]...)
	b.mu.RUnlock()
	for _, s := range subs {
		s.deliver(event)
	}
}

// HasSubscribers reports whether anything listens for events shaped like event.
func (b *Bus) HasSubscribers(event any) bool {
	return b.SubscriberCount(event) > 0
}

// SubscriberCount returns the number of subscribers for the type of event.
func (b *Bus) SubscriberCount(event any) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[reflect.TypeOf(event)])
}

// Close stops every subscriber goroutine. Undelivered events are dropped.
func (b *Bus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	for _, subs := range b.subs {
		for _, s := range subs {
			s.stop()
		}
	}
	b.subs = make(map[reflect.Type][]*subscriber)
	b.mu.Unlock()
	b.wg.Wait()
}
