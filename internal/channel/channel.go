package channel

import (
	"fmt"
	"log"
	"sort"
	"sync"

	"github.com/nats-io/nats.go"

	"github.com/mobitrack/fleet-monitor/internal/types"
)

// SubjectPositions is the subject root for position update messages. Each
// vehicle publishes under its own subject below this root.
const SubjectPositions = "fleet.positions"

// SubjectForVehicle returns the push subject carrying updates for one vehicle.
func SubjectForVehicle(vehicleID string) string {
	return SubjectPositions + "." + vehicleID
}

// subjectAllVehicles matches every per-vehicle subject.
const subjectAllVehicles = SubjectPositions + ".>"

// Subscription is a live server-side subscription handle
type Subscription interface {
	Unsubscribe() error
}

// Conn abstracts the underlying push connection so unit tests can run
// against a fake
type Conn interface {
	Subscribe(subject string, handler func(data []byte)) (Subscription, error)
	Publish(subject string, data []byte) error
	Close()
}

// Dialer establishes a Conn; onLost is invoked once when the connection
// drops for any reason other than an explicit Disconnect
type Dialer func(url string, onLost func(error)) (Conn, error)

// Client manages one logical push connection and fans typed position
// messages out to registered listeners. It carries no business state: the
// subscription set is cleared on every disconnect and callers decide the
// reconnection policy.
type Client struct {
	url  string
	dial Dialer

	mu      sync.Mutex
	conn    Conn
	desired map[string]struct{}
	active  map[string]Subscription
	all     bool
	allSub  Subscription

	nextListener int
	msgListeners map[int]func(types.PositionMessage)
	decodeErrLs  map[int]func()
	connectLs    map[int]func()
	disconnectLs map[int]func()
}

// New creates a channel client for the given NATS URL
func New(url string) *Client {
	return NewWithDialer(url, dialNATS)
}

// NewWithDialer creates a channel client with a custom dialer (useful for testing)
func NewWithDialer(url string, dial Dialer) *Client {
	return &Client{
		url:          url,
		dial:         dial,
		desired:      make(map[string]struct{}),
		active:       make(map[string]Subscription),
		msgListeners: make(map[int]func(types.PositionMessage)),
		decodeErrLs:  make(map[int]func()),
		connectLs:    make(map[int]func()),
		disconnectLs: make(map[int]func()),
	}
}

// Connect establishes the push connection and applies any subscriptions
// requested before the connection was up. Calling Connect on a connected
// client is a no-op.
func (c *Client) Connect() error {
	c.mu.Lock()
	if c.conn != nil {
		c.mu.Unlock()
		return nil
	}

	conn, err := c.dial(c.url, c.handleConnLost)
	if err != nil {
		c.mu.Unlock()
		return fmt.Errorf("failed to connect push channel: %w", err)
	}
	c.conn = conn

	// Apply the desired set accumulated before the connection existed.
	for id := range c.desired {
		if _, ok := c.active[id]; ok {
			continue
		}
		sub, err := conn.Subscribe(SubjectForVehicle(id), c.dispatch)
		if err != nil {
			log.Printf("Warning: failed to subscribe vehicle %s: %v", id, err)
			continue
		}
		c.active[id] = sub
	}
	if c.all && c.allSub == nil {
		sub, err := conn.Subscribe(subjectAllVehicles, c.dispatch)
		if err != nil {
			log.Printf("Warning: failed to subscribe all vehicles: %v", err)
		} else {
			c.allSub = sub
		}
	}

	listeners := copyListeners(c.connectLs)
	c.mu.Unlock()

	for _, fn := range listeners {
		fn()
	}
	return nil
}

// Disconnect tears down the connection and clears the subscription set.
// Calling Disconnect on a disconnected client is a no-op.
func (c *Client) Disconnect() {
	c.mu.Lock()
	if c.conn == nil {
		c.mu.Unlock()
		return
	}
	conn := c.conn
	c.conn = nil
	c.clearSubscriptionsLocked()
	listeners := copyListeners(c.disconnectLs)
	c.mu.Unlock()

	conn.Close()
	for _, fn := range listeners {
		fn()
	}
}

// handleConnLost reacts to an unexpected connection loss. The subscription
// set is forgotten; callers re-subscribe on reconnect.
func (c *Client) handleConnLost(err error) {
	c.mu.Lock()
	if c.conn == nil {
		// Explicit Disconnect already ran.
		c.mu.Unlock()
		return
	}
	c.conn = nil
	c.clearSubscriptionsLocked()
	listeners := copyListeners(c.disconnectLs)
	c.mu.Unlock()

	if err != nil {
		log.Printf("Push channel connection lost: %v", err)
	} else {
		log.Printf("Push channel connection lost")
	}
	for _, fn := range listeners {
		fn()
	}
}

func (c *Client) clearSubscriptionsLocked() {
	c.desired = make(map[string]struct{})
	c.active = make(map[string]Subscription)
	c.all = false
	c.allSub = nil
}

// SubscribeVehicles adds vehicle identities to the server-side interest
// set. Identities already subscribed are skipped. Legal before Connect:
// the subscriptions are applied once the connection is up.
func (c *Client) SubscribeVehicles(ids []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := c.desired[id]; ok {
			continue
		}
		c.desired[id] = struct{}{}
		if c.conn == nil {
			continue
		}
		sub, err := c.conn.Subscribe(SubjectForVehicle(id), c.dispatch)
		if err != nil {
			delete(c.desired, id)
			return fmt.Errorf("failed to subscribe vehicle %s: %w", id, err)
		}
		c.active[id] = sub
	}
	return nil
}

// UnsubscribeVehicles removes vehicle identities from the interest set.
// Identities not subscribed are skipped.
func (c *Client) UnsubscribeVehicles(ids []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, id := range ids {
		if _, ok := c.desired[id]; !ok {
			continue
		}
		delete(c.desired, id)
		if sub, ok := c.active[id]; ok {
			delete(c.active, id)
			if err := sub.Unsubscribe(); err != nil {
				return fmt.Errorf("failed to unsubscribe vehicle %s: %w", id, err)
			}
		}
	}
	return nil
}

// SubscribeAll delivers updates for every vehicle regardless of the
// per-vehicle interest set. Used by consumers that record the whole fleet.
func (c *Client) SubscribeAll() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.all {
		return nil
	}
	c.all = true
	if c.conn == nil {
		return nil
	}
	sub, err := c.conn.Subscribe(subjectAllVehicles, c.dispatch)
	if err != nil {
		c.all = false
		return fmt.Errorf("failed to subscribe all vehicles: %w", err)
	}
	c.allSub = sub
	return nil
}

// Subscribed returns the current interest set in sorted order.
func (c *Client) Subscribed() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	ids := make([]string, 0, len(c.desired))
	for id := range c.desired {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Connected reports whether the push connection is currently up.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// PublishPosition publishes a position update on the vehicle's subject.
// Used by the simulator and by tests; the monitoring side never publishes.
func (c *Client) PublishPosition(msg *types.PositionMessage) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()

	if conn == nil {
		return fmt.Errorf("push channel not connected")
	}
	data, err := EncodePositionMessage(msg)
	if err != nil {
		return err
	}
	if err := conn.Publish(SubjectForVehicle(msg.VehicleID), data); err != nil {
		return fmt.Errorf("failed to publish position update: %w", err)
	}
	return nil
}

// OnMessage registers a listener for decoded position updates and returns
// its unsubscribe function. Multiple concurrent listeners are supported.
func (c *Client) OnMessage(fn func(types.PositionMessage)) func() {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.nextListener
	c.nextListener++
	c.msgListeners[id] = fn
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.msgListeners, id)
	}
}

// OnDecodeError registers a listener fired once per payload that fails to
// decode.
func (c *Client) OnDecodeError(fn func()) func() {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.nextListener
	c.nextListener++
	c.decodeErrLs[id] = fn
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.decodeErrLs, id)
	}
}

// OnConnect registers a listener fired after each successful Connect.
func (c *Client) OnConnect(fn func()) func() {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.nextListener
	c.nextListener++
	c.connectLs[id] = fn
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.connectLs, id)
	}
}

// OnDisconnect registers a listener fired when the connection goes away,
// whether by explicit Disconnect or by transport failure.
func (c *Client) OnDisconnect(fn func()) func() {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.nextListener
	c.nextListener++
	c.disconnectLs[id] = fn
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.disconnectLs, id)
	}
}

// dispatch decodes a raw payload and fans it out to message listeners.
// Unknown message types are ignored; malformed payloads are logged and
// skipped, never fatal.
func (c *Client) dispatch(data []byte) {
	msg, err := DecodePositionMessage(data)
	if err != nil {
		log.Printf("Warning: dropping malformed channel message: %v", err)
		c.mu.Lock()
		listeners := copyListeners(c.decodeErrLs)
		c.mu.Unlock()
		for _, fn := range listeners {
			fn()
		}
		return
	}
	if msg == nil {
		return
	}

	c.mu.Lock()
	listeners := make([]func(types.PositionMessage), 0, len(c.msgListeners))
	for _, fn := range c.msgListeners {
		listeners = append(listeners, fn)
	}
	c.mu.Unlock()

	for _, fn := range listeners {
		fn(*msg)
	}
}

func copyListeners(m map[int]func()) []func() {
	out := make([]func(), 0, len(m))
	for _, fn := range m {
		out = append(out, fn)
	}
	return out
}

// natsConn adapts *nats.Conn to the Conn interface.
type natsConn struct {
	nc *nats.Conn
}

func dialNATS(url string, onLost func(error)) (Conn, error) {
	nc, err := nats.Connect(url,
		nats.NoReconnect(),
		nats.ClosedHandler(func(conn *nats.Conn) {
			onLost(conn.LastError())
		}),
	)
	if err != nil {
		return nil, err
	}
	return &natsConn{nc: nc}, nil
}

func (c *natsConn) Subscribe(subject string, handler func(data []byte)) (Subscription, error) {
	return c.nc.Subscribe(subject, func(m *nats.Msg) {
		handler(m.Data)
	})
}

func (c *natsConn) Publish(subject string, data []byte) error {
	return c.nc.Publish(subject, data)
}

func (c *natsConn) Close() {
	c.nc.Close()
}
