package devmgmt

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-device/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-device/internal/resource"
)

// published is one message seen by fakeTransport.
type published struct {
	topic    string
	payload  []byte
	retained bool
}

// fakeTransport records publishes and lets tests inject inbound messages.
type fakeTransport struct {
	mu         sync.Mutex
	published  []published
	handlers   map[string]mqtt.MessageHandler
	connected  bool
	closed     bool
	publishErr error
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{handlers: make(map[string]mqtt.MessageHandler), connected: true}
}

func (f *fakeTransport) Publish(topic string, payload []byte, _ byte, retained bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.publishErr != nil {
		return f.publishErr
	}
	f.published = append(f.published, published{topic: topic, payload: payload, retained: retained})
	return nil
}

func (f *fakeTransport) Subscribe(topic string, _ byte, handler mqtt.MessageHandler) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[topic] = handler
	return nil
}

func (f *fakeTransport) Unsubscribe(topic string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.handlers, topic)
	return nil
}

func (f *fakeTransport) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	f.connected = false
	return nil
}

func (f *fakeTransport) deliver(t *testing.T, topic string, payload any) error {
	t.Helper()
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	f.mu.Lock()
	var handler mqtt.MessageHandler
	for filter, h := range f.handlers {
		if topicMatches(filter, topic) {
			handler = h
		}
	}
	f.mu.Unlock()

	if handler == nil {
		t.Fatalf("no subscription matches %s", topic)
	}
	return handler(topic, data)
}

func (f *fakeTransport) messages(prefix string) []published {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []published
	for _, p := range f.published {
		if strings.HasPrefix(p.topic, prefix) {
			out = append(out, p)
		}
	}
	return out
}

func topicMatches(filter, topic string) bool {
	fp := strings.Split(filter, "/")
	tp := strings.Split(topic, "/")
	if len(fp) != len(tp) {
		return false
	}
	for i := range fp {
		if fp[i] != "+" && fp[i] != tp[i] {
			return false
		}
	}
	return true
}

// statusLog collects delivery statuses reported to resources.
type statusLog struct {
	mu      sync.Mutex
	entries []string
}

func (l *statusLog) record(res *resource.Resource, status resource.DeliveryStatus, kind resource.MessageKind) {
	l.mu.Lock()
	l.entries = append(l.entries, res.Path().String()+" "+kind.String()+" "+status.String())
	l.mu.Unlock()
}

func (l *statusLog) has(entry string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, e := range l.entries {
		if e == entry {
			return true
		}
	}
	return false
}

func (l *statusLog) list() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.entries...)
}

var testTopics = mqtt.Topics{Root: "graylogic/dm", Endpoint: "dev-test"}

type fixture struct {
	client    *Client
	registry  *resource.Registry
	transport *fakeTransport
	statuses  *statusLog
	counter   *resource.Resource
	pattern   *resource.Resource
	blink     *resource.Resource
	pendings  chan *resource.Pending
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		registry:  resource.NewRegistry(),
		transport: newFakeTransport(),
		statuses:  &statusLog{},
		pendings:  make(chan *resource.Pending, 4),
	}

	var err error
	f.counter, err = f.registry.Create(resource.Spec{
		Path:       resource.Path{Object: 3200, Instance: 0, Resource: 5501},
		Name:       "button",
		Type:       resource.Integer,
		Operations: resource.ReadOnly,
		Observable: true,
		OnStatus:   f.statuses.record,
	})
	if err != nil {
		t.Fatal(err)
	}
	f.pattern, err = f.registry.Create(resource.Spec{
		Path:       resource.Path{Object: 3201, Instance: 0, Resource: 5853},
		Name:       "pattern",
		Type:       resource.String,
		Operations: resource.ReadWrite,
		Initial:    "500:500",
		OnStatus:   f.statuses.record,
	})
	if err != nil {
		t.Fatal(err)
	}
	f.blink, err = f.registry.Create(resource.Spec{
		Path:       resource.Path{Object: 3201, Instance: 0, Resource: 5850},
		Name:       "blink",
		Type:       resource.String,
		Operations: resource.ExecuteOnly,
		Delayed:    true,
		OnExecute: func(req *resource.ExecuteRequest) *resource.Pending {
			p := req.Defer()
			f.pendings <- p
			return p
		},
		OnStatus: f.statuses.record,
	})
	if err != nil {
		t.Fatal(err)
	}

	f.client = New(Config{Topics: testTopics, QueueSize: 4}, f.registry,
		func(mqtt.Topics) (Transport, error) { return f.transport, nil })
	return f
}

func (f *fixture) register(t *testing.T) {
	t.Helper()
	if err := f.client.RegisterAndConnect(context.Background()); err != nil {
		t.Fatalf("RegisterAndConnect() error = %v", err)
	}
	t.Cleanup(func() { f.client.Close() }) //nolint:errcheck // test cleanup
}

func (f *fixture) lastResponse(t *testing.T, id string) Response {
	t.Helper()
	msgs := f.transport.messages(testTopics.Response(id))
	if len(msgs) == 0 {
		t.Fatalf("no response published for %s", id)
	}
	var resp Response
	if err := json.Unmarshal(msgs[len(msgs)-1].payload, &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	return resp
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestRegisterAndConnect(t *testing.T) {
	f := newFixture(t)

	if f.client.IsRegisterCalled() {
		t.Fatal("IsRegisterCalled() = true before registering")
	}
	f.register(t)

	if !f.client.IsRegisterCalled() {
		t.Fatal("IsRegisterCalled() = false after registering")
	}

	msgs := f.transport.messages(testTopics.Register())
	if len(msgs) != 1 || !msgs[0].retained {
		t.Fatalf("register messages = %+v, want one retained", msgs)
	}

	var reg registerMessage
	if err := json.Unmarshal(msgs[0].payload, &reg); err != nil {
		t.Fatal(err)
	}
	if reg.Endpoint != "dev-test" || reg.Lifetime != DefaultLifetime {
		t.Errorf("register = %+v", reg)
	}
	if len(reg.Resources) != 3 {
		t.Fatalf("resources = %d, want 3", len(reg.Resources))
	}
	first := reg.Resources[0]
	if first.Path != "3200/0/5501" || first.Type != "integer" || first.Operations != "GET" || !first.Observable {
		t.Errorf("first descriptor = %+v", first)
	}
	if !reg.Resources[2].Delayed {
		t.Error("blink descriptor should be delayed")
	}

	if err := f.client.RegisterAndConnect(context.Background()); !errors.Is(err, ErrAlreadyRegistered) {
		t.Errorf("second RegisterAndConnect() error = %v, want ErrAlreadyRegistered", err)
	}
}

func TestRegisterAndConnect_Errors(t *testing.T) {
	t.Run("empty registry", func(t *testing.T) {
		c := New(Config{Topics: testTopics}, resource.NewRegistry(),
			func(mqtt.Topics) (Transport, error) { return newFakeTransport(), nil })
		if err := c.RegisterAndConnect(context.Background()); !errors.Is(err, ErrNoResources) {
			t.Errorf("error = %v, want ErrNoResources", err)
		}
	})

	t.Run("dial failure", func(t *testing.T) {
		f := newFixture(t)
		f.client.dial = func(mqtt.Topics) (Transport, error) { return nil, mqtt.ErrConnectionFailed }
		err := f.client.RegisterAndConnect(context.Background())
		if !errors.Is(err, mqtt.ErrConnectionFailed) {
			t.Errorf("error = %v, want ErrConnectionFailed", err)
		}
		if f.client.IsRegisterCalled() {
			t.Error("IsRegisterCalled() = true after failed registration")
		}
	})

	t.Run("publish failure closes transport", func(t *testing.T) {
		f := newFixture(t)
		f.transport.publishErr = mqtt.ErrPublishFailed
		if err := f.client.RegisterAndConnect(context.Background()); !errors.Is(err, mqtt.ErrPublishFailed) {
			t.Errorf("error = %v, want ErrPublishFailed", err)
		}
		if !f.transport.closed {
			t.Error("transport not closed after failed registration")
		}
	})

	t.Run("cancelled context", func(t *testing.T) {
		f := newFixture(t)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		if err := f.client.RegisterAndConnect(ctx); !errors.Is(err, context.Canceled) {
			t.Errorf("error = %v, want context.Canceled", err)
		}
	})
}

func TestClose(t *testing.T) {
	f := newFixture(t)
	f.register(t)

	if err := f.client.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if f.client.IsRegisterCalled() {
		t.Error("IsRegisterCalled() = true after Close")
	}
	if !f.transport.closed {
		t.Error("transport not closed")
	}
	if len(f.transport.messages(testTopics.Deregister())) != 1 {
		t.Error("deregister message not published")
	}

	// Idempotent.
	if err := f.client.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
}

func TestDispatch_Get(t *testing.T) {
	f := newFixture(t)
	f.register(t)

	if err := f.counter.SetInt(7); err != nil {
		t.Fatal(err)
	}
	if err := f.transport.deliver(t, testTopics.Request("3200/0/5501"), Request{ID: "r1", Method: MethodGet}); err != nil {
		t.Fatal(err)
	}

	resp := f.lastResponse(t, "r1")
	if resp.Code != CodeContent {
		t.Errorf("code = %d, want %d", resp.Code, CodeContent)
	}
	if v, ok := resp.Value.(float64); !ok || v != 7 {
		t.Errorf("value = %v, want 7", resp.Value)
	}
	if !f.statuses.has("3200/0/5501 response sent") {
		t.Errorf("statuses = %v, want response sent", f.statuses.list())
	}
}

func TestDispatch_Put(t *testing.T) {
	f := newFixture(t)
	f.register(t)

	tests := []struct {
		name     string
		path     string
		value    string
		wantCode int
	}{
		{"writable", "3201/0/5853", "100:100", CodeChanged},
		{"read only", "3200/0/5501", "5", CodeMethodNotAllowed},
		{"execute only", "3201/0/5850", "x", CodeMethodNotAllowed},
		{"unknown path", "9999/0/1", "x", CodeNotFound},
	}

	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id := "put-" + string(rune('a'+i))
			if err := f.transport.deliver(t, testTopics.Request(tt.path), Request{ID: id, Method: MethodPut, Value: tt.value}); err != nil {
				t.Fatal(err)
			}
			if resp := f.lastResponse(t, id); resp.Code != tt.wantCode {
				t.Errorf("code = %d, want %d (%s)", resp.Code, tt.wantCode, resp.Message)
			}
		})
	}

	if f.pattern.Text() != "100:100" {
		t.Errorf("pattern = %q, want 100:100", f.pattern.Text())
	}
}

func TestDispatch_UnknownMethod(t *testing.T) {
	f := newFixture(t)
	f.register(t)

	if err := f.transport.deliver(t, testTopics.Request("3200/0/5501"), Request{ID: "m1", Method: "DELETE"}); err != nil {
		t.Fatal(err)
	}
	if resp := f.lastResponse(t, "m1"); resp.Code != CodeBadRequest {
		t.Errorf("code = %d, want %d", resp.Code, CodeBadRequest)
	}
}

func TestDispatch_InvalidPayload(t *testing.T) {
	f := newFixture(t)
	f.register(t)

	if err := f.transport.deliver(t, testTopics.Request("3200/0/5501"), Request{Method: MethodGet}); !errors.Is(err, ErrInvalidRequest) {
		t.Errorf("missing id error = %v, want ErrInvalidRequest", err)
	}
	if err := f.client.handleRequestMessage(testTopics.Request("3200/0/5501"), []byte("{not json")); !errors.Is(err, ErrInvalidRequest) {
		t.Errorf("bad json error = %v, want ErrInvalidRequest", err)
	}
	if err := f.client.handleRequestMessage("other/topic", []byte(`{"id":"x"}`)); !errors.Is(err, ErrInvalidRequest) {
		t.Errorf("bad topic error = %v, want ErrInvalidRequest", err)
	}
}

func TestDispatch_DelayedPost(t *testing.T) {
	f := newFixture(t)
	f.register(t)

	if err := f.transport.deliver(t, testTopics.Request("3201/0/5850"), Request{ID: "b1", Method: MethodPost}); err != nil {
		t.Fatal(err)
	}

	if n := len(f.transport.messages(testTopics.Response("b1"))); n != 0 {
		t.Fatalf("response published before completion (%d messages)", n)
	}

	pending := <-f.pendings
	if pending == nil {
		t.Fatal("execute handler got nil pending for delayed resource")
	}
	if err := pending.Resolve("done"); err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if err := pending.Resolve("again"); !errors.Is(err, resource.ErrAlreadyResolved) {
		t.Errorf("second Resolve() error = %v, want ErrAlreadyResolved", err)
	}

	msgs := f.transport.messages(testTopics.Response("b1"))
	if len(msgs) != 1 {
		t.Fatalf("responses = %d, want exactly 1", len(msgs))
	}
	resp := f.lastResponse(t, "b1")
	if resp.Code != CodeChanged || resp.Value != "done" {
		t.Errorf("response = %+v, want 204 with value done", resp)
	}
}

func TestDispatch_ImmediatePost(t *testing.T) {
	f := newFixture(t)
	executed := 0
	if _, err := f.registry.Create(resource.Spec{
		Path:       resource.Path{Object: 5000, Instance: 0, Resource: 1},
		Name:       "unregister",
		Type:       resource.String,
		Operations: resource.ExecuteOnly,
		OnExecute: func(req *resource.ExecuteRequest) *resource.Pending {
			executed++
			return req.Defer()
		},
	}); err != nil {
		t.Fatal(err)
	}
	f.register(t)

	if err := f.transport.deliver(t, testTopics.Request("5000/0/1"), Request{ID: "u1", Method: MethodPost}); err != nil {
		t.Fatal(err)
	}
	if executed != 1 {
		t.Errorf("executed = %d, want 1", executed)
	}
	if resp := f.lastResponse(t, "u1"); resp.Code != CodeChanged {
		t.Errorf("code = %d, want %d", resp.Code, CodeChanged)
	}
}

func TestDispatch_Observe(t *testing.T) {
	f := newFixture(t)
	f.register(t)
	path := f.counter.Path()

	if err := f.transport.deliver(t, testTopics.Request("3200/0/5501"), Request{ID: "o1", Method: MethodObserve}); err != nil {
		t.Fatal(err)
	}
	if resp := f.lastResponse(t, "o1"); resp.Code != CodeContent {
		t.Errorf("observe code = %d, want %d", resp.Code, CodeContent)
	}
	if !f.client.Observed(path) {
		t.Error("Observed() = false after OBSERVE")
	}
	if !f.statuses.has("3200/0/5501 observation subscribed") {
		t.Errorf("statuses = %v, want observation subscribed", f.statuses.list())
	}

	if err := f.transport.deliver(t, testTopics.Request("3200/0/5501"), Request{ID: "o2", Method: MethodCancelObserve}); err != nil {
		t.Fatal(err)
	}
	if f.client.Observed(path) {
		t.Error("Observed() = true after CANCEL_OBSERVE")
	}
	if !f.statuses.has("3200/0/5501 observation unsubscribed") {
		t.Errorf("statuses = %v, want observation unsubscribed", f.statuses.list())
	}

	// Pattern is not observable.
	if err := f.transport.deliver(t, testTopics.Request("3201/0/5853"), Request{ID: "o3", Method: MethodObserve}); err != nil {
		t.Fatal(err)
	}
	if resp := f.lastResponse(t, "o3"); resp.Code != CodeMethodNotAllowed {
		t.Errorf("observe non-observable code = %d, want %d", resp.Code, CodeMethodNotAllowed)
	}
}

func TestNotifications(t *testing.T) {
	f := newFixture(t)
	f.register(t)

	if err := f.counter.SetInt(1); err != nil {
		t.Fatal(err)
	}

	notifyTopic := testTopics.Notify("3200/0/5501")
	waitFor(t, func() bool { return len(f.transport.messages(notifyTopic)) == 1 })
	waitFor(t, func() bool { return f.statuses.has("3200/0/5501 notification sent") })

	entries := f.statuses.list()
	if entries[0] != "3200/0/5501 notification queued" {
		t.Errorf("first status = %q, want queued", entries[0])
	}

	var n notifyMessage
	if err := json.Unmarshal(f.transport.messages(notifyTopic)[0].payload, &n); err != nil {
		t.Fatal(err)
	}
	if n.Path != "3200/0/5501" || n.Value != float64(1) || n.Seq == 0 {
		t.Errorf("notification = %+v", n)
	}

	if err := f.transport.deliver(t, testTopics.Ack(), ackMessage{Seq: n.Seq, Path: n.Path, Status: AckDelivered}); err != nil {
		t.Fatal(err)
	}
	if !f.statuses.has("3200/0/5501 notification delivered") {
		t.Errorf("statuses = %v, want delivered", f.statuses.list())
	}

	// Non-observable resources never notify.
	if err := f.pattern.SetText("1:1"); err != nil {
		t.Fatal(err)
	}
	time.Sleep(20 * time.Millisecond)
	if len(f.transport.messages(testTopics.Notify("3201/0/5853"))) != 0 {
		t.Error("non-observable resource produced a notification")
	}
}

func TestNotifications_Rejected(t *testing.T) {
	f := newFixture(t)
	f.register(t)

	if err := f.counter.SetInt(2); err != nil {
		t.Fatal(err)
	}
	notifyTopic := testTopics.Notify("3200/0/5501")
	waitFor(t, func() bool { return f.statuses.has("3200/0/5501 notification sent") })

	var n notifyMessage
	if err := json.Unmarshal(f.transport.messages(notifyTopic)[0].payload, &n); err != nil {
		t.Fatal(err)
	}
	if err := f.transport.deliver(t, testTopics.Ack(), ackMessage{Seq: n.Seq, Status: AckRejected}); err != nil {
		t.Fatal(err)
	}
	if !f.statuses.has("3200/0/5501 notification rejected") {
		t.Errorf("statuses = %v, want rejected", f.statuses.list())
	}

	if err := f.transport.deliver(t, testTopics.Ack(), ackMessage{Seq: 9999, Status: AckDelivered}); err != nil {
		t.Errorf("ack for unknown seq error = %v, want nil", err)
	}
}

func TestNotifications_SendFailed(t *testing.T) {
	f := newFixture(t)
	f.register(t)

	f.transport.mu.Lock()
	f.transport.publishErr = mqtt.ErrNotConnected
	f.transport.mu.Unlock()

	if err := f.counter.SetInt(3); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool { return f.statuses.has("3200/0/5501 notification send_failed") })
}

func TestNotifications_QueueFull(t *testing.T) {
	f := newFixture(t)

	// Block the sender so the queue fills.
	block := make(chan struct{})
	blocking := &blockingTransport{fakeTransport: f.transport, block: block}
	f.client.dial = func(mqtt.Topics) (Transport, error) { return blocking, nil }
	f.register(t)
	defer close(block)

	for i := 0; i < 10; i++ {
		if err := f.counter.SetInt(int64(i)); err != nil {
			t.Fatal(err)
		}
	}
	if !f.statuses.has("3200/0/5501 notification resend_queue_full") {
		t.Errorf("statuses = %v, want resend_queue_full", f.statuses.list())
	}
}

// blockingTransport holds notification publishes until block is closed.
type blockingTransport struct {
	*fakeTransport
	block chan struct{}
}

func (b *blockingTransport) Publish(topic string, payload []byte, qos byte, retained bool) error {
	if strings.Contains(topic, "/notify/") {
		<-b.block
	}
	return b.fakeTransport.Publish(topic, payload, qos, retained)
}

func TestClose_DrainsQueuedNotifications(t *testing.T) {
	f := newFixture(t)

	block := make(chan struct{})
	blocking := &blockingTransport{fakeTransport: f.transport, block: block}
	f.client.dial = func(mqtt.Topics) (Transport, error) { return blocking, nil }
	f.register(t)

	for i := 0; i < 4; i++ {
		if err := f.counter.SetInt(int64(i)); err != nil {
			t.Fatal(err)
		}
	}

	closed := make(chan error, 1)
	go func() { closed <- f.client.Close() }()
	waitFor(t, func() bool { return !f.client.IsRegisterCalled() })
	time.Sleep(20 * time.Millisecond)
	close(block)

	select {
	case err := <-closed:
		if err != nil {
			t.Fatalf("Close() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Close() did not return")
	}

	// Changes after Close are not queued.
	if err := f.counter.SetInt(99); err != nil {
		t.Fatal(err)
	}

	var queued, finished int
	for _, e := range f.statuses.list() {
		switch e {
		case "3200/0/5501 notification queued":
			queued++
		case "3200/0/5501 notification sent", "3200/0/5501 notification send_failed":
			finished++
		}
	}
	if queued == 0 || queued != finished {
		t.Errorf("queued = %d, sent or failed = %d; statuses = %v", queued, finished, f.statuses.list())
	}
	if !f.statuses.has("3200/0/5501 notification send_failed") {
		t.Errorf("statuses = %v, want send_failed for undelivered notifications", f.statuses.list())
	}
}

func TestNotifications_BuildError(t *testing.T) {
	f := newFixture(t)
	big, err := f.registry.Create(resource.Spec{
		Path:       resource.Path{Object: 3341, Instance: 0, Resource: 5527},
		Name:       "text",
		Type:       resource.String,
		Operations: resource.ReadOnly,
		Observable: true,
		OnStatus:   f.statuses.record,
	})
	if err != nil {
		t.Fatal(err)
	}
	f.register(t)

	if err := big.SetText(strings.Repeat("x", maxNotifyPayload+1)); err != nil {
		t.Fatal(err)
	}
	if !f.statuses.has("3341/0/5527 notification build_error") {
		t.Errorf("statuses = %v, want build_error", f.statuses.list())
	}
}

func TestNotifications_NotRegistered(t *testing.T) {
	f := newFixture(t)

	if err := f.counter.SetInt(1); err != nil {
		t.Fatal(err)
	}
	if len(f.statuses.list()) != 0 {
		t.Errorf("statuses before registration = %v, want none", f.statuses.list())
	}
}

func TestExecutor(t *testing.T) {
	f := newFixture(t)

	var mu sync.Mutex
	var queued []func()
	f.client.SetExecutor(func(fn func()) {
		mu.Lock()
		queued = append(queued, fn)
		mu.Unlock()
	})
	f.register(t)

	if err := f.transport.deliver(t, testTopics.Request("3201/0/5853"), Request{ID: "e1", Method: MethodGet}); err != nil {
		t.Fatal(err)
	}
	if n := len(f.transport.messages(testTopics.Response("e1"))); n != 0 {
		t.Fatal("request ran before executor")
	}

	mu.Lock()
	work := queued
	queued = nil
	mu.Unlock()
	for _, fn := range work {
		fn()
	}

	if resp := f.lastResponse(t, "e1"); resp.Code != CodeContent || resp.Value != "500:500" {
		t.Errorf("response = %+v", resp)
	}
}
