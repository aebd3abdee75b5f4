package server

import (
	"sync"

	"github.com/YuminosukeSato/linfit/training"
)

const subscriberBuffer = 256

// message is one websocket frame.
type message struct {
	Type   string               `json:"type"`
	State  training.State       `json:"state"`
	Epoch  *training.EpochState `json:"epoch,omitempty"`
	Result *training.ResultJSON `json:"result,omitempty"`
	Error  string               `json:"error,omitempty"`
}

// hub fans a session's epoch events out to websocket subscribers. It is
// installed as a session Observer, so publish must never block: a
// subscriber that falls a full buffer behind is disconnected.
type hub struct {
	mu     sync.Mutex
	subs   map[chan message]struct{}
	result *training.ResultJSON

	// state reports the session state stamped on epoch frames.
	state func() training.State
}

func newHub(state func() training.State) *hub {
	return &hub{subs: make(map[chan message]struct{}), state: state}
}

func (h *hub) observe(e training.EpochState) {
	msg := message{Type: "epoch", State: h.state(), Epoch: &e}
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs {
		select {
		case ch <- msg:
		default:
			delete(h.subs, ch)
			close(ch)
		}
	}
}

// subscribe returns a channel of epoch messages that is closed when the
// run finishes, plus a function releasing it. When the run has already
// finished the channel is returned closed.
func (h *hub) subscribe() (<-chan message, func()) {
	ch := make(chan message, subscriberBuffer)
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.result != nil {
		close(ch)
		return ch, func() {}
	}
	h.subs[ch] = struct{}{}
	return ch, func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if _, ok := h.subs[ch]; ok {
			delete(h.subs, ch)
			close(ch)
		}
	}
}

// finish records the result and closes every subscriber.
func (h *hub) finish(res training.Result) {
	j := res.JSON()
	h.mu.Lock()
	defer h.mu.Unlock()
	h.result = &j
	for ch := range h.subs {
		close(ch)
	}
	h.subs = make(map[chan message]struct{})
}

// final returns the recorded result, if any.
func (h *hub) final() (*training.ResultJSON, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.result, h.result != nil
}
