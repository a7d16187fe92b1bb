package gateway

import (
	"fmt"
	"sort"
	"strings"
)

// Messenger defines the interface for communication gateways (Telegram, Discord, etc.)
type Messenger interface {
	// Start begins the message listening loop
	Start() error
	// Send sends a message to a specific chat
	Send(chatID string, text string) error
	// Stop gracefully shuts down the gateway
	Stop() error
}

// Chat IDs carry a transport prefix so one store can hold chats from every
// gateway, e.g. "tg:12345" or "dc:98765".
const (
	PrefixTelegram = "tg"
	PrefixDiscord  = "dc"
)

func qualify(prefix, id string) string {
	return prefix + ":" + id
}

func splitChatID(chatID string) (string, string, bool) {
	prefix, id, ok := strings.Cut(chatID, ":")
	if !ok || id == "" {
		return "", "", false
	}
	return prefix, id, true
}

// Router delivers outbound messages to the gateway owning the chat prefix.
type Router struct {
	routes map[string]Messenger
}

func NewRouter() *Router {
	return &Router{routes: make(map[string]Messenger)}
}

func (r *Router) Add(prefix string, m Messenger) {
	r.routes[prefix] = m
}

func (r *Router) Send(chatID string, text string) error {
	prefix, _, ok := splitChatID(chatID)
	if !ok {
		return fmt.Errorf("invalid chat ID: %s", chatID)
	}
	m, ok := r.routes[prefix]
	if !ok {
		return fmt.Errorf("no gateway for chat %s", chatID)
	}
	return m.Send(chatID, text)
}

func (r *Router) Len() int {
	return len(r.routes)
}

// Messengers returns the registered gateways ordered by prefix.
func (r *Router) Messengers() []Messenger {
	prefixes := make([]string, 0, len(r.routes))
	for p := range r.routes {
		prefixes = append(prefixes, p)
	}
	sort.Strings(prefixes)
	out := make([]Messenger, 0, len(prefixes))
	for _, p := range prefixes {
		out = append(out, r.routes[p])
	}
	return out
}
