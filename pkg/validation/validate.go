package validation

import (
	"fmt"
	"strings"
	"sync"

	"anonchat/pkg/models"
)

// Rules controls mutation validation. Set once at startup.
type Rules struct {
	MaxContentLen  int
	MaxTitleLen    int
	MaxUsernameLen int
	MinPasswordLen int
}

var (
	mu    sync.RWMutex
	rules = Rules{MaxContentLen: 4096, MaxTitleLen: 256, MaxUsernameLen: 32, MinPasswordLen: 8}
)

// SetRules replaces the active rules. Zero fields keep their defaults.
func SetRules(r Rules) {
	mu.Lock()
	defer mu.Unlock()
	if r.MaxContentLen > 0 {
		rules.MaxContentLen = r.MaxContentLen
	}
	if r.MaxTitleLen > 0 {
		rules.MaxTitleLen = r.MaxTitleLen
	}
	if r.MaxUsernameLen > 0 {
		rules.MaxUsernameLen = r.MaxUsernameLen
	}
	if r.MinPasswordLen > 0 {
		rules.MinPasswordLen = r.MinPasswordLen
	}
}

func active() Rules {
	mu.RLock()
	defer mu.RUnlock()
	return rules
}

// ValidateMessage checks a message before it enters the ingest pipeline.
func ValidateMessage(m models.Message) error {
	r := active()
	if strings.TrimSpace(m.Conversation) == "" {
		return fmt.Errorf("conversation required")
	}
	if !m.Deleted && strings.TrimSpace(m.Content) == "" {
		return fmt.Errorf("content required")
	}
	if len(m.Content) > r.MaxContentLen {
		return fmt.Errorf("content exceeds %d bytes", r.MaxContentLen)
	}
	return nil
}

// ValidateConversation checks conversation metadata.
func ValidateConversation(c models.Conversation) error {
	r := active()
	switch c.Kind {
	case models.KindGroup, models.KindChannel, models.KindDM:
	default:
		return fmt.Errorf("unknown conversation kind: %s", c.Kind)
	}
	if len(c.Title) > r.MaxTitleLen {
		return fmt.Errorf("title exceeds %d bytes", r.MaxTitleLen)
	}
	if c.Kind == models.KindDM && len(c.Members) != 2 {
		return fmt.Errorf("dm conversations need exactly two members")
	}
	return nil
}

// ValidateUsername checks a registration username.
func ValidateUsername(name string) error {
	r := active()
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("username required")
	}
	if len(name) > r.MaxUsernameLen {
		return fmt.Errorf("username exceeds %d chars", r.MaxUsernameLen)
	}
	for _, c := range name {
		if !(c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c == '_' || c == '-') {
			return fmt.Errorf("username has invalid character %q", c)
		}
	}
	return nil
}

// ValidatePassword enforces the minimum password length only; anything
// stronger is the client's problem.
func ValidatePassword(pw string) error {
	r := active()
	if len(pw) < r.MinPasswordLen {
		return fmt.Errorf("password shorter than %d chars", r.MinPasswordLen)
	}
	return nil
}
