// Package template stores reusable message templates with {placeholder}
// substitution for account and clock bindings.
package template

import (
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Conte777/TgFleet/internal/domain"
	"github.com/Conte777/TgFleet/internal/infrastructure/storage"
)

// placeholderRe matches {name}-style variables.
var placeholderRe = regexp.MustCompile(`\{(\w+)\}`)

// Template is one stored message template.
type Template struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Content   string    `json:"content"`
	Category  string    `json:"category,omitempty"`
	UseCount  int       `json:"use_count"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// Manager is the template store.
type Manager struct {
	store *storage.Store

	mu        sync.RWMutex
	templates map[string]*Template

	now    func() time.Time
	logger zerolog.Logger
}

// NewManager loads templates from the backing store.
func NewManager(store *storage.Store, logger zerolog.Logger) (*Manager, error) {
	m := &Manager{
		store:     store,
		templates: make(map[string]*Template),
		now:       time.Now,
		logger:    logger.With().Str("component", "template_manager").Logger(),
	}
	if err := store.Load(&m.templates); err != nil {
		return nil, err
	}
	return m, nil
}

// Add stores a new template and returns its generated id.
func (m *Manager) Add(name, content, category string) (*Template, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	tpl := &Template{
		ID:        uuid.NewString(),
		Name:      name,
		Content:   content,
		Category:  category,
		CreatedAt: m.now(),
	}
	m.templates[tpl.ID] = tpl

	if err := m.store.Save(m.templates); err != nil {
		delete(m.templates, tpl.ID)
		return nil, err
	}
	m.logger.Info().Str("template_id", tpl.ID).Str("name", name).Msg("template added")
	cp := *tpl
	return &cp, nil
}

// Update rewrites an existing template's fields. Empty arguments leave the
// corresponding field unchanged.
func (m *Manager) Update(id, name, content, category string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	tpl, ok := m.templates[id]
	if !ok {
		return ErrTemplateNotFound
	}
	if name != "" {
		tpl.Name = name
	}
	if content != "" {
		tpl.Content = content
	}
	if category != "" {
		tpl.Category = category
	}
	tpl.UpdatedAt = m.now()
	return m.store.Save(m.templates)
}

// Delete removes a template.
func (m *Manager) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.templates[id]; !ok {
		return ErrTemplateNotFound
	}
	delete(m.templates, id)
	return m.store.Save(m.templates)
}

// Get returns a copy of one template.
func (m *Manager) Get(id string) (*Template, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	tpl, ok := m.templates[id]
	if !ok {
		return nil, ErrTemplateNotFound
	}
	cp := *tpl
	return &cp, nil
}

// List returns all templates, optionally filtered by category, sorted by
// name.
func (m *Manager) List(category string) []Template {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Template
	for _, tpl := range m.templates {
		if category != "" && tpl.Category != category {
			continue
		}
		out = append(out, *tpl)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Search returns templates whose name or content contains the query,
// case-insensitive, sorted by name.
func (m *Manager) Search(query string) []Template {
	m.mu.RLock()
	defer m.mu.RUnlock()

	q := strings.ToLower(query)
	var out []Template
	for _, tpl := range m.templates {
		if strings.Contains(strings.ToLower(tpl.Name), q) ||
			strings.Contains(strings.ToLower(tpl.Content), q) {
			out = append(out, *tpl)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Categories returns the distinct categories in use, sorted.
func (m *Manager) Categories() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	seen := make(map[string]struct{})
	for _, tpl := range m.templates {
		if tpl.Category != "" {
			seen[tpl.Category] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for c := range seen {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// Variables lists the distinct placeholder names in a template's content, in
// order of first appearance.
func Variables(content string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, match := range placeholderRe.FindAllStringSubmatch(content, -1) {
		name := match[1]
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out
}

// Render substitutes placeholders from vars. Unknown placeholders are left
// intact.
func Render(content string, vars map[string]string) string {
	return placeholderRe.ReplaceAllStringFunc(content, func(match string) string {
		name := match[1 : len(match)-1]
		if v, ok := vars[name]; ok {
			return v
		}
		return match
	})
}

// RenderTemplate renders a stored template for an account, bumping its use
// count. Bindings cover the sending account's id and profile plus the
// current date and time.
func (m *Manager) RenderTemplate(id, accountID string, profile *domain.Profile) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	tpl, ok := m.templates[id]
	if !ok {
		return "", ErrTemplateNotFound
	}

	rendered := Render(tpl.Content, m.bindings(accountID, profile))
	tpl.UseCount++
	if err := m.store.Save(m.templates); err != nil {
		return "", err
	}
	return rendered, nil
}

func (m *Manager) bindings(accountID string, profile *domain.Profile) map[string]string {
	now := m.now()
	vars := map[string]string{
		"account": accountID,
		"date":    now.Format("2006-01-02"),
		"time":    now.Format("15:04"),
	}
	if profile != nil {
		vars["first_name"] = profile.FirstName
		vars["last_name"] = profile.LastName
		vars["username"] = profile.Username
		vars["phone"] = profile.Phone
	}
	return vars
}

// Usage reports per-template use counts, most used first.
func (m *Manager) Usage() []Template {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Template
	for _, tpl := range m.templates {
		out = append(out, *tpl)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].UseCount != out[j].UseCount {
			return out[i].UseCount > out[j].UseCount
		}
		return out[i].Name < out[j].Name
	})
	return out
}
