package commands

import (
	"slices"
	"sort"
	"strings"
)

// Registry holds every command of the UI
type Registry[M any] struct {
	commands []*Command[M]
	keyMap   map[string][]*Command[M] // key -> commands, in registration order
}

// NewRegistry creates an empty registry
func NewRegistry[M any]() *Registry[M] {
	return &Registry[M]{
		keyMap: make(map[string][]*Command[M]),
	}
}

// Register adds cmd
func (r *Registry[M]) Register(cmd Command[M]) {
	c := &cmd
	r.commands = append(r.commands, c)
	for _, key := range cmd.Keys {
		r.keyMap[key] = append(r.keyMap[key], c)
	}
}

// Lookup returns the first command bound to key that is available in view
func (r *Registry[M]) Lookup(key string, view int, model M) *Command[M] {
	for _, cmd := range r.keyMap[key] {
		if r.isAvailable(cmd, view, model) {
			return cmd
		}
	}
	return nil
}

func (r *Registry[M]) isAvailable(cmd *Command[M], view int, model M) bool {
	if cmd.Scope == ScopeView && len(cmd.ViewStates) > 0 && !slices.Contains(cmd.ViewStates, view) {
		return false
	}
	if cmd.IsAvailable != nil && !cmd.IsAvailable(model) {
		return false
	}
	return true
}

// Available returns the commands usable in view, by priority
func (r *Registry[M]) Available(view int, model M) []*Command[M] {
	var available []*Command[M]
	for _, cmd := range r.commands {
		if r.isAvailable(cmd, view, model) {
			available = append(available, cmd)
		}
	}
	sort.SliceStable(available, func(i, j int) bool {
		return available[i].Priority < available[j].Priority
	})
	return available
}

// GenerateFooter joins the footer texts of the available commands
func (r *Registry[M]) GenerateFooter(view int, model M) string {
	var parts []string
	for _, cmd := range r.Available(view, model) {
		if text := cmd.FooterText(); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, "  ")
}

// GenerateHelp returns [keys, description] rows for the help screen
func (r *Registry[M]) GenerateHelp(view int, model M) [][]string {
	var help [][]string
	seen := make(map[string]bool)
	for _, cmd := range r.Available(view, model) {
		if len(cmd.Keys) == 0 || cmd.HelpText == "" {
			continue
		}
		keys := cmd.keyDisplay(" / ")
		if seen[keys] {
			continue
		}
		seen[keys] = true
		help = append(help, []string{keys, cmd.HelpText})
	}
	return help
}
