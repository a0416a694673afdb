// Package project picks the active project, interactively when a terminal
// is attached.
package project

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/huh"

	"github.com/felixgeelhaar/pmteam/internal/store"
)

// DefaultName is used whenever no name can be asked for.
const DefaultName = "default"

const newProjectValue = "\x00new"

// Option is one selectable entry.
type Option struct {
	Label string
	Value string
}

// Prompter asks the user for input.
type Prompter interface {
	Select(title string, options []Option) (string, error)
	Input(title, placeholder string) (string, error)
}

// Selector resolves the project a command works on.
type Selector struct {
	Store    store.Store
	Prompter Prompter
	// NonInteractive skips prompting and uses DefaultName
	NonInteractive bool
}

// NewSelector returns a Selector prompting through huh forms. Prompting is
// disabled when nonInteractive is set or stdin is not a terminal.
func NewSelector(s store.Store, nonInteractive bool) *Selector {
	return &Selector{
		Store:          s,
		Prompter:       HuhPrompter{},
		NonInteractive: nonInteractive || !IsInteractive(),
	}
}

// Select returns an existing project or creates the one the user names.
func (s *Selector) Select(ctx context.Context) (store.Project, error) {
	if s.NonInteractive {
		return s.Store.EnsureProject(ctx, DefaultName)
	}

	projects, err := s.Store.ListProjects(ctx)
	if err != nil {
		return store.Project{}, err
	}
	if len(projects) == 0 {
		return s.create(ctx, "No projects found. New project name")
	}

	options := make([]Option, 0, len(projects)+1)
	for _, p := range projects {
		options = append(options, Option{Label: fmt.Sprintf("%s (runs=%d)", p.Name, p.Runs), Value: p.Slug})
	}
	options = append(options, Option{Label: "New project", Value: newProjectValue})

	choice, err := s.Prompter.Select("Select a project or create a new one", options)
	if err != nil {
		return store.Project{}, fmt.Errorf("project selection: %w", err)
	}
	if choice == newProjectValue {
		return s.create(ctx, "New project name")
	}
	return s.Store.GetProject(ctx, choice)
}

func (s *Selector) create(ctx context.Context, title string) (store.Project, error) {
	name, err := s.Prompter.Input(title, DefaultName)
	if err != nil {
		return store.Project{}, fmt.Errorf("project selection: %w", err)
	}
	if name = strings.TrimSpace(name); name == "" {
		name = DefaultName
	}
	return s.Store.EnsureProject(ctx, name)
}

// HuhPrompter renders prompts as huh forms.
type HuhPrompter struct{}

func (HuhPrompter) Select(title string, options []Option) (string, error) {
	opts := make([]huh.Option[string], len(options))
	for i, o := range options {
		opts[i] = huh.NewOption(o.Label, o.Value)
	}

	var selected string
	field := huh.NewSelect[string]().
		Title(title).
		Options(opts...).
		Value(&selected)

	if err := huh.NewForm(huh.NewGroup(field)).Run(); err != nil {
		return "", err
	}
	return selected, nil
}

func (HuhPrompter) Input(title, placeholder string) (string, error) {
	var value string
	field := huh.NewInput().
		Title(title).
		Placeholder(placeholder).
		Value(&value)

	if err := huh.NewForm(huh.NewGroup(field)).Run(); err != nil {
		return "", err
	}
	return value, nil
}

// IsInteractive reports whether stdin is a terminal.
func IsInteractive() bool {
	info, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}
