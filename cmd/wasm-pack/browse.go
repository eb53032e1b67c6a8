package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/iancoleman/strcase"
	"github.com/spf13/cobra"

	"github.com/wippyai/wasm-pack/bindgen"
	"github.com/wippyai/wasm-pack/idl"
	"github.com/wippyai/wasm-pack/loader"
	"github.com/wippyai/wasm-pack/pack"
)

func newBrowseCmd(_ *app) *cobra.Command {
	return &cobra.Command{
		Use:   "browse <input>",
		Short: "Interactively explore the functions a container exports",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pkg, err := loader.New().LoadPath(args[0])
			if err != nil {
				return err
			}
			m := newBrowseModel(pkg)
			_, err = tea.NewProgram(m,
				tea.WithInput(cmd.InOrStdin()),
				tea.WithOutput(cmd.OutOrStdout()),
			).Run()
			return err
		},
	}
}

type funcEntry struct {
	library  string
	def      *idl.Definition
	fn       *idl.Function
	imported bool
}

func (e funcEntry) label() string {
	prefix := e.library + "."
	if e.imported {
		prefix = e.def.Name + " (import)."
	}
	return prefix + signature(e.def, e.fn)
}

type browseState int

const (
	stateSelectFunc browseState = iota
	stateShowDetail
)

type browseModel struct {
	title    string
	all      []funcEntry
	visible  []funcEntry
	filter   textinput.Model
	selected int
	state    browseState
}

func newBrowseModel(pkg *pack.Package) *browseModel {
	var entries []funcEntry
	for _, lib := range pkg.Libraries() {
		def := lib.Exports.Definition()
		for _, fn := range def.Functions {
			entries = append(entries, funcEntry{library: lib.InterfaceName(), def: def, fn: fn})
		}
		for _, imp := range lib.Imports {
			for _, fn := range imp.Definition().Functions {
				entries = append(entries, funcEntry{library: lib.InterfaceName(), def: imp.Definition(), fn: fn, imported: true})
			}
		}
	}

	ti := textinput.New()
	ti.Placeholder = "filter"
	ti.Prompt = "/ "
	ti.Width = 40
	ti.Focus()

	meta := pkg.Metadata()
	return &browseModel{
		title:   meta.Name.String() + "@" + meta.Version,
		all:     entries,
		visible: entries,
		filter:  ti,
	}
}

func (m *browseModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m *browseModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "ctrl+c":
			return m, tea.Quit

		case "q":
			if m.state == stateShowDetail {
				return m, tea.Quit
			}

		case "up":
			if m.state == stateSelectFunc && m.selected > 0 {
				m.selected--
			}
			return m, nil

		case "down":
			if m.state == stateSelectFunc && m.selected < len(m.visible)-1 {
				m.selected++
			}
			return m, nil

		case "enter":
			switch m.state {
			case stateSelectFunc:
				if len(m.visible) > 0 {
					m.state = stateShowDetail
				}
			case stateShowDetail:
				m.state = stateSelectFunc
			}
			return m, nil

		case "esc":
			if m.state == stateShowDetail {
				m.state = stateSelectFunc
				return m, nil
			}
			return m, tea.Quit
		}
	}

	if m.state != stateSelectFunc {
		return m, nil
	}

	var cmd tea.Cmd
	m.filter, cmd = m.filter.Update(msg)
	m.applyFilter()
	return m, cmd
}

func (m *browseModel) applyFilter() {
	query := strings.ToLower(strings.TrimSpace(m.filter.Value()))
	m.visible = nil
	for _, e := range m.all {
		if query == "" || strings.Contains(strings.ToLower(e.label()), query) {
			m.visible = append(m.visible, e)
		}
	}
	if m.selected >= len(m.visible) {
		m.selected = max(len(m.visible)-1, 0)
	}
}

func (m *browseModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("wasm-pack"))
	b.WriteString(" ")
	b.WriteString(m.title)
	b.WriteString("\n\n")

	switch m.state {
	case stateSelectFunc:
		b.WriteString(m.filter.View())
		b.WriteString("\n\n")
		if len(m.visible) == 0 {
			b.WriteString(helpStyle.Render("no matching functions"))
			b.WriteString("\n")
		}
		for i, e := range m.visible {
			if i == m.selected {
				b.WriteString(selectedStyle.Render("> " + e.label()))
			} else {
				b.WriteString("  " + e.label())
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("type to filter • ↑/↓ select • enter details • esc quit"))

	case stateShowDetail:
		b.WriteString(m.detail(m.visible[m.selected]))
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("enter back • q quit"))
	}

	return b.String()
}

func (m *browseModel) detail(e funcEntry) string {
	dir := bindgen.Export
	if e.imported {
		dir = bindgen.Import
	}
	sig := bindgen.CoreSignature(e.fn, dir)

	var b strings.Builder
	fmt.Fprintf(&b, "%s\n\n", funcStyle.Render(signature(e.def, e.fn)))
	fmt.Fprintf(&b, "  core:       (%s) -> (%s)\n", valueTypes(sig.Params), valueTypes(sig.Results))
	if sig.IndirectParams {
		b.WriteString("  " + typeStyle.Render("parameters are passed through linear memory") + "\n")
	}
	if sig.IndirectResults {
		b.WriteString("  " + typeStyle.Render("results are returned through linear memory") + "\n")
	}
	fmt.Fprintf(&b, "  javascript: %s\n", strcase.ToLowerCamel(e.fn.Name))
	fmt.Fprintf(&b, "  python:     %s\n", strcase.ToSnake(e.fn.Name))
	return b.String()
}
