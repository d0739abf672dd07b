package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/eykd/prosemark-elements/internal/embed"
	"github.com/eykd/prosemark-elements/internal/model"
	"github.com/eykd/prosemark-elements/internal/surface"
)

// session is a document opened for editing: an outer surface with a host
// mounting one view per element.
type session struct {
	path   string
	start  *model.Node
	outer  *surface.Surface
	host   *embed.Host
}

// open reads and decodes the document at path and mounts it.
func (a *app) open(cmd *cobra.Command, path string) (*session, error) {
	data, err := a.io.ReadDocument(cmd.Context(), path)
	if err != nil {
		return nil, err
	}
	doc, err := decodeDocument(a.embed.Schema(), path, data)
	if err != nil {
		return nil, err
	}
	st, err := a.embed.CreateState(doc)
	if err != nil {
		return nil, err
	}
	outer := surface.New(st, surface.WithLogger(a.log))
	return &session{path: path, start: doc, outer: outer, host: a.embed.NewHost(outer)}, nil
}

// doc returns the current document.
func (s *session) doc() *model.Node { return s.outer.State().Doc }

// finish reports diags, then writes the document back when its content
// changed and nothing failed. Formatting alone never triggers a write. done is printed on success in text mode.
func (a *app) finish(cmd *cobra.Command, s *session, jsonMode bool, diags []Diagnostic, done string) error {
	defer s.host.Destroy()
	if diags == nil {
		diags = []Diagnostic{}
	}
	out, err := encodeDocument(s.path, s.doc())
	if err != nil {
		return emitFailure(cmd, jsonMode, err)
	}
	failed := hasDiagnosticError(diags)
	changed := !failed && !s.doc().Eq(s.start)

	if jsonMode {
		res := OpResult{Version: "1", Changed: changed, Diagnostics: diags}
		if err := json.NewEncoder(cmd.OutOrStdout()).Encode(res); err != nil {
			return fmt.Errorf("encoding output: %w", err)
		}
	} else {
		printDiagnostics(cmd, diags)
	}
	if failed {
		return fmt.Errorf("%s has errors", cmd.Name())
	}
	if changed {
		if err := a.io.WriteDocumentAtomic(cmd.Context(), s.path, out); err != nil {
			return fmt.Errorf("writing document: %w", err)
		}
		a.log.Debug("wrote document", "path", s.path, "bytes", len(out))
	}
	if !jsonMode {
		if _, err := fmt.Fprintln(cmd.OutOrStdout(), done+" in "+sanitizePath(s.path)); err != nil {
			return fmt.Errorf("writing output: %w", err)
		}
	}
	return nil
}

// refused is the diagnostic for an operation the document does not allow.
func refused(format string, args ...any) []Diagnostic {
	return []Diagnostic{{Severity: SeverityError, Code: CodeRefused, Message: fmt.Sprintf(format, args...)}}
}

func newSyncCmd(a *app) *cobra.Command {
	var jsonMode bool
	cmd := &cobra.Command{
		Use:          "sync <document>",
		Short:        "Rewrite every element's has-errors flag to match its fields",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.open(cmd, args[0])
			if err != nil {
				return emitFailure(cmd, jsonMode, err)
			}
			return a.finish(cmd, s, jsonMode, nil, "Synced flags")
		},
	}
	cmd.Flags().BoolVar(&jsonMode, "json", false, "Output result as JSON")
	return cmd
}

func newInsertCmd(a *app) *cobra.Command {
	var (
		name     string
		at       int
		values   string
		jsonMode bool
	)
	cmd := &cobra.Command{
		Use:          "insert <document>",
		Short:        "Insert a new element before a top-level block",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			var vals map[string]any
			if values != "" {
				if err := json.Unmarshal([]byte(values), &vals); err != nil {
					return emitFailure(cmd, jsonMode, fmt.Errorf("--values: %w", err))
				}
			}
			s, err := a.open(cmd, args[0])
			if err != nil {
				return emitFailure(cmd, jsonMode, err)
			}
			doc := s.doc()
			if !cmd.Flags().Changed("at") {
				at = doc.ChildCount()
			}
			if at < 0 || at > doc.ChildCount() {
				return a.finish(cmd, s, jsonMode, refused("--at %d out of range 0..%d", at, doc.ChildCount()), "")
			}
			if !a.embed.Registry().IsElement(name) {
				return a.finish(cmd, s, jsonMode, []Diagnostic{{
					Severity: SeverityError, Code: CodeElementNotFound, Message: fmt.Sprintf("unknown element %q", name),
				}}, "")
			}
			if err := s.host.Insert(doc.Content.Offset(at), name, vals); err != nil {
				return a.finish(cmd, s, jsonMode, refused("insert %s: %v", name, err), "")
			}
			return a.finish(cmd, s, jsonMode, nil, "Inserted "+sanitizePath(name))
		},
	}
	cmd.Flags().StringVar(&name, "element", "", "Element type to insert")
	cmd.Flags().IntVar(&at, "at", 0, "Zero-based top-level block index (default: append)")
	cmd.Flags().StringVar(&values, "values", "", "Initial field values as a JSON object")
	cmd.Flags().BoolVar(&jsonMode, "json", false, "Output result as JSON")
	_ = cmd.MarkFlagRequired("element")
	return cmd
}

// elementAction picks one of an element's commands.
type elementAction struct {
	use, short string
	pick       func(embed.Commands) embed.Command
}

func newElementCmd(a *app) *cobra.Command {
	parent := &cobra.Command{
		Use:   "element",
		Short: "Move or remove an element",
		Args:  cobra.NoArgs,
		RunE:  rootRunE,
	}
	actions := []elementAction{
		{"up", "Move an element before its previous sibling", func(c embed.Commands) embed.Command { return c.MoveUp }},
		{"down", "Move an element after its next sibling", func(c embed.Commands) embed.Command { return c.MoveDown }},
		{"top", "Move an element to the front of its parent", func(c embed.Commands) embed.Command { return c.MoveTop }},
		{"bottom", "Move an element to the end of its parent", func(c embed.Commands) embed.Command { return c.MoveBottom }},
		{"remove", "Remove an element", func(c embed.Commands) embed.Command { return c.Remove }},
	}
	for _, act := range actions {
		parent.AddCommand(newElementActionCmd(a, act))
	}
	return parent
}

func newElementActionCmd(a *app, act elementAction) *cobra.Command {
	var (
		index    int
		jsonMode bool
	)
	cmd := &cobra.Command{
		Use:          act.use + " <document>",
		Short:        act.short,
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.open(cmd, args[0])
			if err != nil {
				return emitFailure(cmd, jsonMode, err)
			}
			views := s.host.Views()
			if index < 0 || index >= len(views) {
				return a.finish(cmd, s, jsonMode, []Diagnostic{{
					Severity: SeverityError, Code: CodeElementNotFound,
					Message: fmt.Sprintf("no element %d (document has %d)", index, len(views)),
				}}, "")
			}
			cmds, _ := s.host.CommandsFor(views[index])
			if !act.pick(cmds)(true) {
				return a.finish(cmd, s, jsonMode, refused("cannot %s element %d", act.use, index), "")
			}
			return a.finish(cmd, s, jsonMode, nil, fmt.Sprintf("Applied %s to element %d", act.use, index))
		},
	}
	cmd.Flags().IntVar(&index, "index", 0, "Zero-based element index in document order")
	cmd.Flags().BoolVar(&jsonMode, "json", false, "Output result as JSON")
	return cmd
}
