package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/eykd/prosemark-elements/internal/element"
	"github.com/eykd/prosemark-elements/internal/state"
)

// repeaterAction runs one repeater operation on child index.
type repeaterAction struct {
	use, short string
	run        func(r *element.Repeater, st *state.EditorState, index int) (*state.Transaction, bool)
}

func newRepeaterCmd(a *app) *cobra.Command {
	parent := &cobra.Command{
		Use:   "repeater",
		Short: "Add, remove or reorder the children of a repeater field",
		Args:  cobra.NoArgs,
		RunE:  rootRunE,
	}
	actions := []repeaterAction{
		{"add", "Add a child with default values after --child (default: last)", (*element.Repeater).AddChildAfter},
		{"remove", "Remove child --child", (*element.Repeater).RemoveChildAt},
		{"up", "Swap child --child with the one before it", (*element.Repeater).MoveChildUp},
		{"down", "Swap child --child with the one after it", (*element.Repeater).MoveChildDown},
	}
	for _, act := range actions {
		parent.AddCommand(newRepeaterActionCmd(a, act))
	}
	return parent
}

func newRepeaterActionCmd(a *app, act repeaterAction) *cobra.Command {
	var (
		index    int
		name     string
		child    int
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
			r, ok := views[index].Repeater(name)
			if !ok {
				return a.finish(cmd, s, jsonMode, []Diagnostic{{
					Severity: SeverityError, Code: CodeFieldNotFound,
					Message: fmt.Sprintf("element %d has no repeater field %q", index, name),
				}}, "")
			}
			st := s.outer.State()
			if !cmd.Flags().Changed("child") {
				child = r.Len(st) - 1
			}
			tr, ok := act.run(r, st, child)
			if !ok {
				return a.finish(cmd, s, jsonMode, refused("cannot %s child %d of %s", act.use, child, name), "")
			}
			if err := s.outer.Dispatch(tr); err != nil {
				return a.finish(cmd, s, jsonMode, refused("%s child %d of %s: %v", act.use, child, name, err), "")
			}
			return a.finish(cmd, s, jsonMode, nil, fmt.Sprintf("Applied %s to %s[%d] of element %d", act.use, name, child, index))
		},
	}
	cmd.Flags().IntVar(&index, "index", 0, "Zero-based element index in document order")
	cmd.Flags().StringVar(&name, "field", "", "Repeater field name")
	cmd.Flags().IntVar(&child, "child", 0, "Zero-based child index (default: last)")
	cmd.Flags().BoolVar(&jsonMode, "json", false, "Output result as JSON")
	_ = cmd.MarkFlagRequired("field")
	return cmd
}
