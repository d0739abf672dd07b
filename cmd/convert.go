package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/eykd/prosemark-elements/internal/markup"
)

func newRenderCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:          "render <document.json>",
		Short:        "Render a JSON document as HTML markup",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := a.io.ReadDocument(cmd.Context(), args[0])
			if err != nil {
				return emitFailure(cmd, false, err)
			}
			doc, err := a.embed.Schema().NodeFromJSON(data)
			if err != nil {
				return emitFailure(cmd, false, err)
			}
			src, err := markup.Render(doc.Content)
			if err != nil {
				return emitFailure(cmd, false, err)
			}
			if _, err := fmt.Fprintln(cmd.OutOrStdout(), src); err != nil {
				return fmt.Errorf("writing output: %w", err)
			}
			return nil
		},
	}
}

func newParseCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:          "parse <document.html>",
		Short:        "Parse HTML markup into a JSON document",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := a.io.ReadDocument(cmd.Context(), args[0])
			if err != nil {
				return emitFailure(cmd, false, err)
			}
			doc, err := markup.ParseDoc(a.embed.Schema(), string(data))
			if err != nil {
				return emitFailure(cmd, false, err)
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(doc); err != nil {
				return fmt.Errorf("encoding output: %w", err)
			}
			return nil
		},
	}
}

// NodeTypeJSON describes one schema node type in schema --json output.
type NodeTypeJSON struct {
	Name    string `json:"name"`
	Content string `json:"content,omitempty"`
	Group   string `json:"group,omitempty"`
	Atom    bool   `json:"atom,omitempty"`
	Element bool   `json:"element,omitempty"`
}

func newSchemaCmd(a *app) *cobra.Command {
	var jsonMode bool
	cmd := &cobra.Command{
		Use:          "schema",
		Short:        "List the node types generated from the element definitions",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var types []NodeTypeJSON
			for _, nt := range a.embed.Schema().NodeTypes() {
				types = append(types, NodeTypeJSON{
					Name:    nt.Name,
					Content: nt.Spec.Content,
					Group:   nt.Spec.Group,
					Atom:    nt.IsAtom(),
					Element: a.embed.Registry().IsElement(nt.Name),
				})
			}
			if jsonMode {
				if err := json.NewEncoder(cmd.OutOrStdout()).Encode(types); err != nil {
					return fmt.Errorf("encoding output: %w", err)
				}
				return nil
			}
			for _, t := range types {
				if _, err := fmt.Fprintf(cmd.OutOrStdout(), "%-32s %s\n", t.Name, t.Content); err != nil {
					return fmt.Errorf("writing output: %w", err)
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonMode, "json", false, "Output node types as JSON")
	return cmd
}
