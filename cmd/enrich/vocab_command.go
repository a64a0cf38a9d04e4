package main

import (
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/spf13/cobra"
	"github.com/timmy/tubebench/internal/domain"
	"gopkg.in/yaml.v3"
)

// parseVocabulary reads a YAML document mapping taxonomy kinds to allowed values:
//
//	niche: [Tech, Food]
//	format: [Reviews, Tutorials]
func parseVocabulary(r io.Reader) ([]domain.TaxonomyTerm, error) {
	var doc map[string][]string
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("decode vocabulary: %w", err)
	}

	kinds := make([]string, 0, len(doc))
	for k := range doc {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)

	var terms []domain.TaxonomyTerm
	for _, k := range kinds {
		kind := domain.TaxonomyKind(k)
		if !kind.Valid() {
			return nil, fmt.Errorf("unknown taxonomy kind %q", k)
		}
		for _, v := range doc[k] {
			terms = append(terms, domain.TaxonomyTerm{Kind: kind, Value: v})
		}
	}
	return terms, nil
}

func newVocabCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vocab",
		Short: "Manage the categorization vocabulary",
	}
	cmd.AddCommand(newVocabImportCommand(ctx), newVocabShowCommand(ctx))
	return cmd
}

func newVocabImportCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file.yaml>",
		Short: "Add vocabulary terms from a YAML file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			terms, err := parseVocabulary(f)
			if err != nil {
				return err
			}
			a, err := ctx.ensureApp(cmd.Context())
			if err != nil {
				return err
			}
			added, err := a.Vocabulary.ImportTerms(cmd.Context(), terms)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d new term(s) of %d\n", added, len(terms))
			return nil
		},
	}
}

func newVocabShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the stored vocabulary",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := ctx.ensureApp(cmd.Context())
			if err != nil {
				return err
			}
			vocab, err := a.Vocabulary.Load(cmd.Context())
			if err != nil {
				return err
			}
			rows := make([][]string, 0)
			for _, kind := range domain.TaxonomyKinds {
				for _, v := range vocab.List(kind) {
					rows = append(rows, []string{string(kind), v})
				}
			}
			if len(rows) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "Vocabulary is empty; categorization accepts any value")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Kind", "Value"}, rows, nil))
			return nil
		},
	}
}
