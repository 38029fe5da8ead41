package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/bouncer/internal/rules"
)

type thresholdView struct {
	Above       int    `json:"above" yaml:"above"`
	Replacement string `json:"replacement" yaml:"replacement"`
}

type transformView struct {
	Term       string          `json:"term" yaml:"term"`
	Set        string          `json:"set" yaml:"set"`
	Thresholds []thresholdView `json:"thresholds" yaml:"thresholds"`
}

type noiseView struct {
	Word      string `json:"word" yaml:"word"`
	Above     int    `json:"above" yaml:"above"`
	Expansion string `json:"expansion" yaml:"expansion"`
}

type categoryView struct {
	Category   string          `json:"category" yaml:"category"`
	Markers    []string        `json:"markers,omitempty" yaml:"markers,omitempty"`
	Transforms []transformView `json:"transforms" yaml:"transforms"`
	Noise      []noiseView     `json:"noise" yaml:"noise"`
	Suffixes   []string        `json:"suffixes" yaml:"suffixes"`
}

func newRulesCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "rules [category]",
		Short: "List the local rewrite rules",
		Long: `List the terminology and noise rules the local engine applies.

Without an argument every category is listed, in classification order.

Examples:
  bouncer rules
  bouncer rules grant -o yaml`,
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{string(rules.CategoryDefault), string(rules.CategoryGrant), string(rules.CategoryAuthoritarian)},
		RunE: func(cmd *cobra.Command, args []string) error {
			categories := rules.Categories()
			if len(args) == 1 {
				c, err := rules.ParseCategory(args[0])
				if err != nil {
					return err
				}
				categories = []rules.Category{c}
			}

			views := make([]categoryView, 0, len(categories))
			for _, c := range categories {
				views = append(views, describeCategory(c))
			}

			if opts.output != outputText {
				return writeStructured(cmd.OutOrStdout(), opts.output, views)
			}
			for i, v := range views {
				if i > 0 {
					fmt.Fprintln(cmd.OutOrStdout())
				}
				printCategory(cmd, v)
			}
			return nil
		},
	}
}

func describeCategory(c rules.Category) categoryView {
	v := categoryView{
		Category:   c.String(),
		Transforms: []transformView{},
		Noise:      []noiseView{},
		Suffixes:   rules.QualifyingSuffixes(c),
		Markers:    rules.Markers(c),
	}

	for _, r := range rules.TransformRules(c) {
		tv := transformView{Term: r.Term, Set: string(r.Set)}
		for _, th := range r.Thresholds {
			tv.Thresholds = append(tv.Thresholds, thresholdView{Above: th.Min, Replacement: th.Replacement})
		}
		v.Transforms = append(v.Transforms, tv)
	}
	for _, r := range rules.NoiseRules(c) {
		v.Noise = append(v.Noise, noiseView{Word: r.Word, Above: r.Min, Expansion: r.Expansion})
	}
	return v
}

func printCategory(cmd *cobra.Command, v categoryView) {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, headerStyle.Render(strings.ToUpper(v.Category)))
	if len(v.Markers) > 0 {
		fmt.Fprintln(out, field("Markers", strings.Join(v.Markers, ", ")))
	}

	fmt.Fprintln(out, labelStyle.Render("Terminology"))
	for _, t := range v.Transforms {
		steps := make([]string, 0, len(t.Thresholds))
		for _, th := range t.Thresholds {
			steps = append(steps, fmt.Sprintf(">%d %q", th.Above, th.Replacement))
		}
		fmt.Fprintf(out, "  %-24s %s %s\n", t.Term, strings.Join(steps, ", "), dimStyle.Render("["+t.Set+"]"))
	}

	fmt.Fprintln(out, labelStyle.Render("Noise"))
	for _, n := range v.Noise {
		fmt.Fprintf(out, "  %-24s >%d %q\n", n.Word, n.Above, n.Expansion)
	}
}

func newClassifyCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "classify <context>",
		Short: "Show which rule category a context description selects",
		Example: `  bouncer classify "NSF grant proposal"
  bouncer classify "state media review in Beijing"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := rules.Classify(strings.Join(args, " "))
			if opts.output != outputText {
				return writeStructured(cmd.OutOrStdout(), opts.output, map[string]string{"category": c.String()})
			}
			fmt.Fprintln(cmd.OutOrStdout(), c.String())
			return nil
		},
	}
}
