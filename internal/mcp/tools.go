package mcp

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/bouncer/internal/logging"
	"github.com/fyrsmithlabs/bouncer/internal/rules"
	"github.com/fyrsmithlabs/bouncer/internal/sanitize"
)

type sanitizeTextInput struct {
	Context        string `json:"context" jsonschema:"Who will read the text, e.g. NSF grant proposal"`
	Text           string `json:"text" jsonschema:"Text to rewrite"`
	AmbiguityLevel int    `json:"ambiguity_level" jsonschema:"How strongly to neutralize terminology, 0-10"`
	NoiseLevel     int    `json:"noise_level" jsonschema:"How much aligned phrasing to add, 0-10"`
}

type sanitizeTextOutput struct {
	Summary        string `json:"summary"`
	ProcessedText  string `json:"processed_text"`
	Category       string `json:"category"`
	Mode           string `json:"mode"`
	Provider       string `json:"provider,omitempty"`
	FallbackReason string `json:"fallback_reason,omitempty"`
}

type classifyContextInput struct {
	Context string `json:"context" jsonschema:"Audience description to classify"`
}

type classifyContextOutput struct {
	Category string `json:"category"`
}

type listRulesInput struct {
	Category string `json:"category,omitempty" jsonschema:"default, grant or authoritarian (default: default)"`
}

type thresholdOutput struct {
	Above       int    `json:"above"`
	Replacement string `json:"replacement"`
}

type transformRuleOutput struct {
	Term       string            `json:"term"`
	Set        string            `json:"set"`
	Thresholds []thresholdOutput `json:"thresholds"`
}

type noiseRuleOutput struct {
	Word      string `json:"word"`
	Above     int    `json:"above"`
	Expansion string `json:"expansion"`
}

type listRulesOutput struct {
	Category   string                `json:"category"`
	Transforms []transformRuleOutput `json:"transforms"`
	Noise      []noiseRuleOutput     `json:"noise"`
	Suffixes   []string              `json:"suffixes"`
}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "sanitize_text",
		Description: "Rewrite text so it reads as neutral to the described audience. Returns a change summary and the rewritten text.",
	}, s.sanitizeText)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "classify_context",
		Description: "Report which rule category (default, grant, authoritarian) an audience description selects",
	}, s.classifyContext)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "list_rules",
		Description: "List the local terminology and noise rules applied for a category",
	}, s.listRules)
}

func (s *Server) sanitizeText(ctx context.Context, _ *mcp.CallToolRequest, args sanitizeTextInput) (*mcp.CallToolResult, sanitizeTextOutput, error) {
	done := s.metrics.track(ctx, "sanitize_text")
	ctx = logging.WithOrigin(logging.WithRequestID(ctx, uuid.NewString()), logging.OriginMCP)

	res, err := s.svc.Process(ctx, sanitize.Request{
		Context:   args.Context,
		Text:      args.Text,
		Ambiguity: args.AmbiguityLevel,
		Noise:     args.NoiseLevel,
	})
	done(err)
	if err != nil {
		s.logger.Warn(ctx, "sanitize_text failed", zap.Error(err))
		return nil, sanitizeTextOutput{}, err
	}

	out := sanitizeTextOutput{
		Summary:        res.Summary,
		ProcessedText:  res.ProcessedText,
		Category:       res.Category.String(),
		Mode:           res.Mode,
		Provider:       res.Provider,
		FallbackReason: res.FallbackReason,
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: res.ProcessedText},
		},
	}, out, nil
}

func (s *Server) classifyContext(ctx context.Context, _ *mcp.CallToolRequest, args classifyContextInput) (*mcp.CallToolResult, classifyContextOutput, error) {
	done := s.metrics.track(ctx, "classify_context")
	category := rules.Classify(args.Context)
	done(nil)

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: fmt.Sprintf("Category: %s", category)},
		},
	}, classifyContextOutput{Category: category.String()}, nil
}

func (s *Server) listRules(ctx context.Context, _ *mcp.CallToolRequest, args listRulesInput) (*mcp.CallToolResult, listRulesOutput, error) {
	done := s.metrics.track(ctx, "list_rules")

	category := rules.CategoryDefault
	if args.Category != "" {
		c, err := rules.ParseCategory(args.Category)
		if err != nil {
			done(err)
			return nil, listRulesOutput{}, err
		}
		category = c
	}

	out := listRulesOutput{
		Category:   category.String(),
		Transforms: []transformRuleOutput{},
		Noise:      []noiseRuleOutput{},
		Suffixes:   rules.QualifyingSuffixes(category),
	}
	for _, r := range rules.TransformRules(category) {
		tr := transformRuleOutput{Term: r.Term, Set: string(r.Set), Thresholds: make([]thresholdOutput, 0, len(r.Thresholds))}
		for _, th := range r.Thresholds {
			tr.Thresholds = append(tr.Thresholds, thresholdOutput{Above: th.Min, Replacement: th.Replacement})
		}
		out.Transforms = append(out.Transforms, tr)
	}
	for _, r := range rules.NoiseRules(category) {
		out.Noise = append(out.Noise, noiseRuleOutput{Word: r.Word, Above: r.Min, Expansion: r.Expansion})
	}
	done(nil)

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: fmt.Sprintf("%d transform rules and %d noise rules for %s", len(out.Transforms), len(out.Noise), category)},
		},
	}, out, nil
}
