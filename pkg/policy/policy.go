package policy

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/m-mizutani/goerr/v2"
	"github.com/open-policy-agent/opa/v1/rego"
)

// Query is evaluated against every submitted prompt. Rules produce a set of
// human readable denial messages:
//
//	package prompt
//
//	deny contains "prompt is too long" if {
//		input.length > 500
//	}
const Query = "data.prompt.deny"

// Checker decides whether a prompt may be sent to the image provider
type Checker interface {
	// Check returns denial messages. An empty result means the prompt is allowed.
	Check(ctx context.Context, prompt string) ([]string, error)
}

// Policy is a Checker backed by Rego modules
type Policy struct {
	query *rego.PreparedEvalQuery
}

var _ Checker = (*Policy)(nil)

// Load reads all Rego files from policyDir and prepares the deny query.
// It returns nil without error when the directory has no policy file.
func Load(ctx context.Context, policyDir string) (*Policy, error) {
	files, err := filepath.Glob(filepath.Join(policyDir, "*.rego"))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to glob policy files")
	}

	if len(files) == 0 {
		return nil, nil
	}

	modules := make(map[string]string, len(files))
	for _, file := range files {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to read policy file", goerr.Value("path", file))
		}
		modules[file] = string(data)
	}

	return New(ctx, modules)
}

// New prepares a Policy from in-memory modules keyed by file name
func New(ctx context.Context, modules map[string]string) (*Policy, error) {
	options := make([]func(*rego.Rego), 0, len(modules)+1)
	options = append(options, rego.Query(Query))
	for name, src := range modules {
		options = append(options, rego.Module(name, src))
	}

	prepared, err := rego.New(options...).PrepareForEval(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to prepare query", goerr.Value("query", Query))
	}

	return &Policy{query: &prepared}, nil
}

// Check evaluates the policy for prompt
func (p *Policy) Check(ctx context.Context, prompt string) ([]string, error) {
	prompt = strings.TrimSpace(prompt)
	input := map[string]any{
		"prompt": prompt,
		"length": utf8.RuneCountInString(prompt),
	}

	rs, err := p.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to evaluate prompt policy")
	}

	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return nil, nil
	}

	values, ok := rs[0].Expressions[0].Value.([]any)
	if !ok {
		return nil, goerr.New("invalid policy result: deny is not a set",
			goerr.V("value", rs[0].Expressions[0].Value))
	}

	reasons := make([]string, 0, len(values))
	for _, v := range values {
		msg, ok := v.(string)
		if !ok {
			return nil, goerr.New("invalid policy result: deny message is not a string", goerr.V("value", v))
		}
		reasons = append(reasons, msg)
	}
	sort.Strings(reasons)

	return reasons, nil
}
