package matcher

import (
	"fmt"
	"net/http"

	"github.com/google/cel-go/cel"
)

// assertion is a compiled api_assert expression. The expression sees:
//
//	status   int
//	headers  map(string, string), first value per header
//	body     string
//	json     dyn, the decoded body or null
type assertion struct {
	program cel.Program
}

func compileAssertion(expr string) (*assertion, error) {
	env, err := cel.NewEnv(
		cel.Variable("status", cel.IntType),
		cel.Variable("headers", cel.MapType(cel.StringType, cel.StringType)),
		cel.Variable("body", cel.StringType),
		cel.Variable("json", cel.DynType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, issues.Err()
	}
	program, err := env.Program(ast)
	if err != nil {
		return nil, err
	}
	return &assertion{program: program}, nil
}

func (a *assertion) eval(status int, header http.Header, body []byte) (bool, error) {
	headers := make(map[string]string, len(header))
	for k := range header {
		headers[k] = header.Get(k)
	}

	out, _, err := a.program.Eval(map[string]any{
		"status":  int64(status),
		"headers": headers,
		"body":    string(body),
		"json":    decodeJSON(body),
	})
	if err != nil {
		return false, err
	}
	passed, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("expression must return bool, got %T", out.Value())
	}
	return passed, nil
}
