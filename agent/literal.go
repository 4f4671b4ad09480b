package agent

import (
	"fmt"
	"math/big"

	"go.starlark.net/syntax"
)

// Safe evaluation of Python-dialect literal payloads. Models trained on
// another ecosystem's conventions routinely emit single-quoted strings and
// True/False/None where the wire format wants JSON; this evaluator accepts
// exactly that literal subset and categorically refuses anything executable.

var literalOptions = &syntax.FileOptions{}

// EvalLiteral parses src as a single literal expression and returns its value
// using JSON-decode-equivalent Go types: string, float64, bool, nil, []any,
// and map[string]any. Function calls, attribute access, comprehensions,
// operators, and any identifier other than True/False/None are rejected.
func EvalLiteral(src string) (any, error) {
	expr, err := literalOptions.ParseExpr("payload", src, 0)
	if err != nil {
		return nil, fmt.Errorf("not a literal expression: %w", err)
	}
	return literalValue(expr)
}

func literalValue(e syntax.Expr) (any, error) {
	switch e := e.(type) {
	case *syntax.Literal:
		switch e.Token {
		case syntax.STRING:
			s, ok := e.Value.(string)
			if !ok {
				return nil, fmt.Errorf("unsupported string literal %v", e.Value)
			}
			return s, nil
		case syntax.INT:
			// Numbers normalize to float64 so a Python-dialect payload
			// decodes identically to its JSON equivalent.
			switch v := e.Value.(type) {
			case int64:
				return float64(v), nil
			case *big.Int:
				f, _ := new(big.Float).SetInt(v).Float64()
				return f, nil
			default:
				return nil, fmt.Errorf("unsupported integer literal %v", e.Value)
			}
		case syntax.FLOAT:
			f, ok := e.Value.(float64)
			if !ok {
				return nil, fmt.Errorf("unsupported float literal %v", e.Value)
			}
			return f, nil
		default:
			return nil, fmt.Errorf("unsupported literal token %v", e.Token)
		}

	case *syntax.Ident:
		switch e.Name {
		case "True":
			return true, nil
		case "False":
			return false, nil
		case "None":
			return nil, nil
		default:
			return nil, fmt.Errorf("refusing identifier %q", e.Name)
		}

	case *syntax.UnaryExpr:
		if e.Op != syntax.MINUS && e.Op != syntax.PLUS {
			return nil, fmt.Errorf("refusing unary operator %v", e.Op)
		}
		v, err := literalValue(e.X)
		if err != nil {
			return nil, err
		}
		f, ok := v.(float64)
		if !ok {
			return nil, fmt.Errorf("unary %v applied to non-number", e.Op)
		}
		if e.Op == syntax.MINUS {
			return -f, nil
		}
		return f, nil

	case *syntax.ParenExpr:
		return literalValue(e.X)

	case *syntax.ListExpr:
		return literalSlice(e.List)

	case *syntax.TupleExpr:
		return literalSlice(e.List)

	case *syntax.DictExpr:
		out := make(map[string]any, len(e.List))
		for _, entry := range e.List {
			de, ok := entry.(*syntax.DictEntry)
			if !ok {
				return nil, fmt.Errorf("malformed dict entry %T", entry)
			}
			kv, err := literalValue(de.Key)
			if err != nil {
				return nil, err
			}
			key, ok := kv.(string)
			if !ok {
				return nil, fmt.Errorf("dict key %v is not a string", kv)
			}
			val, err := literalValue(de.Value)
			if err != nil {
				return nil, err
			}
			out[key] = val
		}
		return out, nil

	default:
		return nil, fmt.Errorf("refusing expression %T", e)
	}
}

func literalSlice(exprs []syntax.Expr) ([]any, error) {
	out := make([]any, 0, len(exprs))
	for _, e := range exprs {
		v, err := literalValue(e)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
