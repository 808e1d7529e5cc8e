package demotools

import (
	"errors"
	"fmt"
	"math"
	"strings"

	lua "github.com/yuin/gopher-lua"

	"github.com/hupe1980/agentflow/core"
	"github.com/hupe1980/agentflow/tool"
)

// CalculatorArgs are the arguments of the calculator capability.
type CalculatorArgs struct {
	Operation string  `json:"operation" description:"The math operation" enum:"add,subtract,multiply,divide"`
	A         float64 `json:"a" description:"First number"`
	B         float64 `json:"b" description:"Second number"`
}

// Calculator performs basic arithmetic.
func Calculator() tool.Tool {
	return tool.NewTypedTool("calculator", "Performs basic math operations (add, subtract, multiply, divide)",
		func(_ *core.ToolContext, args CalculatorArgs) (any, error) {
			var result float64
			switch args.Operation {
			case "add":
				result = args.A + args.B
			case "subtract":
				result = args.A - args.B
			case "multiply":
				result = args.A * args.B
			case "divide":
				if args.B == 0 {
					return nil, errors.New("division by zero")
				}
				result = args.A / args.B
			default:
				return nil, fmt.Errorf("unknown operation %q", args.Operation)
			}
			return map[string]any{"result": result}, nil
		})
}

// ExpressionArgs are the arguments of the advanced calculator.
type ExpressionArgs struct {
	Expression string `json:"expression" description:"Math expression like \"2**3 + 5*4\""`
}

// AdvancedCalculator evaluates arithmetic expressions in a sandboxed Lua state.
func AdvancedCalculator() tool.Tool {
	return tool.NewTypedTool("advanced_calculator", "Evaluates complex math expressions",
		func(tc *core.ToolContext, args ExpressionArgs) (any, error) {
			L := lua.NewState(lua.Options{SkipOpenLibs: true})
			defer L.Close()
			L.SetContext(tc.Context())

			v, err := EvaluateExpression(L, args.Expression)
			if err != nil {
				return nil, err
			}
			return map[string]any{"result": v}, nil
		})
}

// EvaluateExpression evaluates a purely arithmetic expression. Only numbers,
// whitespace, parentheses and the operators + - * / % ^ (and ** for power)
// are accepted, so no identifiers or statements can reach the interpreter.
func EvaluateExpression(L *lua.LState, expr string) (float64, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return 0, errors.New("empty expression")
	}
	for _, r := range expr {
		if !strings.ContainsRune("0123456789.+-*/%^() \t", r) {
			return 0, fmt.Errorf("unsupported character %q in expression", r)
		}
	}
	expr = strings.ReplaceAll(expr, "**", "^")

	if err := L.DoString("return " + expr); err != nil {
		return 0, fmt.Errorf("invalid expression: %w", err)
	}
	ret := L.Get(-1)
	L.Pop(1)

	n, ok := ret.(lua.LNumber)
	if !ok {
		return 0, fmt.Errorf("expression did not yield a number")
	}
	f := float64(n)
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, errors.New("division by zero")
	}
	return f, nil
}

// MathTools returns the arithmetic capabilities.
func MathTools() []tool.Tool {
	return []tool.Tool{Calculator(), AdvancedCalculator()}
}
