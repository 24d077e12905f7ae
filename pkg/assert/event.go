package assert

import (
	"bytes"
	"go/ast"
	"go/parser"
	"go/printer"
	"go/token"
	"runtime"

	"github.com/hugo-lorenzo-mato/postmortem/internal/diagnostics"
)

const unknownCondition = "<unknown>"

// checkFuncs maps each check function to the index of its condition
// argument.
var checkFuncs = map[string]int{
	"Assert":   0,
	"Assertf":  0,
	"AssertTo": 1,
}

// captureEvent describes the call site skip frames above its caller.
func captureEvent(skip int, message string) diagnostics.FailureEvent {
	ev := diagnostics.FailureEvent{
		File:      "<unknown>",
		Function:  "<unknown>",
		Condition: unknownCondition,
		Message:   message,
	}

	// Callers and CallersFrames see through inlining; FuncForPC does not.
	pcs := make([]uintptr, 1)
	if runtime.Callers(skip+1, pcs) == 0 {
		return ev
	}
	frame, _ := runtime.CallersFrames(pcs).Next()
	if frame.File != "" {
		ev.File = frame.File
		ev.Line = frame.Line
		ev.Condition = conditionText(frame.File, frame.Line)
	}
	if frame.Function != "" {
		ev.Function = frame.Function
	}
	return ev
}

// conditionText recovers the source text of the condition passed to a
// check function on line. The binary may run far from its sources, so
// any failure yields "<unknown>".
func conditionText(file string, line int) string {
	fset := token.NewFileSet()
	f, err := parser.ParseFile(fset, file, nil, parser.SkipObjectResolution)
	if err != nil {
		return unknownCondition
	}

	var cond ast.Expr
	ast.Inspect(f, func(n ast.Node) bool {
		if cond != nil {
			return false
		}
		call, ok := n.(*ast.CallExpr)
		if !ok || fset.Position(call.Pos()).Line > line || fset.Position(call.End()).Line < line {
			return true
		}
		idx, ok := checkFuncs[calleeName(call.Fun)]
		if !ok || idx >= len(call.Args) {
			return true
		}
		// A multi-line call may be reported at any line it spans.
		cond = call.Args[idx]
		return false
	})
	if cond == nil {
		return unknownCondition
	}

	var buf bytes.Buffer
	if err := printer.Fprint(&buf, fset, cond); err != nil {
		return unknownCondition
	}
	return buf.String()
}

func calleeName(fun ast.Expr) string {
	switch f := fun.(type) {
	case *ast.Ident:
		return f.Name
	case *ast.SelectorExpr:
		return f.Sel.Name
	default:
		return ""
	}
}
