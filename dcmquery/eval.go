package dcmquery

import (
	"regexp"
	"strings"

	"github.com/rsnactp/dcm/dcmlog"
)

// Resolver supplies the string value an operand's identifier names — in
// practice a FileObject.GetString-shaped lookup, a tag address resolved
// against an object's dataset, defaulting to "" when absent.
type Resolver func(ident string) string

// Evaluate walks expr post-order and returns its boolean result against
// resolve. Per spec.md §9, the DSL is deliberately non-short-circuit: both
// operands of a binary node are always evaluated, since operand evaluation
// reads dataset state but never mutates it, so skipping one changes nothing
// the caller could observe except extra work.
func Evaluate(expr *node, resolve Resolver) (bool, error) {
	switch expr.kind {
	case nodeBool:
		return expr.boolVal, nil
	case nodeNot:
		v, err := Evaluate(expr.left, resolve)
		if err != nil {
			return false, err
		}
		return !v, nil
	case nodeAnd:
		left, err := Evaluate(expr.left, resolve)
		if err != nil {
			return false, err
		}
		right, err := Evaluate(expr.right, resolve)
		if err != nil {
			return false, err
		}
		return left && right, nil
	case nodeOr:
		left, err := Evaluate(expr.left, resolve)
		if err != nil {
			return false, err
		}
		right, err := Evaluate(expr.right, resolve)
		if err != nil {
			return false, err
		}
		return left || right, nil
	case nodeOperand:
		return evalOperand(expr, resolve)
	}
	return false, nil
}

func evalOperand(n *node, resolve Resolver) (bool, error) {
	value := resolve(n.ident)
	arg := n.arg

	switch n.call {
	case "equals":
		return value == arg, nil
	case "equalsIgnoreCase":
		return strings.EqualFold(value, arg), nil
	case "matches":
		re, err := regexp.Compile(arg)
		if err != nil {
			return false, err
		}
		return re.MatchString(value), nil
	case "contains":
		return matchGlob("*"+arg+"*", value)
	case "containsIgnoreCase":
		return strings.Contains(strings.ToLower(value), strings.ToLower(arg)), nil
	case "startsWith":
		return matchGlob(arg+"*", value)
	case "startsWithIgnoreCase":
		return strings.HasPrefix(strings.ToLower(value), strings.ToLower(arg)), nil
	case "endsWith":
		return matchGlob("*"+arg, value)
	case "endsWithIgnoreCase":
		return strings.HasSuffix(strings.ToLower(value), strings.ToLower(arg)), nil
	default:
		dcmlog.Warnf("dcmquery: unknown predicate method %q on %q, evaluating false", n.call, n.ident)
		return false, nil
	}
}

// EvaluateScript is Parse followed by Evaluate, the common one-shot entry
// point for a caller that has a script string and a resolver in hand.
func EvaluateScript(script string, resolve Resolver) (bool, error) {
	expr, err := Parse(script)
	if err != nil {
		dcmlog.Warnf("%v", err)
		return false, err
	}
	return Evaluate(expr, resolve)
}
