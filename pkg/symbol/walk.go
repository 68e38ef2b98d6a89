package symbol

// Walk visits s depth first, parents before children. Returning false
// from fn skips the children of that node.
func Walk(s Symbol, fn func(Symbol) bool) {
	if s == nil {
		return
	}
	if !fn(s) {
		return
	}
	switch real := s.(type) {
	case *InputColumn, *Literal, *Reference:
	case *Function:
		for _, arg := range real.Args {
			Walk(arg, fn)
		}
	default:
		panic(unknownSymbol(s))
	}
}

// Transform rebuilds s bottom up. fn receives every node after its
// children have been transformed and returns its replacement. Nodes
// whose children did not change are passed through unchanged, so the
// input tree is never modified.
func Transform(s Symbol, fn func(Symbol) Symbol) Symbol {
	if s == nil {
		return nil
	}
	switch real := s.(type) {
	case *InputColumn, *Literal, *Reference:
		return fn(s)
	case *Function:
		var args []Symbol
		for i, arg := range real.Args {
			newArg := Transform(arg, fn)
			if args == nil && newArg != arg {
				args = make([]Symbol, len(real.Args))
				copy(args, real.Args[:i])
			}
			if args != nil {
				args[i] = newArg
			}
		}
		if args == nil {
			return fn(s)
		}
		return fn(&Function{Info: real.Info, Args: args})
	default:
		panic(unknownSymbol(s))
	}
}

// References collects the plain column references of s in visiting order.
func References(s Symbol) []*Reference {
	var refs []*Reference
	Walk(s, func(node Symbol) bool {
		if ref, ok := node.(*Reference); ok {
			refs = append(refs, ref)
		}
		return true
	})
	return refs
}

func ContainsReference(s Symbol) bool {
	found := false
	Walk(s, func(node Symbol) bool {
		if found {
			return false
		}
		if _, ok := node.(*Reference); ok {
			found = true
		}
		return !found
	})
	return found
}

// Equal compares two symbol trees structurally.
func Equal(a, b Symbol) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	switch ra := a.(type) {
	case *InputColumn:
		rb, ok := b.(*InputColumn)
		return ok && ra.Index == rb.Index && ra.Typ.Equal(rb.Typ)
	case *Literal:
		rb, ok := b.(*Literal)
		return ok && ra.Typ.Equal(rb.Typ) && literalValueEqual(ra.Value, rb.Value)
	case *Reference:
		rb, ok := b.(*Reference)
		return ok && ra.Table == rb.Table && ra.Relation == rb.Relation &&
			ra.Column == rb.Column && ra.Typ.Equal(rb.Typ)
	case *Function:
		rb, ok := b.(*Function)
		if !ok || ra.Info.Ident.Name != rb.Info.Ident.Name ||
			!ra.Info.ReturnType.Equal(rb.Info.ReturnType) ||
			len(ra.Args) != len(rb.Args) {
			return false
		}
		for i, arg := range ra.Args {
			if !Equal(arg, rb.Args[i]) {
				return false
			}
		}
		return true
	default:
		panic(unknownSymbol(a))
	}
}
