package expr

type (
	node interface {
		eval(doc *document) (any, error)
	}

	literal struct {
		value any
	}

	field struct {
		path string
	}

	not struct {
		operand node
	}

	logical struct {
		left  node
		right node
		and   bool
	}

	compare struct {
		left  node
		right node
		op    tokenKind
	}
)
