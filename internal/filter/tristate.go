package filter

// TriState is the verdict of a criterion against partially sampled data.
type TriState int8

const (
	Undecided TriState = iota
	True
	False
)

func FromBool(b bool) TriState {
	if b {
		return True
	}
	return False
}

func (t TriState) Not() TriState {
	switch t {
	case True:
		return False
	case False:
		return True
	default:
		return Undecided
	}
}

func (t TriState) Decided() bool { return t != Undecided }

func (t TriState) String() string {
	switch t {
	case True:
		return "TRUE"
	case False:
		return "FALSE"
	default:
		return "UNDECIDED"
	}
}
