package parser

// Statement is one import as written in a source file, before relative
// names are made absolute.
type Statement struct {
	// Level counts the leading dots of a relative "from" import.
	Level  int
	Module string
	Names  []string
	Plain  bool
	Line   int
}
