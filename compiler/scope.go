package compiler

// ScopeEntry is one variable's location in the current function's stack
// frame: a negative RBP-relative displacement, the slot's size in bytes,
// and whether writes to it are rejected (function parameters).
type ScopeEntry struct {
	Position  int32
	Size      uint8
	Immutable bool
}

// Scope is a per-function mapping from variable name to ScopeEntry, plus
// the running frame size. Modeled on the teacher's flat name->value Env
// maps (scm/jit_types.go's JITEnv), specialized to frame bookkeeping:
// position is assigned at insertion, growing the frame downward from
// RBP, and Remove does not reclaim the vacated bytes — the frame's total
// size is fixed up front by Codegen's pre-pass over the function body
// (see codegen.go), not by shrinking on scope exit.
type Scope struct {
	entries   map[string]ScopeEntry
	frameSize uint32
}

// NewScope creates an empty scope for one function.
func NewScope() *Scope {
	return &Scope{entries: make(map[string]ScopeEntry)}
}

// Insert allocates size bytes below the current frame top for name and
// records its entry. Fails (ok=false) if name already exists in this
// scope — duplicate declaration is a SemanticError at the call site.
func (s *Scope) Insert(name string, size uint8) (ScopeEntry, bool) {
	return s.insert(name, size, false)
}

// InsertImmutable is Insert for entries that reject Assign (function
// parameters).
func (s *Scope) InsertImmutable(name string, size uint8) (ScopeEntry, bool) {
	return s.insert(name, size, true)
}

func (s *Scope) insert(name string, size uint8, immutable bool) (ScopeEntry, bool) {
	if _, exists := s.entries[name]; exists {
		return ScopeEntry{}, false
	}
	s.frameSize += uint32(size)
	entry := ScopeEntry{
		Position:  -int32(s.frameSize),
		Size:      size,
		Immutable: immutable,
	}
	s.entries[name] = entry
	return entry, true
}

// Get looks up name, returning its entry and whether it was found.
func (s *Scope) Get(name string) (ScopeEntry, bool) {
	e, ok := s.entries[name]
	return e, ok
}

// Remove deletes name from the scope's name->entry mapping. It does not
// shrink FrameSize: the offset it occupied stays reserved so sibling
// scopes (e.g. the statements after an `if` block ends) never alias a
// stack slot that's semantically out of scope but still within the
// function's single pre-computed frame.
func (s *Scope) Remove(name string) {
	delete(s.entries, name)
}

// FrameSize returns the cumulative number of bytes allotted so far.
func (s *Scope) FrameSize() uint32 {
	return s.frameSize
}
