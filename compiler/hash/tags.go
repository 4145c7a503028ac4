package hash

// ---------------------------------------------------------------------------
// Frozen tag bytes for the hashing serialization format.
//
// IMPORTANT: These tags are FROZEN. Once assigned, a tag byte must never
// change meaning. Adding new tags is fine; changing existing ones breaks
// all previously computed content hashes.
// ---------------------------------------------------------------------------

// HashVersion is the version prefix for the serialization format.
// Bumping this invalidates all existing content hashes.
const HashVersion byte = 1

// AST node tags.
const (
	TagReservedZero byte = 0x00

	// Literals
	TagNumberLiteral byte = 0x01
	TagStringLiteral byte = 0x02
	TagBoolLiteral   byte = 0x03
	TagNilLiteral    byte = 0x04
	TagTupleLiteral  byte = 0x05
	TagField         byte = 0x06
	TagArrayLiteral  byte = 0x07

	// Variable references
	TagLocalVarRef byte = 0x08
	TagGlobalRef   byte = 0x09

	// Expressions
	TagUnary    byte = 0x10
	TagBinary   byte = 0x11
	TagAssign   byte = 0x12
	TagAccessor byte = 0x13
	TagIndex    byte = 0x14
	TagLambda   byte = 0x15
	TagCall     byte = 0x16
	TagReturn   byte = 0x17
	TagBlock    byte = 0x18

	// Declarations
	TagVarDecl         byte = 0x20
	TagDestructureDecl byte = 0x21
	TagDestrLeaf       byte = 0x22
	TagDestrTuple      byte = 0x23
	TagTypeDecl        byte = 0x24

	// Pattern matching
	TagMatch           byte = 0x30
	TagLiteralPattern  byte = 0x31
	TagTypePattern     byte = 0x32
	TagWildcardPattern byte = 0x33

	// Type expressions
	TagNamedType    byte = 0x40
	TagProductType  byte = 0x41
	TagSumType      byte = 0x42
	TagFunctionType byte = 0x43
	TagArrayType    byte = 0x44
	TagWildcardType byte = 0x45
	TagAbsent       byte = 0x46

	TagProgram byte = 0x50
)

// allTags lists every defined tag for uniqueness verification in tests.
var allTags = []byte{
	TagReservedZero,
	TagNumberLiteral, TagStringLiteral, TagBoolLiteral, TagNilLiteral,
	TagTupleLiteral, TagField, TagArrayLiteral,
	TagLocalVarRef, TagGlobalRef,
	TagUnary, TagBinary, TagAssign, TagAccessor, TagIndex, TagLambda,
	TagCall, TagReturn, TagBlock,
	TagVarDecl, TagDestructureDecl, TagDestrLeaf, TagDestrTuple, TagTypeDecl,
	TagMatch, TagLiteralPattern, TagTypePattern, TagWildcardPattern,
	TagNamedType, TagProductType, TagSumType, TagFunctionType, TagArrayType,
	TagWildcardType, TagAbsent,
	TagProgram,
}
